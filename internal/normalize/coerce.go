package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// NonNegativeInt converts v to an integer and returns it only when the
// conversion succeeds and the result is >= 0. Anything else yields nil.
func NonNegativeInt(v any) *int64 {
	n, ok := toInt(v)
	if !ok || n < 0 {
		return nil
	}
	return &n
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case float32:
		return floatToInt(float64(x))
	case float64:
		return floatToInt(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, true
		}
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// floatToInt truncates toward zero; NaN, Inf and out-of-range values fail.
func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	t := math.Trunc(f)
	if t > math.MaxInt64 || t < math.MinInt64 {
		return 0, false
	}
	return int64(t), true
}

// Truncate returns at most max characters of s. It counts runes, so
// multi-byte characters are never split.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// SerializeNested marshals v to JSON. Struct fields keep declaration order and
// map keys are sorted, so equal inputs always produce equal output.
func SerializeNested(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// OptionalString renders scalar source values as a string. nil, empty
// strings and nested structures yield nil.
func OptionalString(v any) *string {
	var s string
	switch x := v.(type) {
	case string:
		s = strings.TrimSpace(x)
	case json.Number:
		s = x.String()
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(x)
	default:
		return nil
	}
	if s == "" {
		return nil
	}
	return &s
}
