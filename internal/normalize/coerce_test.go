package normalize_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/colby-usm/GrantGuru/internal/model"
	"github.com/colby-usm/GrantGuru/internal/normalize"
)

// ── NonNegativeInt ─────────────────────────────────────────────────────────

func TestNonNegativeInt_Accepted(t *testing.T) {
	cases := []struct {
		in   any
		want int64
	}{
		{"1000", 1000},
		{" 42 ", 42},
		{"0", 0},
		{float64(250000), 250000},
		{12.9, 12},
		{json.Number("750000"), 750000},
		{int(7), 7},
	}
	for _, c := range cases {
		got := normalize.NonNegativeInt(c.in)
		if got == nil || *got != c.want {
			t.Errorf("NonNegativeInt(%#v) = %v, want %d", c.in, got, c.want)
		}
	}
}

func TestNonNegativeInt_Rejected(t *testing.T) {
	for _, in := range []any{nil, "-5", "abc", "", "12.5", float64(-1), json.Number("-3"), true, map[string]any{}, "99999999999999999999"} {
		if got := normalize.NonNegativeInt(in); got != nil {
			t.Errorf("NonNegativeInt(%#v) = %d, want nil", in, *got)
		}
	}
}

// ── Truncate ───────────────────────────────────────────────────────────────

func TestTruncate_Description(t *testing.T) {
	in := strings.Repeat("a", 20000)
	got := normalize.Truncate(in, normalize.MaxDescriptionLen)
	if len(got) != 18000 {
		t.Fatalf("len = %d, want 18000", len(got))
	}
	if got != in[:18000] {
		t.Error("Truncate must keep the leading characters")
	}
}

func TestTruncate_NeverExpands(t *testing.T) {
	if got := normalize.Truncate("short", 255); got != "short" {
		t.Errorf("Truncate(short) = %q", got)
	}
	if got := normalize.Truncate("abc", 0); got != "" {
		t.Errorf("Truncate(abc, 0) = %q, want empty", got)
	}
}

func TestTruncate_CountsRunes(t *testing.T) {
	got := normalize.Truncate("héllo wörld", 5)
	if got != "héllo" {
		t.Errorf("Truncate = %q, want héllo", got)
	}
}

// ── SerializeNested ────────────────────────────────────────────────────────

func TestSerializeNested_Deterministic(t *testing.T) {
	name := "Jane Doe"
	poc := model.PointOfContact{Name: &name}
	a := normalize.SerializeNested(poc)
	b := normalize.SerializeNested(poc)
	if a != b {
		t.Fatalf("SerializeNested not deterministic: %s vs %s", a, b)
	}
	want := `{"phone":null,"name":"Jane Doe","description":null,"email":null,"email_description":null}`
	if a != want {
		t.Errorf("SerializeNested = %s, want %s", a, want)
	}
}

func TestSerializeNested_Unmarshalable(t *testing.T) {
	if got := normalize.SerializeNested(func() {}); got != "{}" {
		t.Errorf("SerializeNested(func) = %s, want {}", got)
	}
}

// ── ContainsExcludedTerm ───────────────────────────────────────────────────

func TestContainsExcludedTerm(t *testing.T) {
	agency := "Department of Defense"
	rec := model.CleanedRecord{Title: "Weapons Research", Description: "…", Provider: &agency}

	if !normalize.ContainsExcludedTerm(rec, []string{"defense"}) {
		t.Error("provider match should be case-insensitive")
	}
	if !normalize.ContainsExcludedTerm(rec, []string{"", "WEAPONS"}) {
		t.Error("title match should be found, empty terms skipped")
	}
	if normalize.ContainsExcludedTerm(rec, nil) {
		t.Error("no terms must never match")
	}
	if normalize.ContainsExcludedTerm(rec, []string{"agriculture"}) {
		t.Error("unrelated term must not match")
	}
}
