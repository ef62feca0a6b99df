// Package normalize turns raw Grants.gov detail payloads into storage-ready
// records: date parsing, scalar coercion and the per-record cleaning pass.
package normalize

import (
	"strings"
	"time"
)

const (
	// HumanLayout matches "Nov 17, 2025 12:00:00 AM" once the zone is dropped.
	HumanLayout = "Jan _2, 2006 3:04:05 PM"
	// MachineLayout matches the backup encoding "2025-11-17-00-00-00".
	MachineLayout = "2006-01-02-15-04-05"
	// CanonicalLayout is the storage rendering of every timestamp.
	CanonicalLayout = "2006-01-02 15:04:05"
)

// ParseHumanDate parses the human-readable encoding. A trailing zone
// abbreviation is dropped when the string has six or more tokens.
func ParseHumanDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	parts := strings.Fields(s)
	if len(parts) >= 6 {
		parts = parts[:len(parts)-1]
	}
	t, err := time.Parse(HumanLayout, strings.Join(parts, " "))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseMachineDate parses the machine-readable backup encoding.
func ParseMachineDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(MachineLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseDate tries the human form first and falls back to the machine form.
func ParseDate(human, machine string) (time.Time, bool) {
	if t, ok := ParseHumanDate(human); ok {
		return t, true
	}
	return ParseMachineDate(machine)
}

// NormalizeDate returns the canonical rendering of the first encoding that
// parses, or nil. It never guesses a default date.
func NormalizeDate(human, machine string) *string {
	t, ok := ParseDate(human, machine)
	if !ok {
		return nil
	}
	s := t.Format(CanonicalLayout)
	return &s
}

// ParseCanonical is the inverse of the canonical rendering, used by the
// storage layer to bind timestamp columns.
func ParseCanonical(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse(CanonicalLayout, *s)
	if err != nil {
		return nil
	}
	return &t
}

// FormatCanonical renders t in the canonical layout, nil in, nil out.
func FormatCanonical(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(CanonicalLayout)
	return &s
}
