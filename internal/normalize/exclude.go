package normalize

import (
	"strings"

	"github.com/colby-usm/GrantGuru/internal/model"
)

// ContainsExcludedTerm returns true if any exclusion term appears
// (case-insensitive) in the combined title + provider + description text.
//
// Called after cleaning; a match drops the record before reconciliation.
func ContainsExcludedTerm(rec model.CleanedRecord, terms []string) bool {
	if len(terms) == 0 {
		return false
	}
	provider := ""
	if rec.Provider != nil {
		provider = *rec.Provider
	}
	combined := strings.ToLower(rec.Title + " " + provider + " " + rec.Description)
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if strings.Contains(combined, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
