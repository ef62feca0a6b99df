package normalize

import (
	"time"

	"github.com/colby-usm/GrantGuru/internal/model"
)

// Field bounds and defaults applied by Clean.
const (
	MaxTitleLen         = 255
	MaxDescriptionLen   = 18000
	MaxResearchFieldLen = 250
	MaxLinkLen          = 2048

	DefaultTitle         = "No title"
	DefaultDescription   = "No description"
	DefaultResearchField = "No Research Field"
	DefaultLink          = "https://www.grants.gov/"
)

// Cleaner normalises raw detail payloads. The zero value uses the wall clock.
type Cleaner struct {
	// Now returns the reference time for the recency window.
	Now func() time.Time
}

// NewCleaner returns a Cleaner that uses time.Now.
func NewCleaner() *Cleaner {
	return &Cleaner{Now: time.Now}
}

// Clean maps one raw record to a CleanedRecord. It returns false when the
// record is rejected: empty input, or a lookback window is given and the
// last-updated date is missing, unparseable or older than the window.
// Individual malformed fields degrade to defaults and never reject a record.
func (c *Cleaner) Clean(raw model.RawRecord, lookbackDays *int) (*model.CleanedRecord, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	synopsis := mapAt(raw, "synopsis")

	dates := model.Dates{
		PostingDate:     NormalizeDate(stringAt(synopsis, "postingDate"), stringAt(synopsis, "postingDateStr")),
		ArchiveDate:     NormalizeDate(stringAt(synopsis, "archiveDate"), stringAt(synopsis, "archiveDateStr")),
		ResponseDate:    NormalizeDate(stringAt(synopsis, "responseDate"), stringAt(synopsis, "responseDateStr")),
		LastUpdatedDate: NormalizeDate(stringAt(synopsis, "lastUpdatedDate"), stringAt(synopsis, "lastUpdatedDateStr")),
	}

	if lookbackDays != nil && !c.withinWindow(dates.LastUpdatedDate, *lookbackDays) {
		return nil, false
	}

	rec := &model.CleanedRecord{
		OpportunityNumber:  OptionalString(raw["opportunityNumber"]),
		Title:              Truncate(stringOr(raw["opportunityTitle"], DefaultTitle), MaxTitleLen),
		Description:        Truncate(stringOr(synopsis["synopsisDesc"], DefaultDescription), MaxDescriptionLen),
		ResearchField:      researchField(raw, synopsis),
		ExpectedAwardCount: NonNegativeInt(synopsis["numberOfAwards"]),
		Eligibility:        OptionalString(synopsis["applicantEligibilityDesc"]),
		Provider:           OptionalString(synopsis["agencyName"]),
		Link:               Truncate(stringOr(synopsis["fundingDescLinkUrl"], DefaultLink), MaxLinkLen),
		AwardMaxAmount:     NonNegativeInt(synopsis["awardCeiling"]),
		AwardMinAmount:     NonNegativeInt(synopsis["awardFloor"]),
		ProgramFunding:     NonNegativeInt(synopsis["estimatedFunding"]),
		PointOfContact: model.PointOfContact{
			Phone:            OptionalString(synopsis["agencyContactPhone"]),
			Name:             OptionalString(synopsis["agencyContactName"]),
			Description:      OptionalString(synopsis["agencyContactDesc"]),
			Email:            OptionalString(synopsis["agencyContactEmail"]),
			EmailDescription: OptionalString(synopsis["agencyContactEmailDesc"]),
		},
		Dates: dates,
	}
	return rec, true
}

// withinWindow compares calendar days, so a record updated late yesterday
// is one day old regardless of the hour.
func (c *Cleaner) withinWindow(lastUpdated *string, days int) bool {
	t := ParseCanonical(lastUpdated)
	if t == nil {
		return false
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return DaysBetween(*t, now()) <= days
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// researchField takes the first funding activity category, preferring the
// top-level list over the synopsis copy.
func researchField(raw model.RawRecord, synopsis map[string]any) string {
	cats, ok := raw["fundingActivityCategories"].([]any)
	if !ok {
		cats, _ = synopsis["fundingActivityCategories"].([]any)
	}
	if len(cats) == 0 {
		return DefaultResearchField
	}
	var label *string
	switch first := cats[0].(type) {
	case map[string]any:
		label = OptionalString(first["description"])
	case string:
		label = OptionalString(first)
	}
	if label == nil {
		return DefaultResearchField
	}
	return Truncate(*label, MaxResearchFieldLen)
}

func mapAt(m map[string]any, key string) map[string]any {
	v, _ := m[key].(map[string]any)
	if v == nil {
		return map[string]any{}
	}
	return v
}

func stringAt(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func stringOr(v any, def string) string {
	if s := OptionalString(v); s != nil {
		return *s
	}
	return def
}
