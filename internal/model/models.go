// Package model defines shared data structures for the ingestion service.
package model

import "time"

// Filter selects which opportunities the search endpoint returns.
// Categories and Statuses are joined with "|" on the wire.
type Filter struct {
	Categories []string `json:"categories,omitempty"`
	Keywords   string   `json:"keywords,omitempty"`
	Statuses   []string `json:"statuses,omitempty"`
}

// RawRecord is an untrusted, loosely typed detail payload as returned by the
// upstream fetchOpportunity call. It lives for one fetch+clean cycle only.
type RawRecord map[string]any

// ID returns the identifier the fetcher annotated the record with.
func (r RawRecord) ID() string {
	s, _ := r["id"].(string)
	return s
}

// PointOfContact is the agency contact block of a grant. It is stored as an
// opaque JSON blob.
type PointOfContact struct {
	Phone            *string `json:"phone"`
	Name             *string `json:"name"`
	Description      *string `json:"description"`
	Email            *string `json:"email"`
	EmailDescription *string `json:"email_description"`
}

// Dates holds canonical "YYYY-MM-DD HH:MM:SS" timestamps, nil when absent.
type Dates struct {
	PostingDate     *string `json:"posting_date"`
	ArchiveDate     *string `json:"archive_date"`
	ResponseDate    *string `json:"response_date"`
	LastUpdatedDate *string `json:"last_updated_date"`
}

// CleanedRecord is the normalised, storage-ready form of a grant.
type CleanedRecord struct {
	OpportunityNumber  *string        `json:"opportunity_number"`
	Title              string         `json:"title"`
	Description        string         `json:"description"`
	ResearchField      string         `json:"research_field"`
	ExpectedAwardCount *int64         `json:"expected_award_count"`
	Eligibility        *string        `json:"eligibility"`
	Provider           *string        `json:"provider"`
	Link               string         `json:"link"`
	AwardMaxAmount     *int64         `json:"award_max_amount"`
	AwardMinAmount     *int64         `json:"award_min_amount"`
	ProgramFunding     *int64         `json:"program_funding"`
	PointOfContact     PointOfContact `json:"point_of_contact"`
	Dates              Dates          `json:"dates"`
}

// NaturalKey returns the opportunity number, or "" when the record cannot be
// deduplicated.
func (c CleanedRecord) NaturalKey() string {
	if c.OpportunityNumber == nil {
		return ""
	}
	return *c.OpportunityNumber
}

// StoredRecord is a CleanedRecord persisted under a surrogate identifier.
type StoredRecord struct {
	ID string `json:"id"`
	CleanedRecord
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
