package scraper

import "strings"

// fundingCategories maps Grants.gov category names to their filter codes.
var fundingCategories = map[string]string{
	"AGRICULTURE":               "AG",
	"ARTS":                      "AR",
	"BUSINESS_COMMERCE":         "BC",
	"COMMUNITY_DEVELOPMENT":     "CD",
	"CONSUMER_PROTECTION":       "CP",
	"DISASTER_PREVENTION":       "DPR",
	"EDUCATION":                 "ED",
	"EMPLOYMENT_LABOR":          "ELT",
	"ENERGY":                    "EN",
	"ENVIRONMENT":               "ENV",
	"FOOD_NUTRITION":            "FN",
	"HEALTH":                    "HL",
	"HOUSING":                   "HO",
	"HUMANITIES":                "HU",
	"INCOME_SECURITY":           "IS",
	"SOCIAL_SERVICES":           "IS",
	"INFORMATION_STATISTICS":    "ISS",
	"LAW_JUSTICE":               "LJL",
	"NATURAL_RESOURCES":         "NR",
	"OPPORTUNITY_ZONE_BENEFITS": "OZ",
	"REGIONAL_DEVELOPMENT":      "RD",
	"SCIENCE_TECHNOLOGY":        "ST",
	"TRANSPORTATION":            "T",
}

// Opportunity statuses accepted by the search endpoint.
const (
	StatusPosted     = "posted"
	StatusClosed     = "closed"
	StatusArchived   = "archived"
	StatusForecasted = "forecasted"
)

// CategoryCode resolves a category name ("HEALTH", "health") to its code.
// Unknown values are assumed to already be codes and are upper-cased.
func CategoryCode(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if code, ok := fundingCategories[s]; ok {
		return code
	}
	return s
}

// JoinCategories builds the pipe-joined category filter, skipping blanks.
func JoinCategories(cats []string) string {
	codes := make([]string, 0, len(cats))
	for _, c := range cats {
		if code := CategoryCode(c); code != "" {
			codes = append(codes, code)
		}
	}
	return strings.Join(codes, "|")
}

// JoinStatuses builds the pipe-joined status filter, lower-cased.
func JoinStatuses(statuses []string) string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "|")
}
