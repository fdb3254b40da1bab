// Package matching decides which claimed site a lead belongs to.
//
// Keys are tried from strongest to loosest: location id, facility name, then
// city together with state. When both sides carry a stronger key that key
// decides the outcome, so two facilities in the same city are never
// conflated.
package matching

import (
	"strings"
	"unicode"

	"recruitment_backend/internal/leads/domain"

	"golang.org/x/text/cases"
)

// Matches reports whether lead belongs to site. It is pure and reads both
// arguments without modifying them.
func Matches(lead domain.Lead, site domain.SiteLocation) bool {
	if lead.HasLocation() && site.ID != "" {
		return *lead.LocationID == site.ID
	}

	leadFacility := normalizeName(lead.SiteFacility)
	siteFacility := normalizeName(site.Facility)
	if leadFacility != "" && siteFacility != "" {
		return leadFacility == siteFacility
	}

	return sameCityAndState(lead.SiteCity, lead.SiteState, site.City, site.State)
}

// Resolve returns the first site in candidates that lead matches, or nil
// when the lead is unclaimed.
func Resolve(lead domain.Lead, candidates []domain.SiteLocation) *domain.SiteLocation {
	for i := range candidates {
		if Matches(lead, candidates[i]) {
			site := candidates[i]
			return &site
		}
	}
	return nil
}

// Assignment is the result of partitioning leads across sites.
type Assignment struct {
	// BySite maps a site location id to its leads in input order.
	BySite map[string][]domain.Lead
	// Unclaimed holds leads that match no site.
	Unclaimed []domain.Lead
}

// Partition assigns every lead to the first site it matches. Each lead
// lands in exactly one bucket.
func Partition(leads []domain.Lead, sites []domain.SiteLocation) Assignment {
	out := Assignment{BySite: make(map[string][]domain.Lead, len(sites))}
	for _, lead := range leads {
		site := Resolve(lead, sites)
		if site == nil {
			out.Unclaimed = append(out.Unclaimed, lead)
			continue
		}
		out.BySite[site.ID] = append(out.BySite[site.ID], lead)
	}
	return out
}

// sameCityAndState requires both city and state on both sides.
func sameCityAndState(leadCity, leadState, siteCity, siteState string) bool {
	lc, sc := normalizePlace(leadCity), normalizePlace(siteCity)
	ls, ss := normalizePlace(leadState), normalizePlace(siteState)
	if lc == "" || sc == "" || ls == "" || ss == "" {
		return false
	}
	return lc == sc && ls == ss
}

// fold builds a fresh Caser per call; Casers keep state and are not safe
// for concurrent use.
func fold(s string) string {
	return cases.Fold().String(s)
}

func normalizeName(s string) string {
	return fold(strings.TrimSpace(s))
}

// normalizePlace case-folds and keeps letters only, so "St. Louis" and
// "ST LOUIS" compare equal.
func normalizePlace(s string) string {
	folded := fold(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return r
		}
		return -1
	}, folded)
}

// ResolveClaim is Resolve over approved claims. Pending and rejected
// claims never receive leads.
func ResolveClaim(lead domain.Lead, claims []domain.Claim) *domain.Claim {
	for i := range claims {
		if !claims[i].IsApproved() {
			continue
		}
		if Matches(lead, claims[i].Location) {
			claim := claims[i]
			return &claim
		}
	}
	return nil
}

// ApprovedSites extracts the locations of approved claims in order.
func ApprovedSites(claims []domain.Claim) []domain.SiteLocation {
	out := make([]domain.SiteLocation, 0, len(claims))
	for _, c := range claims {
		if c.IsApproved() {
			out = append(out, c.Location)
		}
	}
	return out
}
