// Package contact picks the outreach contact for a lead at its site.
package contact

import (
	"strings"

	"recruitment_backend/internal/leads/domain"
)

type BestType string

const (
	BestLocal    BestType = "local"
	BestFacility BestType = "facility"
	BestCentral  BestType = "central"
	BestNone     BestType = "none"
)

// Strategy is the projection shown next to a lead on the board.
type Strategy struct {
	Facility      string           `json:"facility"`
	LocalContacts []domain.Contact `json:"localContacts"`
	FullAddress   string           `json:"fullAddress"`
	Central       *domain.Contact  `json:"central,omitempty"`
	BestType      BestType         `json:"bestType"`
	BestData      *domain.Contact  `json:"bestData,omitempty"`
}

// Resolve prefers the first local contact or investigator, then the
// facility front desk, then the sponsor's central contact. claim may be nil
// for an unclaimed lead, in which case the lead's own facility text is used.
func Resolve(lead domain.Lead, claim *domain.Claim, trial domain.Trial) Strategy {
	var site domain.SiteLocation
	local := make([]domain.Contact, 0)
	if claim != nil {
		site = claim.Location
		local = append(local, claim.Contacts...)
		local = append(local, claim.Investigators...)
	} else {
		site = domain.SiteLocation{Facility: lead.SiteFacility, City: lead.SiteCity, State: lead.SiteState}
	}

	facility := strings.TrimSpace(site.Facility)
	strategy := Strategy{
		Facility:      facility,
		LocalContacts: local,
		FullAddress:   site.Address(),
		BestType:      BestNone,
	}
	if trial.CentralContact != nil && !trial.CentralContact.IsEmpty() {
		central := *trial.CentralContact
		strategy.Central = &central
	}

	for _, c := range local {
		if strings.TrimSpace(c.Name) != "" {
			best := c
			strategy.BestType = BestLocal
			strategy.BestData = &best
			return strategy
		}
	}
	if facility != "" {
		strategy.BestType = BestFacility
		strategy.BestData = &domain.Contact{Name: facility, Role: "Front Desk"}
		return strategy
	}
	if strategy.Central != nil {
		central := *strategy.Central
		strategy.BestType = BestCentral
		strategy.BestData = &central
	}
	return strategy
}
