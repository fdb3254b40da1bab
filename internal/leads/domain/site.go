package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SiteLocation is the physical facility embedded in a claim.
type SiteLocation struct {
	ID       string   `json:"id"`
	Facility string   `json:"facility"`
	City     string   `json:"city"`
	State    string   `json:"state"`
	Zip      string   `json:"zip,omitempty"`
	Lat      *float64 `json:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty"`
}

// HasCoordinates is true when both lat and lon are stored.
func (s SiteLocation) HasCoordinates() bool {
	return s.Lat != nil && s.Lon != nil
}

// Address joins the non-empty parts as "Facility, City, ST 12345".
func (s SiteLocation) Address() string {
	parts := make([]string, 0, 3)
	if f := strings.TrimSpace(s.Facility); f != "" {
		parts = append(parts, f)
	}
	if c := strings.TrimSpace(s.City); c != "" {
		parts = append(parts, c)
	}
	stateZip := strings.TrimSpace(strings.TrimSpace(s.State) + " " + strings.TrimSpace(s.Zip))
	if stateZip != "" {
		parts = append(parts, stateZip)
	}
	return strings.Join(parts, ", ")
}

type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "pending"
	ClaimApproved ClaimStatus = "approved"
	ClaimRejected ClaimStatus = "rejected"
)

// Contact is a named person or desk that can be reached about a lead.
type Contact struct {
	Name  string `json:"name"`
	Role  string `json:"role,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// IsEmpty is true when the contact carries no usable field.
func (c Contact) IsEmpty() bool {
	return strings.TrimSpace(c.Name) == "" && strings.TrimSpace(c.Email) == "" && strings.TrimSpace(c.Phone) == ""
}

// Claim is one organization's registration to host a protocol at one site.
type Claim struct {
	ID             uuid.UUID    `json:"id"`
	OrganizationID uuid.UUID    `json:"organizationId"`
	TrialID        string       `json:"trialId"`
	Location       SiteLocation `json:"siteLocation"`
	Status         ClaimStatus  `json:"status"`
	Contacts       []Contact    `json:"contacts"`
	Investigators  []Contact    `json:"investigators"`
	// QuestionsOverride replaces the protocol screener for this site when set.
	QuestionsOverride []Question `json:"questionsOverride,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

func (c Claim) IsApproved() bool { return c.Status == ClaimApproved }

type TrialStatus string

const (
	TrialRecruiting TrialStatus = "recruiting"
	TrialClosed     TrialStatus = "closed"
)

// Trial is a protocol with its screener and central sponsor contact.
type Trial struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Status         TrialStatus `json:"status"`
	Questions      []Question  `json:"questions"`
	CentralContact *Contact    `json:"centralContact,omitempty"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// QuestionsFor returns the screener in force at a site: the claim override
// when present, the protocol list otherwise.
func (t Trial) QuestionsFor(claim *Claim) []Question {
	if claim != nil && len(claim.QuestionsOverride) > 0 {
		return claim.QuestionsOverride
	}
	return t.Questions
}
