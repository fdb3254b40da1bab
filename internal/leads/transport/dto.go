package transport

import (
	"time"

	"recruitment_backend/internal/leads/contact"
	"recruitment_backend/internal/leads/domain"
	"recruitment_backend/internal/leads/tiering"
)

// Request DTOs
type SubmitLeadRequest struct {
	TrialID      string    `json:"trialId" validate:"required,max=64"`
	LocationID   *string   `json:"locationId,omitempty" validate:"omitempty,max=128"`
	SiteFacility string    `json:"siteFacility,omitempty" validate:"max=300"`
	SiteCity     string    `json:"siteCity" validate:"required_without=LocationID,max=120"`
	SiteState    string    `json:"siteState" validate:"required_without=LocationID,max=60"`
	Name         string    `json:"name" validate:"required,min=1,max=200"`
	Email        string    `json:"email" validate:"required_without=Phone,omitempty,email,max=254"`
	Phone        string    `json:"phone" validate:"omitempty,phone"`
	Answers      []*string `json:"answers" validate:"max=100,dive,omitnil,max=200"`
}

type TransitionRequest struct {
	Status string `json:"status" validate:"required,max=32"`
}

type CorrectAnswerRequest struct {
	Index *int   `json:"index" validate:"required,min=0"`
	Value string `json:"value" validate:"required,max=200"`
}

type CommitNotesRequest struct {
	Notes string `json:"notes" validate:"max=20000"`
}

type SendMessageRequest struct {
	Content string `json:"content" validate:"required,min=1,max=4000"`
}


// BoardQuery is bound from the query string.
type BoardQuery struct {
	Status    []string `form:"status" validate:"max=7"`
	Tier      string   `form:"tier" validate:"omitempty,oneof=diamond gold silver mismatch none"`
	Search    string   `form:"search" validate:"max=100"`
	SiteID    string   `form:"siteId" validate:"max=128"`
	Unclaimed bool     `form:"unclaimed"`
	TrialID   string   `form:"trialId" validate:"max=64"`
}

type RankSitesQuery struct {
	Zip *string `form:"zip" validate:"omitempty,max=10"`
}

// Response DTOs
type LeadResponse struct {
	domain.Lead
	SiteID             string           `json:"siteId"`
	Tier               *tiering.Result  `json:"tier,omitempty"`
	QuestionsChanged   bool             `json:"questionsChanged"`
	Contact            contact.Strategy `json:"contact"`
	AllowedTransitions []domain.Status  `json:"allowedTransitions"`
	PhoneDisplay       string           `json:"phoneDisplay,omitempty"`
}

type LeadDetailResponse struct {
	Lead      LeadResponse        `json:"lead"`
	Questions []domain.Question   `json:"questions"`
	History   []domain.AuditEntry `json:"history"`
	Messages  []domain.Message    `json:"messages"`
}

type BoardColumn struct {
	Status domain.Status  `json:"status"`
	Leads  []LeadResponse `json:"leads"`
}

type BoardResponse struct {
	Columns []BoardColumn `json:"columns"`
	Total   int           `json:"total"`
}

type CorrectionResponse struct {
	Lead   LeadResponse `json:"lead"`
	Change string       `json:"change"`
}

type SiteOption struct {
	Location      domain.SiteLocation `json:"location"`
	DistanceMiles *float64            `json:"distanceMiles,omitempty"`
}

type SiteRankingResponse struct {
	TrialID string       `json:"trialId"`
	Sites   []SiteOption `json:"sites"`
	// Ranked is false when the list is in stored order.
	Ranked bool `json:"ranked"`
}

type TrialClosedResponse struct {
	TrialID string    `json:"trialId"`
	Queued  bool      `json:"queued"`
	At      time.Time `json:"at"`
}
