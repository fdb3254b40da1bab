// Package domain holds the typed records and business rules shared by the
// lead engine: statuses, actors, screener questions, sites and leads.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Lead is a patient's screening submission against one protocol.
type Lead struct {
	ID      uuid.UUID `json:"id"`
	TrialID string    `json:"trialId"`
	// LocationID is the strong reference to a site, when known.
	LocationID   *string `json:"locationId,omitempty"`
	SiteFacility string  `json:"siteFacility,omitempty"`
	SiteCity     string  `json:"siteCity"`
	SiteState    string  `json:"siteState"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Phone        string  `json:"phone"`
	// Answers is index aligned with QuestionSnapshot. A nil entry is an
	// unanswered question.
	Answers []*string `json:"answers"`
	// QuestionSnapshot is the screener in force when the lead was submitted.
	QuestionSnapshot []Question `json:"questionSnapshot,omitempty"`
	Status           Status     `json:"status"`
	ResearcherNotes  string     `json:"researcherNotes"`
	// UnreadCount is derived from unread patient messages, never stored.
	UnreadCount int       `json:"unreadCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// HasLocation is true when the lead carries a non-empty strong site key.
func (l Lead) HasLocation() bool {
	return l.LocationID != nil && *l.LocationID != ""
}

// CloneAnswers returns a copy whose entries do not alias the original.
func CloneAnswers(answers []*string) []*string {
	if answers == nil {
		return nil
	}
	out := make([]*string, len(answers))
	for i, a := range answers {
		if a != nil {
			v := *a
			out[i] = &v
		}
	}
	return out
}

// AnswersOf builds an answer list with every entry present.
func AnswersOf(values ...string) []*string {
	out := make([]*string, len(values))
	for i := range values {
		v := values[i]
		out[i] = &v
	}
	return out
}

type SenderRole string

const (
	SenderPatient    SenderRole = "patient"
	SenderResearcher SenderRole = "researcher"
)

func (r SenderRole) IsValid() bool {
	return r == SenderPatient || r == SenderResearcher
}

// Message is one append-only entry in a lead's conversation.
type Message struct {
	ID         uuid.UUID  `json:"id"`
	LeadID     uuid.UUID  `json:"leadId"`
	SenderRole SenderRole `json:"senderRole"`
	Content    string     `json:"content"`
	IsRead     bool       `json:"isRead"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// AuditEntry is an immutable record of a state-changing action.
type AuditEntry struct {
	ID          uuid.UUID `json:"id"`
	LeadID      uuid.UUID `json:"leadId"`
	Action      string    `json:"action"`
	Detail      string    `json:"detail"`
	PerformedBy string    `json:"performedBy"`
	CreatedAt   time.Time `json:"createdAt"`
}
