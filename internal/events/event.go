// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"recruitment_backend/internal/leads/domain"
	"recruitment_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var (
	NewBaseEvent   = events.NewBaseEvent
	NewInMemoryBus = events.NewInMemoryBus
)

// LeadSubmitted is published after a screener submission is stored.
type LeadSubmitted struct {
	BaseEvent
	LeadID  uuid.UUID `json:"leadId"`
	TrialID string    `json:"trialId"`
	// SiteID is empty for an unclaimed lead.
	SiteID string `json:"siteId"`
	Tier   string `json:"tier,omitempty"`
}

func (e LeadSubmitted) EventName() string { return "leads.lead.submitted" }

// LeadStatusChanged is published for every committed write to a lead row:
// status transitions, note commits and answer corrections. Patch holds only
// the fields that changed.
type LeadStatusChanged struct {
	BaseEvent
	ChangeID  uuid.UUID        `json:"changeId"`
	LeadID    uuid.UUID        `json:"leadId"`
	TrialID   string           `json:"trialId"`
	SiteID    string           `json:"siteId"`
	Patch     domain.LeadPatch `json:"patch"`
	UpdatedAt time.Time        `json:"updatedAt"`
	Actor     string           `json:"actor"`
}

func (e LeadStatusChanged) EventName() string { return "leads.lead.changed" }

// MessageInserted is published after a message is appended to a lead's
// conversation.
type MessageInserted struct {
	BaseEvent
	MessageID  uuid.UUID         `json:"messageId"`
	LeadID     uuid.UUID         `json:"leadId"`
	SiteID     string            `json:"siteId"`
	SenderRole domain.SenderRole `json:"senderRole"`
	Content    string            `json:"content"`
	CreatedAt  time.Time         `json:"createdAt"`
}

func (e MessageInserted) EventName() string { return "leads.message.inserted" }

// TrialClosed is published when a protocol stops recruiting.
type TrialClosed struct {
	BaseEvent
	TrialID string `json:"trialId"`
}

func (e TrialClosed) EventName() string { return "trials.trial.closed" }
