// Package realtime merges pushed change notifications into a board
// session's in-memory leads without clobbering unsaved local edits.
package realtime

import (
	"errors"
	"time"

	"recruitment_backend/internal/leads/domain"

	"github.com/google/uuid"
)

type Kind string

const (
	KindLeadStatusChanged Kind = "LeadStatusChanged"
	KindMessageInserted   Kind = "MessageInserted"
)

// Event is one change notification. ID identifies the change for dedupe:
// the change id for lead patches, the message id for messages.
type Event struct {
	ID     string    `json:"id"`
	Kind   Kind      `json:"kind"`
	LeadID uuid.UUID `json:"leadId"`
	SiteID string    `json:"siteId"`

	Patch domain.LeadPatch `json:"patch,omitempty"`
	// UpdatedAt is the confirmed write time of the patch. Zero means unknown
	// and the patch is applied unconditionally.
	UpdatedAt time.Time `json:"updatedAt,omitempty"`

	Message *domain.Message `json:"message,omitempty"`
}

// ErrNotLoaded is returned for an optimistic write on a lead the session
// does not hold.
var ErrNotLoaded = errors.New("lead is not loaded in this session")

// Viewport is what the session's user is looking at when an event is
// merged. It is passed on every call rather than captured.
type Viewport struct {
	// ActiveConversation is the lead whose message thread is open, or
	// uuid.Nil when none is.
	ActiveConversation uuid.UUID `json:"activeConversation"`
}

// IsViewing reports whether leadID's conversation is open.
func (v Viewport) IsViewing(leadID uuid.UUID) bool {
	return v.ActiveConversation != uuid.Nil && v.ActiveConversation == leadID
}

// Result says what merging an event did.
type Result string

const (
	ResultApplied   Result = "applied"
	ResultDuplicate Result = "duplicate"
	ResultStale     Result = "stale"
	// ResultIgnored is an event for a lead this session does not hold.
	ResultIgnored Result = "ignored"
)

// Update is the outcome of Apply, suitable for pushing to the client.
type Update struct {
	Result Result       `json:"result"`
	Kind   Kind         `json:"kind"`
	Lead   *domain.Lead `json:"lead,omitempty"`
	// Appended is set when a message joined the visible transcript.
	Appended *domain.Message `json:"appended,omitempty"`
	// MarkedRead is set when the mark-read side effect was issued.
	MarkedRead bool `json:"markedRead,omitempty"`
}
