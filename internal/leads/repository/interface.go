package repository

import (
	"context"
	"time"

	"recruitment_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// LeadQuery narrows a lead listing on the database side. Tier and site
// filters are derived values and are applied by the caller.
type LeadQuery struct {
	TrialIDs []string
	Statuses []domain.Status
	// Search matches name, email or phone, case-insensitively.
	Search string
	Limit  int
}

// LeadReader provides read-only access to leads.
type LeadReader interface {
	GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	ListLeads(ctx context.Context, query LeadQuery) ([]domain.Lead, error)
	ListLeadsByTrial(ctx context.Context, trialID string) ([]domain.Lead, error)
}

// LeadWriter persists lead mutations. Each returns the row as stored.
type LeadWriter interface {
	CreateLead(ctx context.Context, lead domain.Lead) (domain.Lead, error)
	UpdateLeadStatus(ctx context.Context, id uuid.UUID, status domain.Status) (domain.Lead, error)
	UpdateLeadAnswers(ctx context.Context, id uuid.UUID, answers []*string) (domain.Lead, error)
	UpdateLeadNotes(ctx context.Context, id uuid.UUID, notes string) (domain.Lead, error)
}

// ClaimReader reads site claims.
type ClaimReader interface {
	ListClaimsByTrial(ctx context.Context, trialID string) ([]domain.Claim, error)
	ListApprovedClaims(ctx context.Context) ([]domain.Claim, error)
}

// SiteGeocodeStore serves the coordinate backfill.
type SiteGeocodeStore interface {
	ListClaimsMissingCoordinates(ctx context.Context, limit int) ([]domain.Claim, error)
	UpdateClaimCoordinates(ctx context.Context, claimID uuid.UUID, lat, lon float64) error
}

// TrialStore reads and writes protocols.
type TrialStore interface {
	GetTrial(ctx context.Context, id string) (domain.Trial, error)
	ListTrials(ctx context.Context) ([]domain.Trial, error)
	UpsertTrial(ctx context.Context, trial domain.Trial) error
	SetTrialStatus(ctx context.Context, id string, status domain.TrialStatus) error
}

// MessageStore manages lead conversations.
type MessageStore interface {
	InsertMessage(ctx context.Context, msg domain.Message) (domain.Message, error)
	ListMessages(ctx context.Context, leadID uuid.UUID) ([]domain.Message, error)
	// MarkMessagesRead flags every unread patient message on the lead. When
	// any changed, the lead's updated_at is bumped and returned so the
	// change orders against other confirmed writes.
	MarkMessagesRead(ctx context.Context, leadID uuid.UUID) (int64, time.Time, error)
}

// AuditStore is append-only.
type AuditStore interface {
	Append(ctx context.Context, entry domain.AuditEntry) error
	ListByLead(ctx context.Context, leadID uuid.UUID) ([]domain.AuditEntry, error)
}

// Store is everything the leads module needs from the record store.
type Store interface {
	LeadReader
	LeadWriter
	ClaimReader
	SiteGeocodeStore
	TrialStore
	MessageStore
	AuditStore
}

var (
	_ Store = (*Repository)(nil)
	_ Store = (*Memory)(nil)
)
