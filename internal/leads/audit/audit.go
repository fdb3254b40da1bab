// Package audit is the append-only history of state-changing actions on a
// lead. There is no update or delete path.
package audit

import (
	"context"
	"sort"
	"strings"
	"time"

	"recruitment_backend/internal/leads/domain"
	"recruitment_backend/platform/apperr"
	"recruitment_backend/platform/logger"

	"github.com/google/uuid"
)

// Action labels shown in the lead history.
const (
	ActionApplicationReceived = "Application Received"
	ActionStatusChange        = "Status Change"
	ActionStatusOverride      = "Status Override"
	ActionAnswerCorrected     = "Answer Corrected"
	ActionNotesUpdated        = "Notes Updated"
)

// SystemLabel attributes entries written by automated processes.
const SystemLabel = "system"

// Store persists entries. Implementations must not reorder or rewrite them.
type Store interface {
	Append(ctx context.Context, entry domain.AuditEntry) error
	ListByLead(ctx context.Context, leadID uuid.UUID) ([]domain.AuditEntry, error)
}

type Logger struct {
	store Store
	log   *logger.Logger
	now   func() time.Time
}

type Option func(*Logger)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

func WithLogger(log *logger.Logger) Option {
	return func(l *Logger) { l.log = log }
}

func New(store Store, opts ...Option) *Logger {
	l := &Logger{store: store, log: logger.Discard(), now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends one entry. actorLabel must be a readable attribution such
// as "PI (Dana Whitfield)", not a raw id.
func (l *Logger) Record(ctx context.Context, leadID uuid.UUID, action, detail, actorLabel string) (domain.AuditEntry, error) {
	if strings.TrimSpace(action) == "" {
		return domain.AuditEntry{}, apperr.Validation("audit action is required").WithOp("audit.Record")
	}
	if err := domain.ValidateActorLabel(actorLabel); err != nil {
		return domain.AuditEntry{}, apperr.Validation(err.Error()).WithOp("audit.Record")
	}

	entry := domain.AuditEntry{
		ID:          uuid.New(),
		LeadID:      leadID,
		Action:      action,
		Detail:      detail,
		PerformedBy: strings.TrimSpace(actorLabel),
		CreatedAt:   l.now().UTC(),
	}
	if err := l.store.Append(ctx, entry); err != nil {
		l.log.DatabaseError("audit.append", err)
		return domain.AuditEntry{}, apperr.Unavailable("failed to write audit entry", err).WithOp("audit.Record")
	}
	return entry, nil
}

// RecordBy is Record with the label derived from actor.
func (l *Logger) RecordBy(ctx context.Context, leadID uuid.UUID, action, detail string, actor domain.Actor) (domain.AuditEntry, error) {
	return l.Record(ctx, leadID, action, detail, actor.Label())
}

// History returns the lead's entries newest first, ending with the
// synthetic "Application Received" entry stamped at lead creation.
func (l *Logger) History(ctx context.Context, lead domain.Lead) ([]domain.AuditEntry, error) {
	stored, err := l.store.ListByLead(ctx, lead.ID)
	if err != nil {
		l.log.DatabaseError("audit.list", err)
		return nil, apperr.Unavailable("failed to load audit history", err).WithOp("audit.History")
	}

	entries := make([]domain.AuditEntry, 0, len(stored)+1)
	for i := len(stored) - 1; i >= 0; i-- {
		entries = append(entries, stored[i])
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	return append(entries, ApplicationReceived(lead)), nil
}

// ApplicationReceived is the synthetic creation entry. It is never stored.
func ApplicationReceived(lead domain.Lead) domain.AuditEntry {
	return domain.AuditEntry{
		LeadID:      lead.ID,
		Action:      ActionApplicationReceived,
		Detail:      "Screener submitted",
		PerformedBy: SystemLabel,
		CreatedAt:   lead.CreatedAt,
	}
}
