package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recruitment_backend/internal/events"
	"recruitment_backend/internal/leads/audit"
	"recruitment_backend/internal/leads/domain"
	"recruitment_backend/internal/leads/matching"
	"recruitment_backend/internal/leads/repository"
	"recruitment_backend/platform/apperr"
	"recruitment_backend/platform/logger"
	"recruitment_backend/platform/metrics"

	"github.com/google/uuid"
)

// Repository is the slice of the record store the pipeline needs.
type Repository interface {
	GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	UpdateLeadStatus(ctx context.Context, id uuid.UUID, status domain.Status) (domain.Lead, error)
	ListLeadsByTrial(ctx context.Context, trialID string) ([]domain.Lead, error)
	ListClaimsByTrial(ctx context.Context, trialID string) ([]domain.Claim, error)
	MarkMessagesRead(ctx context.Context, leadID uuid.UUID) (int64, time.Time, error)
	SetTrialStatus(ctx context.Context, id string, status domain.TrialStatus) error
}

// AuditRecorder appends history entries.
type AuditRecorder interface {
	RecordBy(ctx context.Context, leadID uuid.UUID, action, detail string, actor domain.Actor) (domain.AuditEntry, error)
}

type Service struct {
	repo    Repository
	audit   AuditRecorder
	bus     events.Bus
	log     *logger.Logger
	metrics *metrics.Metrics
}

func New(repo Repository, recorder AuditRecorder, bus events.Bus, log *logger.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{repo: repo, audit: recorder, bus: bus, log: log, metrics: m}
}

// Transition moves a lead to status to. Requesting the current status
// returns the lead unchanged. The actor must hold write access to the
// lead's site; a rejected request has no side effects. When the store
// write fails the error is KindUnavailable and nothing was audited, so
// callers holding optimistic state must roll it back.
func (s *Service) Transition(ctx context.Context, leadID uuid.UUID, to domain.Status, actor domain.Actor) (domain.Lead, error) {
	return s.transition(ctx, leadID, to, actor, false)
}

// Override leaves a terminal status. Only administrators may call it and
// the change is audited as a status override.
func (s *Service) Override(ctx context.Context, leadID uuid.UUID, to domain.Status, actor domain.Actor) (domain.Lead, error) {
	if !actor.IsAdministrator() {
		s.log.AuthEvent("status_override", actor.Label(), false, "not an administrator")
		s.metrics.IncrementTransition("rejected")
		return domain.Lead{}, apperr.Forbidden("only administrators can override a terminal status")
	}
	return s.transition(ctx, leadID, to, actor, true)
}

func (s *Service) transition(ctx context.Context, leadID uuid.UUID, to domain.Status, actor domain.Actor, override bool) (domain.Lead, error) {
	lead, err := s.loadLead(ctx, leadID)
	if err != nil {
		return domain.Lead{}, err
	}

	siteID, err := s.SiteOf(ctx, lead)
	if err != nil {
		return domain.Lead{}, err
	}
	if !actor.CanWrite(siteID) {
		s.log.AuthEvent("lead_transition", actor.Label(), false, "no write access to site "+siteID)
		s.metrics.IncrementTransition("rejected")
		return domain.Lead{}, apperr.Forbidden("no write access to this lead's site")
	}

	outcome, err := Decide(lead.Status, to, actor, override)
	if err != nil {
		s.metrics.IncrementTransition("rejected")
		return domain.Lead{}, err
	}
	if outcome == OutcomeNoop {
		s.metrics.IncrementTransition(outcome.String())
		return lead, nil
	}

	return s.apply(ctx, lead, siteID, to, actor, outcome)
}

// apply persists the status, then audits, clears unread on terminal
// statuses and publishes the change.
func (s *Service) apply(ctx context.Context, lead domain.Lead, siteID string, to domain.Status, actor domain.Actor, outcome Outcome) (domain.Lead, error) {
	from := lead.Status
	updated, err := s.repo.UpdateLeadStatus(ctx, lead.ID, to)
	if err != nil {
		s.log.DatabaseError("pipeline.update_status", err)
		s.metrics.IncrementTransition("failed")
		return domain.Lead{}, apperr.Unavailable("failed to save status", err).WithOp("pipeline.Transition")
	}

	action, detail := audit.ActionStatusChange, fmt.Sprintf("Moved from %s to %s", from, to)
	if outcome == OutcomeOverride && !actor.IsSystem() {
		action, detail = audit.ActionStatusOverride, fmt.Sprintf("Overrode %s to %s", from, to)
	}
	if _, err := s.audit.RecordBy(ctx, lead.ID, action, detail, actor); err != nil {
		s.log.Error("audit write failed after status change", "leadId", lead.ID, "error", err)
		s.metrics.IncrementAuditFailure()
	}

	if to.IsTerminal() && updated.UnreadCount > 0 {
		if _, readAt, err := s.repo.MarkMessagesRead(ctx, lead.ID); err != nil {
			s.log.DatabaseError("pipeline.mark_read", err)
		} else {
			updated.UnreadCount = 0
			updated.UpdatedAt = readAt
		}
	}

	patch := domain.StatusPatch(to)
	unread := updated.UnreadCount
	patch.UnreadCount = &unread
	if s.bus != nil {
		s.bus.Publish(ctx, events.LeadStatusChanged{
			BaseEvent: events.NewBaseEvent(),
			ChangeID:  uuid.New(),
			LeadID:    updated.ID,
			TrialID:   updated.TrialID,
			SiteID:    siteID,
			Patch:     patch,
			UpdatedAt: updated.UpdatedAt,
			Actor:     actor.Label(),
		})
	}

	s.log.LeadTransition(updated.ID.String(), string(from), string(to), actor.Label())
	s.metrics.IncrementTransition(outcome.String())
	return updated, nil
}

// ImposeTrialClosed moves every lead of the trial to Trial Closed as the
// system actor and marks the trial closed. Leads already closed are
// skipped. Per-lead failures are collected and do not stop the sweep.
func (s *Service) ImposeTrialClosed(ctx context.Context, trialID string) (int, error) {
	if err := s.repo.SetTrialStatus(ctx, trialID, domain.TrialClosed); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, apperr.NotFound("trial not found")
		}
		return 0, apperr.Unavailable("failed to close trial", err)
	}

	leads, err := s.repo.ListLeadsByTrial(ctx, trialID)
	if err != nil {
		return 0, apperr.Unavailable("failed to list trial leads", err)
	}
	claims, err := s.repo.ListClaimsByTrial(ctx, trialID)
	if err != nil {
		return 0, apperr.Unavailable("failed to list trial sites", err)
	}

	system := domain.SystemActor()
	closed := 0
	var errs []error
	for _, lead := range leads {
		outcome, err := Decide(lead.Status, domain.StatusTrialClosed, system, true)
		if err != nil || outcome == OutcomeNoop {
			continue
		}
		siteID := ""
		if claim := matching.ResolveClaim(lead, claims); claim != nil {
			siteID = claim.Location.ID
		}
		if _, err := s.apply(ctx, lead, siteID, domain.StatusTrialClosed, system, outcome); err != nil {
			errs = append(errs, fmt.Errorf("lead %s: %w", lead.ID, err))
			continue
		}
		closed++
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.TrialClosed{BaseEvent: events.NewBaseEvent(), TrialID: trialID})
	}
	return closed, errors.Join(errs...)
}

// SiteOf returns the location id of the approved site the lead belongs to,
// or "" for an unclaimed lead.
func (s *Service) SiteOf(ctx context.Context, lead domain.Lead) (string, error) {
	claims, err := s.repo.ListClaimsByTrial(ctx, lead.TrialID)
	if err != nil {
		s.log.DatabaseError("pipeline.list_claims", err)
		return "", apperr.Unavailable("failed to load trial sites", err)
	}
	if claim := matching.ResolveClaim(lead, claims); claim != nil {
		return claim.Location.ID, nil
	}
	return "", nil
}

func (s *Service) loadLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	lead, err := s.repo.GetLead(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Lead{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		s.log.DatabaseError("pipeline.get_lead", err)
		return domain.Lead{}, apperr.Unavailable("failed to load lead", err)
	}
	return lead, nil
}
