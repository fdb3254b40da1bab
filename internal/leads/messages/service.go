// Package messages manages the conversation between a lead and site staff.
package messages

import (
	"context"
	"errors"
	"time"

	"recruitment_backend/internal/events"
	"recruitment_backend/internal/leads/domain"
	"recruitment_backend/internal/leads/repository"
	"recruitment_backend/platform/apperr"
	"recruitment_backend/platform/logger"
	"recruitment_backend/platform/sanitize"

	"github.com/google/uuid"
)

// Repository is the consumer-driven slice of the record store.
type Repository interface {
	GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	InsertMessage(ctx context.Context, msg domain.Message) (domain.Message, error)
	ListMessages(ctx context.Context, leadID uuid.UUID) ([]domain.Message, error)
	MarkMessagesRead(ctx context.Context, leadID uuid.UUID) (int64, time.Time, error)
}

// SiteLocator resolves the site a lead belongs to.
type SiteLocator interface {
	SiteOf(ctx context.Context, lead domain.Lead) (string, error)
}

type Service struct {
	repo  Repository
	sites SiteLocator
	bus   events.Bus
	log   *logger.Logger
}

func New(repo Repository, sites SiteLocator, bus events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{repo: repo, sites: sites, bus: bus, log: log}
}

// Send appends a researcher message. The actor needs write access to the
// lead's site.
func (s *Service) Send(ctx context.Context, leadID uuid.UUID, content string, actor domain.Actor) (domain.Message, error) {
	lead, siteID, err := s.load(ctx, leadID)
	if err != nil {
		return domain.Message{}, err
	}
	if !actor.CanWrite(siteID) {
		s.log.AuthEvent("message_send", actor.Label(), false, "no write access to site "+siteID)
		return domain.Message{}, apperr.Forbidden("no write access to this lead's site")
	}
	return s.insert(ctx, lead, siteID, domain.SenderResearcher, content)
}

// Receive appends a message from the participant. It counts as unread
// until staff open the conversation.
func (s *Service) Receive(ctx context.Context, leadID uuid.UUID, content string) (domain.Message, error) {
	lead, siteID, err := s.load(ctx, leadID)
	if err != nil {
		return domain.Message{}, err
	}
	return s.insert(ctx, lead, siteID, domain.SenderPatient, content)
}

func (s *Service) insert(ctx context.Context, lead domain.Lead, siteID string, sender domain.SenderRole, content string) (domain.Message, error) {
	clean := sanitize.Text(content)
	if clean == "" {
		return domain.Message{}, apperr.Validation("message is empty")
	}

	msg, err := s.repo.InsertMessage(ctx, domain.Message{
		ID:         uuid.New(),
		LeadID:     lead.ID,
		SenderRole: sender,
		Content:    clean,
		IsRead:     sender == domain.SenderResearcher,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		s.log.DatabaseError("messages.insert", err)
		return domain.Message{}, apperr.Unavailable("failed to send message", err)
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.MessageInserted{
			BaseEvent:  events.NewBaseEvent(),
			MessageID:  msg.ID,
			LeadID:     msg.LeadID,
			SiteID:     siteID,
			SenderRole: msg.SenderRole,
			Content:    msg.Content,
			CreatedAt:  msg.CreatedAt,
		})
	}
	return msg, nil
}

// List returns the conversation oldest first.
func (s *Service) List(ctx context.Context, leadID uuid.UUID, actor domain.Actor) ([]domain.Message, error) {
	_, siteID, err := s.load(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if !actor.CanRead(siteID) {
		return nil, apperr.Forbidden("no access to this lead's site")
	}
	items, err := s.repo.ListMessages(ctx, leadID)
	if err != nil {
		s.log.DatabaseError("messages.list", err)
		return nil, apperr.Unavailable("failed to load conversation", err)
	}
	return items, nil
}

// MarkReadAs clears the unread count on behalf of a staff member.
func (s *Service) MarkReadAs(ctx context.Context, leadID uuid.UUID, actor domain.Actor) error {
	lead, siteID, err := s.load(ctx, leadID)
	if err != nil {
		return err
	}
	if !actor.CanRead(siteID) {
		return apperr.Forbidden("no access to this lead's site")
	}
	return s.markRead(ctx, lead, siteID)
}

// MarkRead clears the unread count. Realtime sessions call it when a
// message arrives in the conversation being viewed. Calling it on a lead
// with nothing unread does nothing.
func (s *Service) MarkRead(ctx context.Context, leadID uuid.UUID) error {
	lead, siteID, err := s.load(ctx, leadID)
	if err != nil {
		return err
	}
	return s.markRead(ctx, lead, siteID)
}

func (s *Service) markRead(ctx context.Context, lead domain.Lead, siteID string) error {
	changed, readAt, err := s.repo.MarkMessagesRead(ctx, lead.ID)
	if err != nil {
		s.log.DatabaseError("messages.mark_read", err)
		return apperr.Unavailable("failed to mark messages read", err)
	}
	if changed == 0 || s.bus == nil {
		return nil
	}
	zero := 0
	s.bus.Publish(ctx, events.LeadStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		ChangeID:  uuid.New(),
		LeadID:    lead.ID,
		TrialID:   lead.TrialID,
		SiteID:    siteID,
		Patch:     domain.LeadPatch{UnreadCount: &zero},
		UpdatedAt: readAt,
		Actor:     domain.SystemActor().Label(),
	})
	return nil
}

func (s *Service) load(ctx context.Context, leadID uuid.UUID) (domain.Lead, string, error) {
	lead, err := s.repo.GetLead(ctx, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Lead{}, "", apperr.NotFound("lead not found")
	}
	if err != nil {
		s.log.DatabaseError("messages.get_lead", err)
		return domain.Lead{}, "", apperr.Unavailable("failed to load lead", err)
	}
	siteID, err := s.sites.SiteOf(ctx, lead)
	if err != nil {
		return domain.Lead{}, "", err
	}
	return lead, siteID, nil
}
