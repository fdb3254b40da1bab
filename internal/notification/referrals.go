package notification

import (
	"context"
	"strings"

	"recruitment_backend/internal/email"
	"recruitment_backend/internal/events"
	"recruitment_backend/internal/leads/domain"
	"recruitment_backend/internal/leads/transport"
	"recruitment_backend/platform/logger"

	"github.com/google/uuid"
)

// LeadProjector loads a lead with its derived tier and contact strategy.
type LeadProjector interface {
	Get(ctx context.Context, id uuid.UUID, actor domain.Actor) (transport.LeadDetailResponse, error)
}

// Referrals emails site staff when a participant applies.
type Referrals struct {
	leads    LeadProjector
	sender   email.Sender
	boardURL string
	log      *logger.Logger
}

func NewReferrals(leads LeadProjector, sender email.Sender, boardURL string, log *logger.Logger) *Referrals {
	if sender == nil {
		sender = email.NoopSender{}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Referrals{leads: leads, sender: sender, boardURL: boardURL, log: log}
}

// RegisterHandlers subscribes to lead submissions.
func (r *Referrals) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadSubmitted{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.LeadSubmitted)
		if !ok {
			return nil
		}
		return r.HandleLeadSubmitted(ctx, e)
	}))
}

// HandleLeadSubmitted notifies every local contact with an email address,
// or the sponsor's central contact when the site lists none.
func (r *Referrals) HandleLeadSubmitted(ctx context.Context, e events.LeadSubmitted) error {
	detail, err := r.leads.Get(ctx, e.LeadID, domain.SystemActor())
	if err != nil {
		return err
	}
	lead := detail.Lead

	data := email.NewLeadEmail{
		TrialID:  lead.TrialID,
		Facility: lead.Contact.Facility,
		BoardURL: r.boardURL,
	}
	if lead.Tier != nil {
		data.TierLabel = lead.Tier.Label
		data.TierDetail = lead.Tier.Detail
	}

	recipients := recipientsFor(lead)
	if len(recipients) == 0 {
		r.log.Info("no referral recipient", "leadId", lead.ID, "siteId", lead.SiteID)
		return nil
	}

	var firstErr error
	for _, c := range recipients {
		data.RecipientName = c.Name
		if err := r.sender.SendNewLeadEmail(ctx, c.Email, data); err != nil {
			r.log.Error("referral email failed", "leadId", lead.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func recipientsFor(lead transport.LeadResponse) []domain.Contact {
	seen := make(map[string]struct{})
	out := make([]domain.Contact, 0)
	for _, c := range lead.Contact.LocalContacts {
		addr := strings.ToLower(strings.TrimSpace(c.Email))
		if addr == "" {
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, c)
	}
	if len(out) == 0 && lead.Contact.Central != nil && strings.TrimSpace(lead.Contact.Central.Email) != "" {
		out = append(out, *lead.Contact.Central)
	}
	return out
}
