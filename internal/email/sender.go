// Package email delivers site staff notifications over SMTP.
package email

import (
	"context"

	"recruitment_backend/platform/config"
)

// NewLeadEmail is the content of a new referral notification.
type NewLeadEmail struct {
	RecipientName string
	TrialID       string
	Facility      string
	TierLabel     string
	TierDetail    string
	BoardURL      string
}

type Sender interface {
	SendNewLeadEmail(ctx context.Context, toEmail string, data NewLeadEmail) error
}

type NoopSender struct{}

func (NoopSender) SendNewLeadEmail(context.Context, string, NewLeadEmail) error {
	return nil
}

// NewSender returns an SMTP sender, or NoopSender when SMTP is not configured.
func NewSender(cfg config.EmailConfig) Sender {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	)
}
