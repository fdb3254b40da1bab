// Package pipeline governs lead status transitions and their side effects.
package pipeline

import (
	"fmt"

	"recruitment_backend/internal/leads/domain"
	"recruitment_backend/platform/apperr"
)

// Outcome says what a requested transition amounts to.
type Outcome int

const (
	// OutcomeNoop is a request for the status the lead already has.
	OutcomeNoop Outcome = iota
	OutcomeApply
	// OutcomeOverride leaves a terminal status under administrative override.
	OutcomeOverride
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoop:
		return "noop"
	case OutcomeApply:
		return "applied"
	case OutcomeOverride:
		return "overridden"
	default:
		return "unknown"
	}
}

// Decide checks a transition against the pipeline rules:
//
//   - New, Contacted and Scheduled move freely among each other.
//   - Enrolled is reachable only from Scheduled.
//   - Not Eligible and Withdrawn are reachable from any non-terminal status.
//   - Trial Closed is imposed by the system when the protocol closes.
//   - A terminal status can only be left with override by an administrator.
//
// Asking for the current status is always a no-op.
func Decide(from, to domain.Status, actor domain.Actor, override bool) (Outcome, error) {
	if !to.IsKnown() {
		return OutcomeNoop, apperr.Validation(fmt.Sprintf("unknown status %q", to))
	}
	if from == to {
		return OutcomeNoop, nil
	}
	if to == domain.StatusTrialClosed && !actor.IsSystem() {
		return OutcomeNoop, apperr.Conflict("Trial Closed is set when the protocol closes")
	}

	if from.IsTerminal() {
		if !override {
			return OutcomeNoop, apperr.Conflict(fmt.Sprintf("cannot move from %s to %s", from, to)).
				WithDetails(map[string]string{"from": string(from), "to": string(to)})
		}
		if !actor.IsAdministrator() {
			return OutcomeNoop, apperr.Forbidden("only administrators can override a terminal status")
		}
		return OutcomeOverride, nil
	}

	if to == domain.StatusEnrolled && from != domain.StatusScheduled {
		return OutcomeNoop, apperr.Conflict(fmt.Sprintf("cannot move from %s to %s", from, to)).
			WithDetails(map[string]string{"from": string(from), "to": string(to)})
	}
	return OutcomeApply, nil
}

// AllowedTargets lists the statuses an ordinary transition may reach from
// from, in board order. Terminal statuses have none.
func AllowedTargets(from domain.Status) []domain.Status {
	out := make([]domain.Status, 0)
	for _, to := range domain.AllStatuses() {
		if to == from {
			continue
		}
		if outcome, err := Decide(from, to, domain.Actor{Role: domain.RoleCoordinator}, false); err == nil && outcome == OutcomeApply {
			out = append(out, to)
		}
	}
	return out
}
