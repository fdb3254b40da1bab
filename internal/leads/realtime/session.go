package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"recruitment_backend/internal/leads/domain"
	"recruitment_backend/platform/logger"
	"recruitment_backend/platform/metrics"

	"github.com/google/uuid"
)

const defaultSeenCapacity = 4096

// MarkReader flags a lead's patient messages as read. It must be
// idempotent.
type MarkReader interface {
	MarkRead(ctx context.Context, leadID uuid.UUID) error
}

type pendingWrite struct {
	token uuid.UUID
	patch domain.LeadPatch
}

// fieldClock is the confirmed write time of each patchable lead field.
type fieldClock struct {
	status  time.Time
	notes   time.Time
	answers time.Time
	unread  time.Time
}

func newFieldClock(at time.Time) fieldClock {
	return fieldClock{status: at, notes: at, answers: at, unread: at}
}

// admit drops the fields of p that are older than their last confirmed
// write and advances the clock of the fields it keeps. A zero at keeps
// everything and leaves the clock alone.
func (c *fieldClock) admit(p domain.LeadPatch, at time.Time) domain.LeadPatch {
	if at.IsZero() {
		return p
	}
	out := p
	if p.Status != nil {
		if at.Before(c.status) {
			out.Status = nil
		} else {
			c.status = at
		}
	}
	if p.ResearcherNotes != nil {
		if at.Before(c.notes) {
			out.ResearcherNotes = nil
		} else {
			c.notes = at
		}
	}
	if p.Answers != nil {
		if at.Before(c.answers) {
			out.Answers = nil
		} else {
			c.answers = at
		}
	}
	if p.UnreadCount != nil {
		if at.Before(c.unread) {
			out.UnreadCount = nil
		} else {
			c.unread = at
		}
	}
	return out
}

func (c fieldClock) latest() time.Time {
	latest := c.status
	for _, t := range []time.Time{c.notes, c.answers, c.unread} {
		if t.After(latest) {
			latest = t
		}
	}
	return latest
}

// rowPatch carries every patchable field of a stored row.
func rowPatch(lead domain.Lead) domain.LeadPatch {
	status, notes, unread := lead.Status, lead.ResearcherNotes, lead.UnreadCount
	answers := domain.CloneAnswers(lead.Answers)
	if answers == nil {
		answers = []*string{}
	}
	return domain.LeadPatch{Status: &status, ResearcherNotes: &notes, Answers: answers, UnreadCount: &unread}
}

type leadState struct {
	confirmed domain.Lead
	clock     fieldClock
	pending   []pendingWrite
}

// view is the confirmed lead with outstanding optimistic patches on top.
func (s *leadState) view() domain.Lead {
	lead := s.confirmed
	lead.Answers = domain.CloneAnswers(lead.Answers)
	for _, p := range s.pending {
		p.patch.ApplyTo(&lead)
	}
	return lead
}

// Session is one board's local state: the leads it shows, their open
// transcripts and any optimistic edits not yet confirmed. Confirmed writes
// are ordered per field by UpdatedAt and the most recent one wins.
type Session struct {
	mu          sync.Mutex
	leads       map[uuid.UUID]*leadState
	transcripts map[uuid.UUID][]domain.Message
	seen        map[string]struct{}
	seenOrder   []string
	seenCap     int

	marker  MarkReader
	log     *logger.Logger
	metrics *metrics.Metrics
}

type Option func(*Session)

// WithSeenCapacity bounds the dedupe memory. The oldest ids are forgotten
// first.
func WithSeenCapacity(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.seenCap = n
		}
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(s *Session) { s.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

func NewSession(marker MarkReader, opts ...Option) *Session {
	s := &Session{
		leads:       make(map[uuid.UUID]*leadState),
		transcripts: make(map[uuid.UUID][]domain.Message),
		seen:        make(map[string]struct{}),
		seenCap:     defaultSeenCapacity,
		marker:      marker,
		log:         logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the confirmed state of the given leads.
func (s *Session) Load(leads ...domain.Lead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, lead := range leads {
		lead.Answers = domain.CloneAnswers(lead.Answers)
		s.leads[lead.ID] = &leadState{confirmed: lead, clock: newFieldClock(lead.UpdatedAt)}
	}
}

// LoadTranscript sets the known messages of a lead's conversation.
func (s *Session) LoadTranscript(leadID uuid.UUID, messages []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts[leadID] = append([]domain.Message{}, messages...)
	for _, m := range messages {
		s.markSeen(m.ID.String())
	}
}

// Lead returns the visible state of a lead.
func (s *Session) Lead(id uuid.UUID) (domain.Lead, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.leads[id]
	if !ok {
		return domain.Lead{}, false
	}
	return state.view(), true
}

func (s *Session) Transcript(leadID uuid.UUID) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message{}, s.transcripts[leadID]...)
}

// Apply merges one event given the current viewport. Replaying an event
// that was already merged changes nothing.
func (s *Session) Apply(ctx context.Context, ev Event, vp Viewport) (Update, error) {
	s.mu.Lock()
	update, markLead := s.applyLocked(ev, vp)
	s.mu.Unlock()

	s.metrics.IncrementRealtime(string(update.Result))

	if markLead == uuid.Nil || s.marker == nil {
		return update, nil
	}
	if err := s.marker.MarkRead(ctx, markLead); err != nil {
		s.log.Warn("mark read failed", "leadId", markLead, "error", err)
		return update, fmt.Errorf("mark read: %w", err)
	}
	update.MarkedRead = true
	return update, nil
}

// applyLocked returns the update and, when the mark-read side effect is
// due, the lead to mark.
func (s *Session) applyLocked(ev Event, vp Viewport) (Update, uuid.UUID) {
	update := Update{Kind: ev.Kind}
	if s.alreadySeen(ev) {
		update.Result = ResultDuplicate
		return update, uuid.Nil
	}

	state, ok := s.leads[ev.LeadID]
	if !ok {
		update.Result = ResultIgnored
		return update, uuid.Nil
	}

	switch ev.Kind {
	case KindLeadStatusChanged:
		admitted := state.clock.admit(ev.Patch, ev.UpdatedAt)
		s.markSeen(ev.ID)
		if admitted.IsEmpty() && !ev.Patch.IsEmpty() {
			update.Result = ResultStale
			return update, uuid.Nil
		}
		admitted.ApplyTo(&state.confirmed)
		if latest := state.clock.latest(); latest.After(state.confirmed.UpdatedAt) {
			state.confirmed.UpdatedAt = latest
		}
		state.dropOverridden(admitted)

		lead := state.view()
		update.Result = ResultApplied
		update.Lead = &lead
		return update, uuid.Nil

	case KindMessageInserted:
		if ev.Message == nil {
			update.Result = ResultIgnored
			return update, uuid.Nil
		}
		s.markSeen(ev.ID)
		if ev.Message.ID != uuid.Nil {
			s.markSeen(ev.Message.ID.String())
		}

		var markLead uuid.UUID
		if vp.IsViewing(ev.LeadID) {
			msg := *ev.Message
			s.transcripts[ev.LeadID] = append(s.transcripts[ev.LeadID], msg)
			update.Appended = &msg
			if msg.SenderRole == domain.SenderPatient {
				markLead = ev.LeadID
			}
		} else if ev.Message.SenderRole == domain.SenderPatient {
			state.confirmed.UnreadCount++
		}

		lead := state.view()
		update.Result = ResultApplied
		update.Lead = &lead
		return update, markLead

	default:
		update.Result = ResultIgnored
		return update, uuid.Nil
	}
}

// dropOverridden removes the fields of a confirmed remote patch from every
// pending optimistic write so the remote value shows.
func (s *leadState) dropOverridden(remote domain.LeadPatch) {
	kept := s.pending[:0]
	for _, p := range s.pending {
		p.patch = p.patch.Without(remote)
		kept = append(kept, p)
	}
	s.pending = kept
}

// BeginOptimistic shows patch immediately and returns a token to confirm
// or roll it back once the store answers.
func (s *Session) BeginOptimistic(leadID uuid.UUID, patch domain.LeadPatch) (uuid.UUID, domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.leads[leadID]
	if !ok {
		return uuid.Nil, domain.Lead{}, fmt.Errorf("lead %s: %w", leadID, ErrNotLoaded)
	}
	token := uuid.New()
	state.pending = append(state.pending, pendingWrite{token: token, patch: patch})
	return token, state.view(), nil
}

// Confirm settles an optimistic write with the row the store returned. The
// stored row replaces the confirmed state unless newer confirmed writes
// were already merged, in which case only the fields they did not touch
// are taken from it.
func (s *Session) Confirm(token uuid.UUID, stored domain.Lead) (domain.Lead, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.leads[stored.ID]
	if !ok {
		return domain.Lead{}, false
	}
	state.removePending(token)
	switch {
	case stored.UpdatedAt.IsZero():
		stored.Answers = domain.CloneAnswers(stored.Answers)
		state.confirmed = stored
	case !stored.UpdatedAt.Before(state.clock.latest()):
		stored.Answers = domain.CloneAnswers(stored.Answers)
		state.confirmed = stored
		state.clock = newFieldClock(stored.UpdatedAt)
	default:
		state.clock.admit(rowPatch(stored), stored.UpdatedAt).ApplyTo(&state.confirmed)
	}
	return state.view(), true
}

// Rollback discards an optimistic write after the store rejected it. The
// lead shows its last confirmed values again.
func (s *Session) Rollback(leadID, token uuid.UUID) (domain.Lead, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.leads[leadID]
	if !ok {
		return domain.Lead{}, false
	}
	state.removePending(token)
	return state.view(), true
}

func (s *leadState) removePending(token uuid.UUID) (pendingWrite, bool) {
	for i, p := range s.pending {
		if p.token == token {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return p, true
		}
	}
	return pendingWrite{}, false
}

// alreadySeen reports whether the change or the message it carries was
// merged before.
func (s *Session) alreadySeen(ev Event) bool {
	if ev.ID != "" {
		if _, ok := s.seen[ev.ID]; ok {
			return true
		}
	}
	if ev.Message != nil && ev.Message.ID != uuid.Nil {
		if _, ok := s.seen[ev.Message.ID.String()]; ok {
			return true
		}
	}
	return false
}

func (s *Session) markSeen(id string) {
	if id == "" {
		return
	}
	if _, ok := s.seen[id]; ok {
		return
	}
	s.seen[id] = struct{}{}
	s.seenOrder = append(s.seenOrder, id)
	if len(s.seenOrder) > s.seenCap {
		oldest := s.seenOrder[0]
		s.seenOrder = s.seenOrder[1:]
		delete(s.seen, oldest)
	}
}
