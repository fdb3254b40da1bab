package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"recruitment_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingMarker struct {
	mu    sync.Mutex
	calls []uuid.UUID
	err   error
}

func (m *countingMarker) MarkRead(_ context.Context, leadID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, leadID)
	return m.err
}

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func seeded(t *testing.T, marker MarkReader) (*Session, domain.Lead) {
	t.Helper()
	lead := domain.Lead{ID: uuid.New(), Status: domain.StatusNew, ResearcherNotes: "first call", UnreadCount: 0, UpdatedAt: t0}
	s := NewSession(marker)
	s.Load(lead)
	return s, lead
}

func patientMessage(leadID uuid.UUID) Event {
	id := uuid.New()
	return Event{
		ID:      id.String(),
		Kind:    KindMessageInserted,
		LeadID:  leadID,
		Message: &domain.Message{ID: id, LeadID: leadID, SenderRole: domain.SenderPatient, Content: "hello"},
	}
}

func TestDuplicateMessageCountsOnce(t *testing.T) {
	s, lead := seeded(t, &countingMarker{})
	ev := patientMessage(lead.ID)
	ev.ID = "m1"

	first, err := s.Apply(context.Background(), ev, Viewport{})
	require.NoError(t, err)
	second, err := s.Apply(context.Background(), ev, Viewport{})
	require.NoError(t, err)

	assert.Equal(t, ResultApplied, first.Result)
	assert.Equal(t, ResultDuplicate, second.Result)
	got, _ := s.Lead(lead.ID)
	assert.Equal(t, 1, got.UnreadCount)
}

func TestMessageForActiveConversationIsAppendedAndMarkedRead(t *testing.T) {
	marker := &countingMarker{}
	s, lead := seeded(t, marker)

	update, err := s.Apply(context.Background(), patientMessage(lead.ID), Viewport{ActiveConversation: lead.ID})
	require.NoError(t, err)

	assert.True(t, update.MarkedRead)
	require.NotNil(t, update.Appended)
	assert.Len(t, s.Transcript(lead.ID), 1)
	got, _ := s.Lead(lead.ID)
	assert.Zero(t, got.UnreadCount)
	assert.Equal(t, []uuid.UUID{lead.ID}, marker.calls)
}

func TestViewportIsReadPerCall(t *testing.T) {
	s, lead := seeded(t, &countingMarker{})
	other := domain.Lead{ID: uuid.New(), UpdatedAt: t0}
	s.Load(other)

	_, err := s.Apply(context.Background(), patientMessage(lead.ID), Viewport{ActiveConversation: lead.ID})
	require.NoError(t, err)
	// The user switched to another conversation.
	_, err = s.Apply(context.Background(), patientMessage(lead.ID), Viewport{ActiveConversation: other.ID})
	require.NoError(t, err)

	got, _ := s.Lead(lead.ID)
	assert.Equal(t, 1, got.UnreadCount)
	assert.Len(t, s.Transcript(lead.ID), 1)
}

func TestResearcherMessageNeverCountsUnread(t *testing.T) {
	marker := &countingMarker{}
	s, lead := seeded(t, marker)
	ev := patientMessage(lead.ID)
	ev.Message.SenderRole = domain.SenderResearcher

	_, err := s.Apply(context.Background(), ev, Viewport{})
	require.NoError(t, err)
	update, err := s.Apply(context.Background(), patientMessage(lead.ID), Viewport{ActiveConversation: uuid.New()})
	require.NoError(t, err)

	got, _ := s.Lead(lead.ID)
	assert.Equal(t, 1, got.UnreadCount)
	assert.False(t, update.MarkedRead)
	assert.Empty(t, marker.calls)
}

func TestMarkReadFailureIsReported(t *testing.T) {
	s, lead := seeded(t, &countingMarker{err: errors.New("store down")})

	update, err := s.Apply(context.Background(), patientMessage(lead.ID), Viewport{ActiveConversation: lead.ID})
	assert.Error(t, err)
	assert.False(t, update.MarkedRead)
	assert.Len(t, s.Transcript(lead.ID), 1)
}

func TestStatusPatchMergesShallowly(t *testing.T) {
	s, lead := seeded(t, nil)

	update, err := s.Apply(context.Background(), Event{
		ID: "c1", Kind: KindLeadStatusChanged, LeadID: lead.ID,
		Patch: domain.StatusPatch(domain.StatusContacted), UpdatedAt: t0.Add(time.Second),
	}, Viewport{})
	require.NoError(t, err)

	require.NotNil(t, update.Lead)
	assert.Equal(t, domain.StatusContacted, update.Lead.Status)
	assert.Equal(t, "first call", update.Lead.ResearcherNotes)
}

func TestOutOfOrderPatchesKeepNewest(t *testing.T) {
	s, lead := seeded(t, nil)
	ctx := context.Background()

	_, _ = s.Apply(ctx, Event{ID: "c2", Kind: KindLeadStatusChanged, LeadID: lead.ID,
		Patch: domain.StatusPatch(domain.StatusScheduled), UpdatedAt: t0.Add(2 * time.Second)}, Viewport{})
	late, _ := s.Apply(ctx, Event{ID: "c1", Kind: KindLeadStatusChanged, LeadID: lead.ID,
		Patch: domain.StatusPatch(domain.StatusContacted), UpdatedAt: t0.Add(time.Second)}, Viewport{})

	assert.Equal(t, ResultStale, late.Result)
	got, _ := s.Lead(lead.ID)
	assert.Equal(t, domain.StatusScheduled, got.Status)
}

func TestOlderPatchOnAnotherFieldStillApplies(t *testing.T) {
	s, lead := seeded(t, nil)
	ctx := context.Background()
	zero := 0

	_, err := s.Apply(ctx, Event{ID: "read", Kind: KindLeadStatusChanged, LeadID: lead.ID,
		Patch: domain.LeadPatch{UnreadCount: &zero}, UpdatedAt: t0.Add(2 * time.Second)}, Viewport{})
	require.NoError(t, err)
	update, err := s.Apply(ctx, Event{ID: "moved", Kind: KindLeadStatusChanged, LeadID: lead.ID,
		Patch: domain.StatusPatch(domain.StatusContacted), UpdatedAt: t0.Add(time.Second)}, Viewport{})
	require.NoError(t, err)

	assert.Equal(t, ResultApplied, update.Result)
	got, _ := s.Lead(lead.ID)
	assert.Equal(t, domain.StatusContacted, got.Status)
	assert.Equal(t, t0.Add(2*time.Second), got.UpdatedAt)
}

func TestPartlyStalePatchKeepsNewerFields(t *testing.T) {
	s, lead := seeded(t, nil)
	ctx := context.Background()

	_, _ = s.Apply(ctx, Event{ID: "c2", Kind: KindLeadStatusChanged, LeadID: lead.ID,
		Patch: domain.StatusPatch(domain.StatusScheduled), UpdatedAt: t0.Add(2 * time.Second)}, Viewport{})

	unread := 3
	older := domain.StatusPatch(domain.StatusContacted)
	older.UnreadCount = &unread
	update, err := s.Apply(ctx, Event{ID: "c1", Kind: KindLeadStatusChanged, LeadID: lead.ID,
		Patch: older, UpdatedAt: t0.Add(time.Second)}, Viewport{})
	require.NoError(t, err)

	assert.Equal(t, ResultApplied, update.Result)
	got, _ := s.Lead(lead.ID)
	assert.Equal(t, domain.StatusScheduled, got.Status)
	assert.Equal(t, 3, got.UnreadCount)
}

func TestSameMessageUnderNewChangeIDCountsOnce(t *testing.T) {
	s, lead := seeded(t, nil)
	ctx := context.Background()
	ev := patientMessage(lead.ID)

	for _, changeID := range []string{"chg-1", "chg-2", ""} {
		ev.ID = changeID
		_, err := s.Apply(ctx, ev, Viewport{})
		require.NoError(t, err)
	}

	got, _ := s.Lead(lead.ID)
	assert.Equal(t, 1, got.UnreadCount)
}

func TestMessageAlreadyInTranscriptIsDuplicate(t *testing.T) {
	s, lead := seeded(t, nil)
	ev := patientMessage(lead.ID)
	s.LoadTranscript(lead.ID, []domain.Message{*ev.Message})

	ev.ID = "chg-late"
	update, err := s.Apply(context.Background(), ev, Viewport{})
	require.NoError(t, err)
	assert.Equal(t, ResultDuplicate, update.Result)
}

func TestUnknownLeadIsIgnored(t *testing.T) {
	s, _ := seeded(t, nil)
	update, err := s.Apply(context.Background(), patientMessage(uuid.New()), Viewport{})
	require.NoError(t, err)
	assert.Equal(t, ResultIgnored, update.Result)
}

func TestOptimisticConfirm(t *testing.T) {
	s, lead := seeded(t, nil)

	token, shown, err := s.BeginOptimistic(lead.ID, domain.StatusPatch(domain.StatusContacted))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusContacted, shown.Status)

	stored := lead
	stored.Status = domain.StatusContacted
	stored.UpdatedAt = t0.Add(time.Second)
	got, ok := s.Confirm(token, stored)
	require.True(t, ok)
	assert.Equal(t, domain.StatusContacted, got.Status)
}

func TestOptimisticRollbackRestoresConfirmed(t *testing.T) {
	s, lead := seeded(t, nil)

	token, _, err := s.BeginOptimistic(lead.ID, domain.StatusPatch(domain.StatusScheduled))
	require.NoError(t, err)

	got, ok := s.Rollback(lead.ID, token)
	require.True(t, ok)
	assert.Equal(t, domain.StatusNew, got.Status)
}

func TestRemoteWriteOverridesPendingField(t *testing.T) {
	s, lead := seeded(t, nil)
	notes := "local draft"
	patch := domain.StatusPatch(domain.StatusContacted)
	patch.ResearcherNotes = &notes

	token, _, err := s.BeginOptimistic(lead.ID, patch)
	require.NoError(t, err)

	_, err = s.Apply(context.Background(), Event{ID: "remote", Kind: KindLeadStatusChanged, LeadID: lead.ID,
		Patch: domain.StatusPatch(domain.StatusWithdrawn), UpdatedAt: t0.Add(2 * time.Second)}, Viewport{})
	require.NoError(t, err)

	got, _ := s.Lead(lead.ID)
	assert.Equal(t, domain.StatusWithdrawn, got.Status, "confirmed remote status wins")
	assert.Equal(t, "local draft", got.ResearcherNotes, "untouched local field stays provisional")

	// The local write was confirmed earlier than the remote one.
	stored := lead
	stored.Status = domain.StatusContacted
	stored.ResearcherNotes = notes
	stored.UpdatedAt = t0.Add(time.Second)
	got, _ = s.Confirm(token, stored)
	assert.Equal(t, domain.StatusWithdrawn, got.Status)
	assert.Equal(t, "local draft", got.ResearcherNotes)
}

func TestSeenCapacityEvictsOldest(t *testing.T) {
	s := NewSession(nil, WithSeenCapacity(2))
	lead := domain.Lead{ID: uuid.New()}
	s.Load(lead)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		ev := patientMessage(lead.ID)
		ev.ID = id
		_, _ = s.Apply(ctx, ev, Viewport{})
	}
	replay := patientMessage(lead.ID)
	replay.ID = "c"
	update, _ := s.Apply(ctx, replay, Viewport{})
	assert.Equal(t, ResultDuplicate, update.Result)

	forgotten := patientMessage(lead.ID)
	forgotten.ID = "a"
	update, _ = s.Apply(ctx, forgotten, Viewport{})
	assert.Equal(t, ResultApplied, update.Result)
}
