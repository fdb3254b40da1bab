package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"recruitment_backend/internal/leads/domain"
	"recruitment_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{ *MemoryStore }

func (failingStore) Append(context.Context, domain.AuditEntry) error {
	return errors.New("connection reset")
}

func steppingClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Minute)
		return current
	}
}

func TestRecordAndHistoryNewestFirst(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	lead := domain.Lead{ID: uuid.New(), CreatedAt: created}
	log := New(NewMemoryStore(), WithClock(steppingClock(created)))
	ctx := context.Background()

	_, err := log.Record(ctx, lead.ID, ActionStatusChange, "Moved from New to Contacted", "Coordinator (Ana)")
	require.NoError(t, err)
	_, err = log.RecordBy(ctx, lead.ID, ActionNotesUpdated, "", domain.Actor{Role: domain.RolePI, Name: "Dr. Lee"})
	require.NoError(t, err)

	history, err := log.History(ctx, lead)
	require.NoError(t, err)
	require.Len(t, history, 3)

	assert.Equal(t, ActionNotesUpdated, history[0].Action)
	assert.Equal(t, "PI (Dr. Lee)", history[0].PerformedBy)
	assert.Equal(t, ActionStatusChange, history[1].Action)
	assert.Equal(t, ActionApplicationReceived, history[2].Action)
	assert.Equal(t, SystemLabel, history[2].PerformedBy)
	assert.Equal(t, created, history[2].CreatedAt)
}

func TestHistoryTiesKeepLatestAppendFirst(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	lead := domain.Lead{ID: uuid.New(), CreatedAt: fixed}
	log := New(NewMemoryStore(), WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	_, _ = log.Record(ctx, lead.ID, "first", "", "Admin (root)")
	_, _ = log.Record(ctx, lead.ID, "second", "", "Admin (root)")

	history, err := log.History(ctx, lead)
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "first", ActionApplicationReceived}, []string{history[0].Action, history[1].Action, history[2].Action})
}

func TestRecordRejectsRawIDs(t *testing.T) {
	log := New(NewMemoryStore())

	_, err := log.Record(context.Background(), uuid.New(), ActionStatusChange, "", uuid.NewString())
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = log.Record(context.Background(), uuid.New(), ActionStatusChange, "", "42")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestRecordStoreFailureIsUnavailable(t *testing.T) {
	log := New(failingStore{NewMemoryStore()})

	_, err := log.Record(context.Background(), uuid.New(), ActionStatusChange, "", "Admin (root)")
	assert.True(t, apperr.Is(err, apperr.KindUnavailable))
}

func TestHistoryForLeadWithoutEntries(t *testing.T) {
	lead := domain.Lead{ID: uuid.New(), CreatedAt: time.Now()}

	history, err := New(NewMemoryStore()).History(context.Background(), lead)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, ActionApplicationReceived, history[0].Action)
}
