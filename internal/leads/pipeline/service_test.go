package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"recruitment_backend/internal/events"
	"recruitment_backend/internal/leads/audit"
	"recruitment_backend/internal/leads/domain"
	"recruitment_backend/internal/leads/repository"
	"recruitment_backend/platform/apperr"
	"recruitment_backend/platform/metrics"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) changes() []events.LeadStatusChanged {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]events.LeadStatusChanged, 0)
	for _, e := range b.events {
		if c, ok := e.(events.LeadStatusChanged); ok {
			out = append(out, c)
		}
	}
	return out
}

// failingAudit rejects every write.
type failingAudit struct{}

func (failingAudit) RecordBy(context.Context, uuid.UUID, string, string, domain.Actor) (domain.AuditEntry, error) {
	return domain.AuditEntry{}, errors.New("audit down")
}

type fixture struct {
	store   *repository.Memory
	audit   *audit.Logger
	bus     *recordingBus
	metrics *metrics.Metrics
	svc     *Service
	lead    domain.Lead
}

func newFixture(t *testing.T, status domain.Status) *fixture {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemory()
	require.NoError(t, store.UpsertTrial(ctx, domain.Trial{ID: "NCT001", Title: "Migraine"}))
	store.AddClaim(domain.Claim{TrialID: "NCT001", Status: domain.ClaimApproved, Location: domain.SiteLocation{ID: "loc-42", City: "Austin", State: "TX"}})
	loc := "loc-42"
	lead, err := store.CreateLead(ctx, domain.Lead{TrialID: "NCT001", LocationID: &loc, Name: "Jane", Status: status})
	require.NoError(t, err)

	f := &fixture{store: store, audit: audit.New(store), bus: &recordingBus{}, metrics: metrics.NewWithRegistry(prometheus.NewRegistry()), lead: lead}
	f.svc = New(store, f.audit, f.bus, nil, f.metrics)
	return f
}

func (f *fixture) history(t *testing.T) []domain.AuditEntry {
	t.Helper()
	lead, err := f.store.GetLead(context.Background(), f.lead.ID)
	require.NoError(t, err)
	entries, err := f.audit.History(context.Background(), lead)
	require.NoError(t, err)
	return entries
}

func TestTransitionPersistsAuditsAndPublishes(t *testing.T) {
	f := newFixture(t, domain.StatusNew)

	got, err := f.svc.Transition(context.Background(), f.lead.ID, domain.StatusContacted, coordinator)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusContacted, got.Status)

	entries := f.history(t)
	require.Len(t, entries, 2)
	assert.Equal(t, audit.ActionStatusChange, entries[0].Action)
	assert.Equal(t, "Moved from New to Contacted", entries[0].Detail)
	assert.Equal(t, "Coordinator (Ana)", entries[0].PerformedBy)

	changes := f.bus.changes()
	require.Len(t, changes, 1)
	assert.Equal(t, "loc-42", changes[0].SiteID)
	assert.Equal(t, domain.StatusContacted, *changes[0].Patch.Status)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Transitions.WithLabelValues("applied")))
}

func TestEnrolledTwiceIsIdempotent(t *testing.T) {
	f := newFixture(t, domain.StatusScheduled)
	ctx := context.Background()

	first, err := f.svc.Transition(ctx, f.lead.ID, domain.StatusEnrolled, coordinator)
	require.NoError(t, err)
	second, err := f.svc.Transition(ctx, f.lead.ID, domain.StatusEnrolled, coordinator)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusEnrolled, first.Status)
	assert.Equal(t, domain.StatusEnrolled, second.Status)
	assert.Len(t, f.history(t), 2, "no-op must not be audited")
	assert.Len(t, f.bus.changes(), 1)
}

func TestEnrolledToNewRejected(t *testing.T) {
	f := newFixture(t, domain.StatusEnrolled)

	_, err := f.svc.Transition(context.Background(), f.lead.ID, domain.StatusNew, coordinator)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	lead, _ := f.store.GetLead(context.Background(), f.lead.ID)
	assert.Equal(t, domain.StatusEnrolled, lead.Status)
	assert.Len(t, f.history(t), 1)
}

func TestUnauthorizedActorHasNoSideEffects(t *testing.T) {
	f := newFixture(t, domain.StatusNew)
	outsiders := []domain.Actor{
		{Role: domain.RoleCoordinator, Name: "Other", Sites: []string{"loc-99"}},
		{Role: domain.RoleViewer, Name: "Read Only", Sites: []string{"loc-42"}},
	}

	for _, actor := range outsiders {
		_, err := f.svc.Transition(context.Background(), f.lead.ID, domain.StatusContacted, actor)
		assert.True(t, apperr.Is(err, apperr.KindForbidden), "actor %s", actor.Label())
	}

	lead, _ := f.store.GetLead(context.Background(), f.lead.ID)
	assert.Equal(t, domain.StatusNew, lead.Status)
	assert.Len(t, f.history(t), 1)
	assert.Empty(t, f.bus.changes())
}

func TestPersistenceFailureIsUnavailableAndNotAudited(t *testing.T) {
	f := newFixture(t, domain.StatusNew)
	f.store.FailWrites = errors.New("connection refused")

	_, err := f.svc.Transition(context.Background(), f.lead.ID, domain.StatusContacted, coordinator)
	assert.True(t, apperr.Is(err, apperr.KindUnavailable))

	f.store.FailWrites = nil
	assert.Len(t, f.history(t), 1)
	assert.Empty(t, f.bus.changes())
}

func TestAuditFailureStillReturnsSuccess(t *testing.T) {
	f := newFixture(t, domain.StatusNew)
	svc := New(f.store, failingAudit{}, f.bus, nil, f.metrics)

	got, err := svc.Transition(context.Background(), f.lead.ID, domain.StatusContacted, coordinator)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusContacted, got.Status)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.AuditWriteFailures))
}

func TestTerminalTransitionClearsUnread(t *testing.T) {
	f := newFixture(t, domain.StatusContacted)
	ctx := context.Background()
	_, err := f.store.InsertMessage(ctx, domain.Message{LeadID: f.lead.ID, SenderRole: domain.SenderPatient, Content: "any news?"})
	require.NoError(t, err)

	got, err := f.svc.Transition(ctx, f.lead.ID, domain.StatusWithdrawn, coordinator)
	require.NoError(t, err)
	assert.Zero(t, got.UnreadCount)

	changes := f.bus.changes()
	require.Len(t, changes, 1)
	assert.Zero(t, *changes[0].Patch.UnreadCount)
}

func TestOverride(t *testing.T) {
	f := newFixture(t, domain.StatusNotEligible)
	ctx := context.Background()

	_, err := f.svc.Override(ctx, f.lead.ID, domain.StatusNew, coordinator)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	oam := domain.Actor{Role: domain.RoleOAM, Name: "Olivia"}
	got, err := f.svc.Override(ctx, f.lead.ID, domain.StatusNew, oam)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNew, got.Status)

	entries := f.history(t)
	assert.Equal(t, audit.ActionStatusOverride, entries[0].Action)
	assert.Equal(t, "Overrode Not Eligible to New", entries[0].Detail)
	assert.Equal(t, "OAM (Olivia)", entries[0].PerformedBy)
}

func TestImposeTrialClosed(t *testing.T) {
	f := newFixture(t, domain.StatusEnrolled)
	ctx := context.Background()
	other, err := f.store.CreateLead(ctx, domain.Lead{TrialID: "NCT001", Name: "John", Status: domain.StatusNew})
	require.NoError(t, err)

	closed, err := f.svc.ImposeTrialClosed(ctx, "NCT001")
	require.NoError(t, err)
	assert.Equal(t, 2, closed)

	for _, id := range []uuid.UUID{f.lead.ID, other.ID} {
		lead, _ := f.store.GetLead(ctx, id)
		assert.Equal(t, domain.StatusTrialClosed, lead.Status)
	}
	entries := f.history(t)
	assert.Equal(t, audit.SystemLabel, entries[0].PerformedBy)
	assert.Equal(t, "Moved from Enrolled to Trial Closed", entries[0].Detail)

	trial, _ := f.store.GetTrial(ctx, "NCT001")
	assert.Equal(t, domain.TrialClosed, trial.Status)

	again, err := f.svc.ImposeTrialClosed(ctx, "NCT001")
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestTransitionUnknownLead(t *testing.T) {
	f := newFixture(t, domain.StatusNew)
	_, err := f.svc.Transition(context.Background(), uuid.New(), domain.StatusContacted, coordinator)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
