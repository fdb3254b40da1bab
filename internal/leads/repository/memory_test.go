package repository

import (
	"context"
	"errors"
	"testing"

	"recruitment_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUnreadCountIsDerived(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	lead, err := store.CreateLead(ctx, domain.Lead{TrialID: "NCT1", Name: "Jane", Status: domain.StatusNew})
	require.NoError(t, err)

	_, err = store.InsertMessage(ctx, domain.Message{LeadID: lead.ID, SenderRole: domain.SenderPatient, Content: "hi"})
	require.NoError(t, err)
	_, err = store.InsertMessage(ctx, domain.Message{LeadID: lead.ID, SenderRole: domain.SenderResearcher, Content: "hello"})
	require.NoError(t, err)

	got, err := store.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UnreadCount)

	n, readAt, err := store.MarkMessagesRead(ctx, lead.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, _ = store.GetLead(ctx, lead.ID)
	assert.Zero(t, got.UnreadCount)
	assert.Equal(t, readAt, got.UpdatedAt, "marking read bumps the lead's write time")
}

func TestMemoryListLeadsFilters(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	_, _ = store.CreateLead(ctx, domain.Lead{TrialID: "NCT1", Name: "Jane Roe", Status: domain.StatusNew})
	_, _ = store.CreateLead(ctx, domain.Lead{TrialID: "NCT1", Name: "John Doe", Status: domain.StatusContacted})
	_, _ = store.CreateLead(ctx, domain.Lead{TrialID: "NCT2", Name: "Jane Smith", Status: domain.StatusNew})

	got, err := store.ListLeads(ctx, LeadQuery{TrialIDs: []string{"NCT1"}, Search: "jane"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Jane Roe", got[0].Name)

	got, _ = store.ListLeads(ctx, LeadQuery{Statuses: []domain.Status{domain.StatusNew}})
	assert.Len(t, got, 2)
	assert.Equal(t, "Jane Smith", got[0].Name, "newest first")
}

func TestMemoryFailWrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	lead, _ := store.CreateLead(ctx, domain.Lead{TrialID: "NCT1", Status: domain.StatusNew})
	store.FailWrites = errors.New("down")

	_, err := store.UpdateLeadStatus(ctx, lead.ID, domain.StatusContacted)
	assert.Error(t, err)

	store.FailWrites = nil
	got, _ := store.GetLead(ctx, lead.ID)
	assert.Equal(t, domain.StatusNew, got.Status)

	_, err = store.GetLead(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
