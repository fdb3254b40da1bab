package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatchApplyLeavesAbsentFields(t *testing.T) {
	lead := Lead{Status: StatusNew, ResearcherNotes: "call back", UnreadCount: 2}

	StatusPatch(StatusContacted).ApplyTo(&lead)

	assert.Equal(t, StatusContacted, lead.Status)
	assert.Equal(t, "call back", lead.ResearcherNotes)
	assert.Equal(t, 2, lead.UnreadCount)
}

func TestPatchSnapshotAndWithout(t *testing.T) {
	notes := "new notes"
	patch := LeadPatch{Status: ptrStatus(StatusScheduled), ResearcherNotes: &notes}
	lead := Lead{Status: StatusContacted, ResearcherNotes: "old"}

	previous := patch.Snapshot(lead)
	assert.Equal(t, StatusContacted, *previous.Status)
	assert.Equal(t, "old", *previous.ResearcherNotes)
	assert.Nil(t, previous.UnreadCount)

	rest := patch.Without(StatusPatch(StatusEnrolled))
	assert.Nil(t, rest.Status)
	assert.Equal(t, "new notes", *rest.ResearcherNotes)
	assert.True(t, LeadPatch{}.IsEmpty())
}

func ptrStatus(s Status) *Status { return &s }
