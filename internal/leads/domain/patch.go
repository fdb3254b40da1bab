package domain

// LeadPatch carries the lead fields changed by one write. Nil fields are
// absent and must be left alone when the patch is merged.
type LeadPatch struct {
	Status          *Status   `json:"status,omitempty"`
	ResearcherNotes *string   `json:"researcherNotes,omitempty"`
	Answers         []*string `json:"answers,omitempty"`
	UnreadCount     *int      `json:"unreadCount,omitempty"`
}

// IsEmpty is true when the patch changes nothing.
func (p LeadPatch) IsEmpty() bool {
	return p.Status == nil && p.ResearcherNotes == nil && p.Answers == nil && p.UnreadCount == nil
}

// ApplyTo shallow-merges the present fields into lead.
func (p LeadPatch) ApplyTo(lead *Lead) {
	if p.Status != nil {
		lead.Status = *p.Status
	}
	if p.ResearcherNotes != nil {
		lead.ResearcherNotes = *p.ResearcherNotes
	}
	if p.Answers != nil {
		lead.Answers = CloneAnswers(p.Answers)
	}
	if p.UnreadCount != nil {
		lead.UnreadCount = *p.UnreadCount
	}
}

// Snapshot returns a patch holding lead's current values for every field
// set in p. It is used to remember what an optimistic patch replaced.
func (p LeadPatch) Snapshot(lead Lead) LeadPatch {
	var out LeadPatch
	if p.Status != nil {
		s := lead.Status
		out.Status = &s
	}
	if p.ResearcherNotes != nil {
		n := lead.ResearcherNotes
		out.ResearcherNotes = &n
	}
	if p.Answers != nil {
		out.Answers = CloneAnswers(lead.Answers)
		if out.Answers == nil {
			out.Answers = []*string{}
		}
	}
	if p.UnreadCount != nil {
		c := lead.UnreadCount
		out.UnreadCount = &c
	}
	return out
}

// Without returns p minus the fields present in other.
func (p LeadPatch) Without(other LeadPatch) LeadPatch {
	out := p
	if other.Status != nil {
		out.Status = nil
	}
	if other.ResearcherNotes != nil {
		out.ResearcherNotes = nil
	}
	if other.Answers != nil {
		out.Answers = nil
	}
	if other.UnreadCount != nil {
		out.UnreadCount = nil
	}
	return out
}

// StatusPatch is a patch changing only the status.
func StatusPatch(s Status) LeadPatch {
	return LeadPatch{Status: &s}
}
