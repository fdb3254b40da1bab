package management

import (
	"recruitment_backend/internal/leads/contact"
	"recruitment_backend/internal/leads/domain"
	"recruitment_backend/internal/leads/matching"
	"recruitment_backend/internal/leads/pipeline"
	"recruitment_backend/internal/leads/tiering"
	"recruitment_backend/internal/leads/transport"
	"recruitment_backend/platform/phone"
)

// screenerFor returns the question list a lead is scored against: the
// snapshot taken at submission, or the list in force for leads stored
// before snapshots existed.
func screenerFor(lead domain.Lead, current []domain.Question) []domain.Question {
	if len(lead.QuestionSnapshot) > 0 {
		return lead.QuestionSnapshot
	}
	return current
}

// ToLeadResponse derives the board projection of a lead. Tier, site and
// contact are computed on every call and never stored.
func ToLeadResponse(lead domain.Lead, claims []domain.Claim, trial domain.Trial) transport.LeadResponse {
	claim := matching.ResolveClaim(lead, claims)
	current := trial.QuestionsFor(claim)

	resp := transport.LeadResponse{
		Lead:               lead,
		Contact:            contact.Resolve(lead, claim, trial),
		AllowedTransitions: pipeline.AllowedTargets(lead.Status),
		PhoneDisplay:       phone.Display(lead.Phone),
		QuestionsChanged:   len(lead.QuestionSnapshot) > 0 && !domain.SameQuestions(lead.QuestionSnapshot, current),
	}
	if claim != nil {
		resp.SiteID = claim.Location.ID
	}
	if result, ok := tiering.Classify(lead.Answers, screenerFor(lead, current)); ok {
		resp.Tier = &result
	}
	return resp
}

func tierKey(resp transport.LeadResponse) string {
	if resp.Tier == nil {
		return "none"
	}
	return string(resp.Tier.Tier)
}
