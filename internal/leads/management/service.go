// Package management serves lead intake and the coordinator board: submission,
// the derived board projection, answer corrections, notes and site ranking.
package management

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"recruitment_backend/internal/events"
	"recruitment_backend/internal/leads/audit"
	"recruitment_backend/internal/leads/domain"
	"recruitment_backend/internal/leads/matching"
	"recruitment_backend/internal/leads/ranking"
	"recruitment_backend/internal/leads/repository"
	"recruitment_backend/internal/leads/tiering"
	"recruitment_backend/internal/leads/transport"
	"recruitment_backend/platform/apperr"
	"recruitment_backend/platform/logger"
	"recruitment_backend/platform/metrics"
	"recruitment_backend/platform/phone"
	"recruitment_backend/platform/sanitize"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Repository is the consumer-driven slice of the record store.
type Repository interface {
	repository.LeadReader
	CreateLead(ctx context.Context, lead domain.Lead) (domain.Lead, error)
	UpdateLeadAnswers(ctx context.Context, id uuid.UUID, answers []*string) (domain.Lead, error)
	UpdateLeadNotes(ctx context.Context, id uuid.UUID, notes string) (domain.Lead, error)
	repository.ClaimReader
	GetTrial(ctx context.Context, id string) (domain.Trial, error)
	ListTrials(ctx context.Context) ([]domain.Trial, error)
	ListMessages(ctx context.Context, leadID uuid.UUID) ([]domain.Message, error)
}

// AuditLog records and reads lead history.
type AuditLog interface {
	RecordBy(ctx context.Context, leadID uuid.UUID, action, detail string, actor domain.Actor) (domain.AuditEntry, error)
	History(ctx context.Context, lead domain.Lead) ([]domain.AuditEntry, error)
}

// SiteRanker orders sites by distance from a postal code.
type SiteRanker interface {
	RankWithDistances(ctx context.Context, locations []domain.SiteLocation, postalCode *string) ([]ranking.Ranked, bool)
}

// Filter narrows the board. Tier and site filters run on derived values.
type Filter struct {
	Statuses []domain.Status
	// Tier is a tier key, or "none" for leads without a tier.
	Tier   string
	Search string
	SiteID string
	// Unclaimed keeps only leads that match no approved site.
	Unclaimed bool
	TrialID   string
}

type Service struct {
	repo    Repository
	audit   AuditLog
	ranker  SiteRanker
	bus     events.Bus
	log     *logger.Logger
	metrics *metrics.Metrics
}

func New(repo Repository, auditLog AuditLog, ranker SiteRanker, bus events.Bus, log *logger.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{repo: repo, audit: auditLog, ranker: ranker, bus: bus, log: log, metrics: m}
}

// Submit stores a patient's screener against a recruiting trial. The
// screener in force at the matched site is snapshotted on the lead.
func (s *Service) Submit(ctx context.Context, req transport.SubmitLeadRequest) (transport.LeadResponse, error) {
	trial, err := s.loadTrial(ctx, req.TrialID)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	if trial.Status == domain.TrialClosed {
		return transport.LeadResponse{}, apperr.Gone("this trial is no longer recruiting")
	}

	claims, err := s.repo.ListClaimsByTrial(ctx, trial.ID)
	if err != nil {
		s.log.DatabaseError("management.list_claims", err)
		return transport.LeadResponse{}, apperr.Unavailable("failed to load trial sites", err)
	}

	lead := domain.Lead{
		ID:           uuid.New(),
		TrialID:      trial.ID,
		SiteFacility: sanitize.Line(req.SiteFacility),
		SiteCity:     sanitize.Line(req.SiteCity),
		SiteState:    sanitize.Line(req.SiteState),
		Name:         sanitize.Line(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:        phone.NormalizeE164(req.Phone),
		Answers:      domain.CloneAnswers(req.Answers),
		Status:       domain.StatusNew,
	}
	if lead.Name == "" {
		return transport.LeadResponse{}, apperr.Validation("name is required")
	}
	if req.LocationID != nil && strings.TrimSpace(*req.LocationID) != "" {
		site, err := pickSite(strings.TrimSpace(*req.LocationID), claims)
		if err != nil {
			return transport.LeadResponse{}, err
		}
		lead.LocationID = &site.ID
		lead.SiteFacility, lead.SiteCity, lead.SiteState = site.Facility, site.City, site.State
	}

	claim := matching.ResolveClaim(lead, claims)
	questions := trial.QuestionsFor(claim)
	if len(lead.Answers) > len(questions) {
		return transport.LeadResponse{}, apperr.Validation(
			fmt.Sprintf("got %d answers for %d questions", len(lead.Answers), len(questions)))
	}
	lead.QuestionSnapshot = domain.CloneQuestions(questions)

	stored, err := s.repo.CreateLead(ctx, lead)
	if err != nil {
		s.log.DatabaseError("management.create_lead", err)
		return transport.LeadResponse{}, apperr.Unavailable("failed to save application", err)
	}

	resp := ToLeadResponse(stored, claims, trial)
	s.metrics.IncrementTier(tierKey(resp))
	if s.bus != nil {
		s.bus.Publish(ctx, events.LeadSubmitted{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    stored.ID,
			TrialID:   stored.TrialID,
			SiteID:    resp.SiteID,
			Tier:      tierKey(resp),
		})
	}
	s.log.Info("lead submitted", "leadId", stored.ID, "trialId", stored.TrialID, "siteId", resp.SiteID, "tier", tierKey(resp))
	return resp, nil
}

func pickSite(locationID string, claims []domain.Claim) (domain.SiteLocation, error) {
	for _, claim := range claims {
		if claim.IsApproved() && claim.Location.ID == locationID {
			return claim.Location, nil
		}
	}
	return domain.SiteLocation{}, apperr.Validation("the selected site does not recruit for this trial")
}

// Get returns the lead with its screener, newest-first history and
// conversation. The actor must be able to read the lead's site.
func (s *Service) Get(ctx context.Context, id uuid.UUID, actor domain.Actor) (transport.LeadDetailResponse, error) {
	lead, claims, trial, err := s.loadContext(ctx, id)
	if err != nil {
		return transport.LeadDetailResponse{}, err
	}
	resp := ToLeadResponse(lead, claims, trial)
	if !actor.CanRead(resp.SiteID) {
		s.log.AuthEvent("lead_read", actor.Label(), false, "no access to site "+resp.SiteID)
		return transport.LeadDetailResponse{}, apperr.Forbidden("no access to this lead's site")
	}

	history, err := s.audit.History(ctx, lead)
	if err != nil {
		return transport.LeadDetailResponse{}, err
	}
	messages, err := s.repo.ListMessages(ctx, lead.ID)
	if err != nil {
		s.log.DatabaseError("management.list_messages", err)
		return transport.LeadDetailResponse{}, apperr.Unavailable("failed to load conversation", err)
	}

	return transport.LeadDetailResponse{
		Lead:      resp,
		Questions: screenerFor(lead, trial.QuestionsFor(matching.ResolveClaim(lead, claims))),
		History:   history,
		Messages:  messages,
	}, nil
}

// Board loads leads, approved claims and trials concurrently and returns
// the columns the actor may see, in pipeline order.
func (s *Service) Board(ctx context.Context, filter Filter, actor domain.Actor) (transport.BoardResponse, error) {
	var (
		leads  []domain.Lead
		claims []domain.Claim
		trials []domain.Trial
	)
	query := repository.LeadQuery{Statuses: filter.Statuses, Search: strings.TrimSpace(filter.Search)}
	if filter.TrialID != "" {
		query.TrialIDs = []string{filter.TrialID}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		leads, err = s.repo.ListLeads(gctx, query)
		return err
	})
	g.Go(func() error {
		var err error
		claims, err = s.repo.ListApprovedClaims(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		trials, err = s.repo.ListTrials(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.log.DatabaseError("management.board", err)
		return transport.BoardResponse{}, apperr.Unavailable("failed to load board", err)
	}

	claimsByTrial := make(map[string][]domain.Claim)
	for _, c := range claims {
		claimsByTrial[c.TrialID] = append(claimsByTrial[c.TrialID], c)
	}
	trialsByID := make(map[string]domain.Trial, len(trials))
	for _, t := range trials {
		trialsByID[t.ID] = t
	}

	columns := make(map[domain.Status][]transport.LeadResponse)
	total := 0
	for _, lead := range leads {
		resp := ToLeadResponse(lead, claimsByTrial[lead.TrialID], trialsByID[lead.TrialID])
		if !actor.CanRead(resp.SiteID) || !filter.keeps(resp) {
			continue
		}
		columns[lead.Status] = append(columns[lead.Status], resp)
		total++
	}

	out := transport.BoardResponse{Columns: make([]transport.BoardColumn, 0, len(domain.AllStatuses())), Total: total}
	for _, status := range domain.AllStatuses() {
		items := columns[status]
		if items == nil {
			items = make([]transport.LeadResponse, 0)
		}
		out.Columns = append(out.Columns, transport.BoardColumn{Status: status, Leads: items})
	}
	return out, nil
}

// keeps reports whether a row belongs in the filtered view. Unclaimed leads
// live in their own pool and only show when it is asked for.
func (f Filter) keeps(resp transport.LeadResponse) bool {
	if f.Unclaimed != (resp.SiteID == "") {
		return false
	}
	if f.SiteID != "" && resp.SiteID != f.SiteID {
		return false
	}
	if f.Tier != "" && tierKey(resp) != f.Tier {
		return false
	}
	return true
}

// CorrectAnswer replaces one screener answer, records the change and
// returns the lead with its tier recomputed.
func (s *Service) CorrectAnswer(ctx context.Context, id uuid.UUID, index int, value string, actor domain.Actor) (transport.CorrectionResponse, error) {
	lead, claims, trial, err := s.loadContext(ctx, id)
	if err != nil {
		return transport.CorrectionResponse{}, err
	}
	siteID, err := s.authorizeWrite(lead, claims, actor, "answer_correction")
	if err != nil {
		return transport.CorrectionResponse{}, err
	}

	questions := screenerFor(lead, trial.QuestionsFor(matching.ResolveClaim(lead, claims)))
	correction, err := tiering.Correct(lead.Answers, questions, index, strings.TrimSpace(value))
	if err != nil {
		return transport.CorrectionResponse{}, apperr.Validation(err.Error())
	}

	updated, err := s.repo.UpdateLeadAnswers(ctx, lead.ID, correction.Answers)
	if err != nil {
		s.log.DatabaseError("management.update_answers", err)
		return transport.CorrectionResponse{}, apperr.Unavailable("failed to save answer", err)
	}

	change := correction.Describe(questions)
	s.recordAudit(ctx, lead.ID, audit.ActionAnswerCorrected, change, actor)
	s.publishPatch(ctx, updated, siteID, domain.LeadPatch{Answers: domain.CloneAnswers(updated.Answers)}, actor)

	resp := ToLeadResponse(updated, claims, trial)
	s.metrics.IncrementTier(tierKey(resp))
	return transport.CorrectionResponse{Lead: resp, Change: change}, nil
}

// CommitNotes saves the researcher notes. An unchanged value is a no-op.
// Concurrent commits are last-write-wins.
func (s *Service) CommitNotes(ctx context.Context, id uuid.UUID, notes string, actor domain.Actor) (transport.LeadResponse, error) {
	lead, claims, trial, err := s.loadContext(ctx, id)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	siteID, err := s.authorizeWrite(lead, claims, actor, "notes_commit")
	if err != nil {
		return transport.LeadResponse{}, err
	}

	clean := sanitize.Text(notes)
	if clean == lead.ResearcherNotes {
		return ToLeadResponse(lead, claims, trial), nil
	}

	updated, err := s.repo.UpdateLeadNotes(ctx, lead.ID, clean)
	if err != nil {
		s.log.DatabaseError("management.update_notes", err)
		return transport.LeadResponse{}, apperr.Unavailable("failed to save notes", err)
	}

	s.recordAudit(ctx, lead.ID, audit.ActionNotesUpdated, fmt.Sprintf("Notes updated (%d characters)", utf8.RuneCountInString(clean)), actor)
	s.publishPatch(ctx, updated, siteID, domain.LeadPatch{ResearcherNotes: &updated.ResearcherNotes}, actor)
	return ToLeadResponse(updated, claims, trial), nil
}

// RankSites lists the trial's approved sites nearest first. Without a
// usable postal code the stored order is kept and Ranked is false.
func (s *Service) RankSites(ctx context.Context, trialID string, postalCode *string) (transport.SiteRankingResponse, error) {
	trial, err := s.loadTrial(ctx, trialID)
	if err != nil {
		return transport.SiteRankingResponse{}, err
	}
	claims, err := s.repo.ListClaimsByTrial(ctx, trial.ID)
	if err != nil {
		s.log.DatabaseError("management.list_claims", err)
		return transport.SiteRankingResponse{}, apperr.Unavailable("failed to load trial sites", err)
	}

	ranked, ok := s.ranker.RankWithDistances(ctx, matching.ApprovedSites(claims), postalCode)
	out := transport.SiteRankingResponse{TrialID: trial.ID, Sites: make([]transport.SiteOption, 0, len(ranked)), Ranked: ok}
	for _, r := range ranked {
		option := transport.SiteOption{Location: r.Location}
		if ok && r.Known {
			d := r.DistanceMiles
			option.DistanceMiles = &d
		}
		out.Sites = append(out.Sites, option)
	}
	return out, nil
}

// Project derives the board projection of a lead written by another
// service, such as the pipeline.
func (s *Service) Project(ctx context.Context, lead domain.Lead) (transport.LeadResponse, error) {
	trial, err := s.loadTrial(ctx, lead.TrialID)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	claims, err := s.repo.ListClaimsByTrial(ctx, lead.TrialID)
	if err != nil {
		s.log.DatabaseError("management.list_claims", err)
		return transport.LeadResponse{}, apperr.Unavailable("failed to load trial sites", err)
	}
	return ToLeadResponse(lead, claims, trial), nil
}

func (s *Service) authorizeWrite(lead domain.Lead, claims []domain.Claim, actor domain.Actor, event string) (string, error) {
	siteID := ""
	if claim := matching.ResolveClaim(lead, claims); claim != nil {
		siteID = claim.Location.ID
	}
	if !actor.CanWrite(siteID) {
		s.log.AuthEvent(event, actor.Label(), false, "no write access to site "+siteID)
		return "", apperr.Forbidden("no write access to this lead's site")
	}
	return siteID, nil
}

func (s *Service) recordAudit(ctx context.Context, leadID uuid.UUID, action, detail string, actor domain.Actor) {
	if _, err := s.audit.RecordBy(ctx, leadID, action, detail, actor); err != nil {
		s.log.Error("audit write failed", "leadId", leadID, "action", action, "error", err)
		s.metrics.IncrementAuditFailure()
	}
}

func (s *Service) publishPatch(ctx context.Context, lead domain.Lead, siteID string, patch domain.LeadPatch, actor domain.Actor) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, events.LeadStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		ChangeID:  uuid.New(),
		LeadID:    lead.ID,
		TrialID:   lead.TrialID,
		SiteID:    siteID,
		Patch:     patch,
		UpdatedAt: lead.UpdatedAt,
		Actor:     actor.Label(),
	})
}

func (s *Service) loadTrial(ctx context.Context, id string) (domain.Trial, error) {
	trial, err := s.repo.GetTrial(ctx, strings.TrimSpace(id))
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Trial{}, apperr.NotFound("trial not found")
	}
	if err != nil {
		s.log.DatabaseError("management.get_trial", err)
		return domain.Trial{}, apperr.Unavailable("failed to load trial", err)
	}
	return trial, nil
}

func (s *Service) loadContext(ctx context.Context, id uuid.UUID) (domain.Lead, []domain.Claim, domain.Trial, error) {
	lead, err := s.repo.GetLead(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Lead{}, nil, domain.Trial{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		s.log.DatabaseError("management.get_lead", err)
		return domain.Lead{}, nil, domain.Trial{}, apperr.Unavailable("failed to load lead", err)
	}
	trial, err := s.loadTrial(ctx, lead.TrialID)
	if err != nil {
		return domain.Lead{}, nil, domain.Trial{}, err
	}
	claims, err := s.repo.ListClaimsByTrial(ctx, lead.TrialID)
	if err != nil {
		s.log.DatabaseError("management.list_claims", err)
		return domain.Lead{}, nil, domain.Trial{}, apperr.Unavailable("failed to load trial sites", err)
	}
	return lead, claims, trial, nil
}
