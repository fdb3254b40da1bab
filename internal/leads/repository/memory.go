package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"recruitment_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// Memory is an in-process Store used by service tests and local runs
// without Postgres. Set FailWrites to make every mutation fail.
type Memory struct {
	mu       sync.RWMutex
	leads    map[uuid.UUID]domain.Lead
	order    []uuid.UUID
	claims   []domain.Claim
	trials   map[string]domain.Trial
	messages map[uuid.UUID][]domain.Message
	audit    map[uuid.UUID][]domain.AuditEntry

	FailWrites error
	now        func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		leads:    make(map[uuid.UUID]domain.Lead),
		trials:   make(map[string]domain.Trial),
		messages: make(map[uuid.UUID][]domain.Message),
		audit:    make(map[uuid.UUID][]domain.AuditEntry),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AddClaim seeds a claim, assigning an id when missing.
func (m *Memory) AddClaim(claim domain.Claim) domain.Claim {
	m.mu.Lock()
	defer m.mu.Unlock()
	if claim.ID == uuid.Nil {
		claim.ID = uuid.New()
	}
	m.claims = append(m.claims, claim)
	return claim
}

func (m *Memory) withUnread(lead domain.Lead) domain.Lead {
	lead.UnreadCount = 0
	for _, msg := range m.messages[lead.ID] {
		if msg.SenderRole == domain.SenderPatient && !msg.IsRead {
			lead.UnreadCount++
		}
	}
	lead.Answers = domain.CloneAnswers(lead.Answers)
	lead.QuestionSnapshot = domain.CloneQuestions(lead.QuestionSnapshot)
	return lead
}

func (m *Memory) CreateLead(_ context.Context, lead domain.Lead) (domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return domain.Lead{}, m.FailWrites
	}
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = m.now()
	}
	lead.UpdatedAt = lead.CreatedAt
	lead.Answers = domain.CloneAnswers(lead.Answers)
	m.leads[lead.ID] = lead
	m.order = append(m.order, lead.ID)
	return m.withUnread(lead), nil
}

func (m *Memory) GetLead(_ context.Context, id uuid.UUID) (domain.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lead, ok := m.leads[id]
	if !ok {
		return domain.Lead{}, ErrNotFound
	}
	return m.withUnread(lead), nil
}

func (m *Memory) ListLeads(_ context.Context, query LeadQuery) ([]domain.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	trials := toSet(query.TrialIDs)
	statuses := make(map[domain.Status]bool, len(query.Statuses))
	for _, s := range query.Statuses {
		statuses[s] = true
	}
	search := strings.ToLower(strings.TrimSpace(query.Search))

	items := make([]domain.Lead, 0)
	for i := len(m.order) - 1; i >= 0; i-- {
		lead := m.leads[m.order[i]]
		if len(trials) > 0 && !trials[lead.TrialID] {
			continue
		}
		if len(statuses) > 0 && !statuses[lead.Status] {
			continue
		}
		if search != "" && !containsFold(search, lead.Name, lead.Email, lead.Phone) {
			continue
		}
		items = append(items, m.withUnread(lead))
		if query.Limit > 0 && len(items) == query.Limit {
			break
		}
	}
	return items, nil
}

func (m *Memory) ListLeadsByTrial(ctx context.Context, trialID string) ([]domain.Lead, error) {
	return m.ListLeads(ctx, LeadQuery{TrialIDs: []string{trialID}})
}

func (m *Memory) update(id uuid.UUID, mutate func(*domain.Lead)) (domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return domain.Lead{}, m.FailWrites
	}
	lead, ok := m.leads[id]
	if !ok {
		return domain.Lead{}, ErrNotFound
	}
	mutate(&lead)
	lead.UpdatedAt = m.now()
	m.leads[id] = lead
	return m.withUnread(lead), nil
}

func (m *Memory) UpdateLeadStatus(_ context.Context, id uuid.UUID, status domain.Status) (domain.Lead, error) {
	return m.update(id, func(l *domain.Lead) { l.Status = status })
}

func (m *Memory) UpdateLeadAnswers(_ context.Context, id uuid.UUID, answers []*string) (domain.Lead, error) {
	return m.update(id, func(l *domain.Lead) { l.Answers = domain.CloneAnswers(answers) })
}

func (m *Memory) UpdateLeadNotes(_ context.Context, id uuid.UUID, notes string) (domain.Lead, error) {
	return m.update(id, func(l *domain.Lead) { l.ResearcherNotes = notes })
}

func (m *Memory) ListClaimsByTrial(_ context.Context, trialID string) ([]domain.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]domain.Claim, 0)
	for _, c := range m.claims {
		if c.TrialID == trialID {
			items = append(items, c)
		}
	}
	return items, nil
}

func (m *Memory) ListApprovedClaims(_ context.Context) ([]domain.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]domain.Claim, 0)
	for _, c := range m.claims {
		if c.IsApproved() {
			items = append(items, c)
		}
	}
	return items, nil
}

func (m *Memory) ListClaimsMissingCoordinates(_ context.Context, limit int) ([]domain.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]domain.Claim, 0)
	for _, c := range m.claims {
		if !c.Location.HasCoordinates() {
			items = append(items, c)
		}
		if limit > 0 && len(items) == limit {
			break
		}
	}
	return items, nil
}

func (m *Memory) UpdateClaimCoordinates(_ context.Context, claimID uuid.UUID, lat, lon float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	for i := range m.claims {
		if m.claims[i].ID == claimID {
			m.claims[i].Location.Lat = &lat
			m.claims[i].Location.Lon = &lon
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) GetTrial(_ context.Context, id string) (domain.Trial, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	trial, ok := m.trials[id]
	if !ok {
		return domain.Trial{}, ErrNotFound
	}
	return trial, nil
}

func (m *Memory) ListTrials(_ context.Context) ([]domain.Trial, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]domain.Trial, 0, len(m.trials))
	for _, t := range m.trials {
		items = append(items, t)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (m *Memory) UpsertTrial(_ context.Context, trial domain.Trial) error {
	if err := domain.ValidateQuestions(trial.Questions); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.trials[trial.ID]; ok {
		trial.Status = existing.Status
	}
	if trial.Status == "" {
		trial.Status = domain.TrialRecruiting
	}
	trial.Questions = domain.CloneQuestions(trial.Questions)
	trial.UpdatedAt = m.now()
	m.trials[trial.ID] = trial
	return nil
}

func (m *Memory) SetTrialStatus(_ context.Context, id string, status domain.TrialStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	trial, ok := m.trials[id]
	if !ok {
		return ErrNotFound
	}
	trial.Status = status
	m.trials[id] = trial
	return nil
}

func (m *Memory) InsertMessage(_ context.Context, msg domain.Message) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return domain.Message{}, m.FailWrites
	}
	if _, ok := m.leads[msg.LeadID]; !ok {
		return domain.Message{}, ErrNotFound
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	msg.CreatedAt = m.now()
	m.messages[msg.LeadID] = append(m.messages[msg.LeadID], msg)
	return msg, nil
}

func (m *Memory) ListMessages(_ context.Context, leadID uuid.UUID) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Message{}, m.messages[leadID]...), nil
}

func (m *Memory) MarkMessagesRead(_ context.Context, leadID uuid.UUID) (int64, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return 0, time.Time{}, m.FailWrites
	}
	var n int64
	msgs := m.messages[leadID]
	for i := range msgs {
		if msgs[i].SenderRole == domain.SenderPatient && !msgs[i].IsRead {
			msgs[i].IsRead = true
			n++
		}
	}
	readAt := m.now()
	if lead, ok := m.leads[leadID]; ok && n > 0 {
		lead.UpdatedAt = readAt
		m.leads[leadID] = lead
	}
	return n, readAt, nil
}

func (m *Memory) Append(_ context.Context, entry domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.audit[entry.LeadID] = append(m.audit[entry.LeadID], entry)
	return nil
}

func (m *Memory) ListByLead(_ context.Context, leadID uuid.UUID) ([]domain.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.AuditEntry{}, m.audit[leadID]...), nil
}

func toSet(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[v] = true
	}
	return out
}

func containsFold(needle string, haystacks ...string) bool {
	for _, h := range haystacks {
		if strings.Contains(strings.ToLower(h), needle) {
			return true
		}
	}
	return false
}
