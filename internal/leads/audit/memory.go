package audit

import (
	"context"
	"sync"

	"recruitment_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// MemoryStore keeps entries in process, in append order.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[uuid.UUID][]domain.AuditEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[uuid.UUID][]domain.AuditEntry)}
}

func (s *MemoryStore) Append(_ context.Context, entry domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.LeadID] = append(s.entries[entry.LeadID], entry)
	return nil
}

func (s *MemoryStore) ListByLead(_ context.Context, leadID uuid.UUID) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AuditEntry{}, s.entries[leadID]...), nil
}

var _ Store = (*MemoryStore)(nil)
