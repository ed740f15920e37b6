package repository

import (
	"context"
	"sync"

	"github.com/hookbridge/hookbridge/internal/models"
)

// InMemoryStore implements Store with process-local maps. It mirrors the
// postgres store's uniqueness semantics and is used in tests and local
// development.
type InMemoryStore struct {
	claims      map[string]*models.Claim
	audits      []models.AuditRecord
	deadLetters []models.DeadLetter
	deployments []models.Deployment
	incidents   []models.Incident
	nextDLQID   int64
	mu          sync.RWMutex
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		claims: make(map[string]*models.Claim),
	}
}

func (s *InMemoryStore) InsertClaim(ctx context.Context, claim *models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.claims[claim.EventID]; exists {
		return ErrDuplicateClaim
	}

	c := *claim
	s.claims[claim.EventID] = &c
	return nil
}

func (s *InMemoryStore) AppendAudit(ctx context.Context, record *models.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audits = append(s.audits, *record)
	return nil
}

func (s *InMemoryStore) AppendDeadLetter(ctx context.Context, entry *models.DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextDLQID++
	e := *entry
	e.ID = s.nextDLQID
	s.deadLetters = append(s.deadLetters, e)
	return nil
}

func (s *InMemoryStore) ListDeadLetters(ctx context.Context, limit int) ([]models.DeadLetter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.deadLetters) {
		limit = len(s.deadLetters)
	}

	// Most recent first
	out := make([]models.DeadLetter, 0, limit)
	for i := len(s.deadLetters) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.deadLetters[i])
	}
	return out, nil
}

func (s *InMemoryStore) DeadLetterStats(ctx context.Context) (*models.DLQStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.DLQStats{ByReason: make(map[string]int64)}
	for _, e := range s.deadLetters {
		stats.ByReason[e.Reason]++
		stats.Total++
	}
	return stats, nil
}

func (s *InMemoryStore) InsertDeployment(ctx context.Context, d *models.Deployment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deployments = append(s.deployments, *d)
	return nil
}

func (s *InMemoryStore) InsertIncident(ctx context.Context, in *models.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.incidents = append(s.incidents, *in)
	return nil
}

func (s *InMemoryStore) Ping(ctx context.Context) error { return nil }

func (s *InMemoryStore) Close() {}

// Snapshot accessors used by tests.

func (s *InMemoryStore) Claims() []models.Claim {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Claim, 0, len(s.claims))
	for _, c := range s.claims {
		out = append(out, *c)
	}
	return out
}

func (s *InMemoryStore) Audits() []models.AuditRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.AuditRecord(nil), s.audits...)
}

func (s *InMemoryStore) DeadLetters() []models.DeadLetter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.DeadLetter(nil), s.deadLetters...)
}

func (s *InMemoryStore) Deployments() []models.Deployment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Deployment(nil), s.deployments...)
}

func (s *InMemoryStore) Incidents() []models.Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Incident(nil), s.incidents...)
}
