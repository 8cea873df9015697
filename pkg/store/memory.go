package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory ledger
type MemoryStore struct {
	runs map[string]*Run
	mu   sync.RWMutex
}

// NewMemoryStore creates an empty in-memory ledger
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*Run)}
}

// RecordRun stores a copy of run, assigning an ID and timestamp if missing
func (s *MemoryStore) RecordRun(run *Run) error {
	prepare(run)
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *run
	s.runs[run.ID] = &c
	return nil
}

// GetRun returns the run with the given ID
func (s *MemoryStore) GetRun(id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	c := *run
	return &c, nil
}

// ListRuns returns runs newest first
func (s *MemoryStore) ListRuns(limit int) ([]*Run, error) {
	s.mu.RLock()
	runs := make([]*Run, 0, len(s.runs))
	for _, run := range s.runs {
		c := *run
		runs = append(runs, &c)
	}
	s.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID > runs[j].ID
		}
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// HealthCheck always succeeds
func (s *MemoryStore) HealthCheck() error { return nil }

// Close is a no-op
func (s *MemoryStore) Close() error { return nil }

func prepare(run *Run) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
}
