package store

import (
	"context"
	"sync"
)

// MemoryStore keeps records in process memory
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]RunRecord
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]RunRecord)}
}

func (s *MemoryStore) Save(ctx context.Context, rec RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[rec.ID]; exists {
		return ErrDuplicateRun
	}
	s.runs[rec.ID] = rec
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.runs[id]
	if !ok {
		return RunRecord{}, ErrRunNotFound
	}
	return rec, nil
}

func (s *MemoryStore) List(ctx context.Context, limit int) ([]RunRecord, error) {
	s.mu.RLock()
	recs := make([]RunRecord, 0, len(s.runs))
	for _, rec := range s.runs {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	sortNewestFirst(recs)
	return truncate(recs, limit), nil
}

func (s *MemoryStore) Close() error { return nil }
