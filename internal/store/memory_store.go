package store

import (
	"context"
	"sort"
	"sync"

	"request-radar/internal/models"
)

// MemoryStore keeps requests in process memory. It is used for dry runs and
// tests; nothing survives a restart.
type MemoryStore struct {
	mu       sync.Mutex
	requests map[int64]models.Request
}

// NewMemoryStore returns an empty store.
func NewMemoryStore(seed ...models.Request) *MemoryStore {
	s := &MemoryStore{requests: make(map[int64]models.Request)}
	for _, req := range seed {
		s.requests[req.ID] = req
	}
	return s
}

// Opener hands out the same underlying map on every call; Close is a no-op.
func (s *MemoryStore) Opener() Opener {
	return func(context.Context) (RequestStore, error) {
		return s, nil
	}
}

func (s *MemoryStore) Exists(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.requests[id]
	return ok, nil
}

func (s *MemoryStore) InsertIfAbsent(_ context.Context, req models.Request) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.ID]; ok {
		return false, nil
	}
	s.requests[req.ID] = req
	return true, nil
}

func (s *MemoryStore) Close(context.Context) error {
	return nil
}

// Get returns a stored request.
func (s *MemoryStore) Get(id int64) (models.Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	return req, ok
}

// IDs returns the stored ids in ascending order.
func (s *MemoryStore) IDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.requests))
	for id := range s.requests {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
