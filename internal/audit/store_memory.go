package audit

import (
	"context"
	"sync"
)

// MemoryStore keeps the outbox in memory. Dev and test use; events do not
// survive a restart.
type MemoryStore struct {
	mu        sync.Mutex
	events    []Event
	published map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{published: make(map[string]bool)}
}

func (s *MemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemoryStore) Pending(_ context.Context, limit int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []Event
	for _, e := range s.events {
		if s.published[e.ID] {
			continue
		}
		pending = append(pending, e)
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (s *MemoryStore) MarkPublished(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.published[id] = true
	}
	return nil
}

// All returns every appended event; test helper.
func (s *MemoryStore) All() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
