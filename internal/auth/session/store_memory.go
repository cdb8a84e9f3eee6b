package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"warikan/pkg/sentinel"
)

// MemoryStore is the single-node session store. Expired sessions are pruned
// lazily on lookup.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (s *MemoryStore) Save(_ context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *MemoryStore) Find(_ context.Context, id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("session %s: %w", id, sentinel.ErrNotFound)
	}
	if session.Expired(time.Now()) {
		delete(s.sessions, id)
		return Session{}, fmt.Errorf("session %s: %w", id, sentinel.ErrExpired)
	}
	return session, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
