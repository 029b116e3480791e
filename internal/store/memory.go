package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zhouzirui/visa-interview/backend/internal/model/interview"
)

// MemoryStore implements Store with an in-process map.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]interview.Session
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]interview.Session)}
}

func (s *MemoryStore) Create(_ context.Context, session interview.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return interview.ErrDuplicateSession
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (interview.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return interview.Session{}, interview.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, session interview.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; !ok {
		return interview.ErrSessionNotFound
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return interview.ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *MemoryStore) ListByCase(_ context.Context, caseID string) ([]interview.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []interview.Session
	for _, session := range s.sessions {
		if session.CaseID == caseID {
			out = append(out, session.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if session.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}
