package memory

import (
	"context"
	"sync"

	"adaptive-quiz-service/internal/quiz"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]quiz.Snapshot
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]quiz.Snapshot),
	}
}

func (s *SessionStore) Get(_ context.Context, userID string) (quiz.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.sessions[userID]
	return snap, ok, nil
}

func (s *SessionStore) Save(_ context.Context, snap quiz.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[snap.UserID] = snap
	return nil
}

func (s *SessionStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

// Len reports how many sessions are held.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
