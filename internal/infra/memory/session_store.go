package memory

import (
	"context"
	"sync"

	"statquiz-engine/internal/domain"
)

// SessionStore is an in-memory implementation of the engine's session store:
// one resumable session per assessment+variant plus append-only attempt
// history. Useful for tests and for running without Redis.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	attempts map[string][]domain.Attempt
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*domain.Session),
		attempts: make(map[string][]domain.Attempt),
	}
}

func (s *SessionStore) GetActiveSession(_ context.Context, assessmentID, variant string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionKey(assessmentID, variant)]
	if !ok {
		return nil, nil
	}
	return session.Clone(), nil
}

func (s *SessionStore) SaveActiveSession(_ context.Context, assessmentID, variant string, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionKey(assessmentID, variant)] = session.Clone()
	return nil
}

func (s *SessionStore) ClearActiveSession(_ context.Context, assessmentID, variant string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionKey(assessmentID, variant))
	return nil
}

func (s *SessionStore) AppendAttempt(_ context.Context, assessmentID, variant string, attempt domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey(assessmentID, variant)
	s.attempts[key] = append(s.attempts[key], attempt)
	return nil
}

func (s *SessionStore) GetHistory(_ context.Context, assessmentID, variant string) (domain.History, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.attempts[sessionKey(assessmentID, variant)]
	history := domain.History{Attempts: make([]domain.Attempt, len(stored))}
	copy(history.Attempts, stored)
	history.Fold()
	return history, nil
}

// sessionKey includes the variant: an in-progress session for one variant
// must never resume as another.
func sessionKey(assessmentID, variant string) string {
	return assessmentID + "?" + variant
}
