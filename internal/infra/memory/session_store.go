package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/intelogroup/usmle-trivia-sub009/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore with
// per-record optimistic versioning. Suitable for tests and single-node dev
// runs without Redis.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.QuizSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]domain.QuizSession),
	}
}

func (s *SessionStore) Create(_ context.Context, session domain.QuizSession) (domain.QuizSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return domain.QuizSession{}, fmt.Errorf("session %s: %w", session.ID, domain.ErrConflict)
	}
	session.Version = 1
	s.sessions[session.ID] = cloneSession(session)
	return session, nil
}

func (s *SessionStore) Get(_ context.Context, id string) (domain.QuizSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.QuizSession{}, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	return cloneSession(session), nil
}

// Update succeeds only when the caller's version matches the stored record,
// then bumps the version. Losers see domain.ErrConflict and must re-read.
func (s *SessionStore) Update(_ context.Context, session domain.QuizSession) (domain.QuizSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.sessions[session.ID]
	if !ok {
		return domain.QuizSession{}, fmt.Errorf("session %s: %w", session.ID, domain.ErrSessionNotFound)
	}
	if stored.Version != session.Version {
		return domain.QuizSession{}, fmt.Errorf("session %s version %d: %w", session.ID, session.Version, domain.ErrConflict)
	}
	session.Version++
	s.sessions[session.ID] = cloneSession(session)
	return session, nil
}

// cloneSession deep-copies the slices so callers never alias stored state.
func cloneSession(s domain.QuizSession) domain.QuizSession {
	s.QuestionIDs = append([]string(nil), s.QuestionIDs...)
	s.Answers = append([]domain.Answer(nil), s.Answers...)
	if s.CompletedAt != nil {
		at := *s.CompletedAt
		s.CompletedAt = &at
	}
	return s
}
