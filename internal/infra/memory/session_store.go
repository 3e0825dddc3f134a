package memory

import (
	"sync"

	"skillquiz-service/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository keyed by user.
type SessionStore struct {
	opts []app.SessionOption

	mu       sync.RWMutex
	sessions map[string]*app.Session
}

// NewSessionStore creates sessions with opts applied.
func NewSessionStore(opts ...app.SessionOption) *SessionStore {
	return &SessionStore{
		opts:     opts,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) GetOrCreate(userID string) *app.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[userID]; ok {
		return session
	}
	session := app.NewSession(userID, s.opts...)
	s.sessions[userID] = session
	return session
}

func (s *SessionStore) Get(userID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[userID]
	return session, ok
}

// Release drops the user's session when it is idle.
func (s *SessionStore) Release(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[userID]
	if !ok || !session.Idle() {
		return false
	}
	delete(s.sessions, userID)
	return true
}

// Len reports how many users hold a session.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
