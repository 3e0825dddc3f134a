package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"skillquiz-service/internal/app"
)

// SessionStore is a Redis-aware implementation of SessionRepository.
// Notes:
//   - Sessions stay in a local map so the in-process broadcast and countdown keep working.
//   - Redis holds a liveness marker per user with the attempt's expiry, so other
//     instances and operators can see who is mid-quiz.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	opts   []app.SessionOption

	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration, opts ...app.SessionOption) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		opts:     opts,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) GetOrCreate(userID string) *app.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[userID]; ok {
		s.touch(userID)
		return session
	}
	session := app.NewSession(userID, s.opts...)
	s.sessions[userID] = session
	s.touch(userID)
	return session
}

func (s *SessionStore) Get(userID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[userID]
	return session, ok
}

// Release drops an idle session together with its liveness marker.
func (s *SessionStore) Release(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[userID]
	if !ok || !session.Idle() {
		return false
	}
	delete(s.sessions, userID)
	_ = s.client.Del(context.Background(), s.key(userID)).Err()
	return true
}

// Live reports whether userID holds a liveness marker in Redis, set by
// whichever instance owns the session.
func (s *SessionStore) Live(ctx context.Context, userID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(userID)).Result()
	return n == 1, err
}

// best-effort liveness marker
func (s *SessionStore) touch(userID string) {
	_ = s.client.Set(context.Background(), s.key(userID), "1", s.ttl).Err()
}

func (s *SessionStore) key(userID string) string {
	return "quiz:attempt:" + userID
}
