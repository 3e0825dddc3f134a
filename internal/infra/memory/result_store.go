package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"skillquiz-service/internal/domain"
)

// ResultStore keeps completed results per user.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string][]domain.ResultRecord
}

func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string][]domain.ResultRecord)}
}

func (s *ResultStore) Append(_ context.Context, userID string, rec domain.ResultRecord) (string, error) {
	rec.ID = uuid.NewString()
	rec.UserID = userID
	rec.Answers = append([]domain.AnswerEntry(nil), rec.Answers...)

	s.mu.Lock()
	s.results[userID] = append(s.results[userID], rec)
	s.mu.Unlock()
	return rec.ID, nil
}

func (s *ResultStore) ListByUser(_ context.Context, userID string, limit int) ([]domain.ResultRecord, error) {
	s.mu.RLock()
	stored := s.results[userID]
	out := make([]domain.ResultRecord, len(stored))
	copy(out, stored)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CompletedAt.After(out[j].CompletedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
