package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"skillquiz-service/internal/domain"
)

// CommunityStore keeps community quizzes in a map. Useful for tests and single-node demos.
type CommunityStore struct {
	mu      sync.RWMutex
	quizzes map[string]domain.CommunityQuiz
}

func NewCommunityStore() *CommunityStore {
	return &CommunityStore{quizzes: make(map[string]domain.CommunityQuiz)}
}

func (s *CommunityStore) Create(_ context.Context, quiz domain.CommunityQuiz) (string, error) {
	quiz = quiz.Clone()
	if quiz.ID == "" {
		quiz.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.quizzes[quiz.ID]; exists {
		return "", domain.InvalidStatef("quiz %s already exists", quiz.ID)
	}
	s.quizzes[quiz.ID] = quiz
	return quiz.ID, nil
}

func (s *CommunityStore) GetByID(_ context.Context, id string) (domain.CommunityQuiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[id]
	if !ok {
		return domain.CommunityQuiz{}, domain.NotFoundf("quiz %s", id)
	}
	return quiz.Clone(), nil
}

func (s *CommunityStore) ListApprovedByCategory(_ context.Context, category string) ([]domain.CommunityQuiz, error) {
	return s.list(func(q domain.CommunityQuiz) bool {
		return q.Definition.Category == category && q.Moderation.Playable()
	}), nil
}

func (s *CommunityStore) ListByStatus(_ context.Context, status domain.ModerationStatus) ([]domain.CommunityQuiz, error) {
	return s.list(func(q domain.CommunityQuiz) bool {
		return status == "" || q.Moderation.Status == status
	}), nil
}

func (s *CommunityStore) ListByAuthor(_ context.Context, userID string) ([]domain.CommunityQuiz, error) {
	return s.list(func(q domain.CommunityQuiz) bool { return q.CreatedBy == userID }), nil
}

func (s *CommunityStore) UpdateModeration(_ context.Context, id string, from domain.ModerationStatus, rec domain.ModerationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[id]
	if !ok {
		return domain.NotFoundf("quiz %s", id)
	}
	if quiz.Moderation.Status != from {
		return domain.InvalidStatef("quiz %s is %s, expected %s", id, quiz.Moderation.Status, from)
	}
	quiz.Moderation = rec
	s.quizzes[id] = quiz
	return nil
}

func (s *CommunityStore) list(keep func(domain.CommunityQuiz) bool) []domain.CommunityQuiz {
	s.mu.RLock()
	out := make([]domain.CommunityQuiz, 0)
	for _, q := range s.quizzes {
		if keep(q) {
			out = append(out, q.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
