package memory

import (
	"context"
	"sort"
	"sync"

	"skillquiz-service/internal/domain"
	"skillquiz-service/internal/scoring"
)

// ProfileStore keeps user profiles in a map.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]domain.Profile
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: make(map[string]domain.Profile)}
}

func (s *ProfileStore) Create(_ context.Context, profile domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.profiles[profile.UserID]; exists {
		return domain.InvalidStatef("profile %s already exists", profile.UserID)
	}
	s.profiles[profile.UserID] = profile.Clone()
	return nil
}

func (s *ProfileStore) Get(_ context.Context, userID string) (domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[userID]
	if !ok {
		return domain.Profile{}, domain.NotFoundf("profile %s", userID)
	}
	return profile.Clone(), nil
}

func (s *ProfileStore) ApplyQuizCompletion(_ context.Context, userID string, delta domain.ProfileDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[userID]
	if !ok {
		profile = domain.Profile{UserID: userID, Username: userID, CreatedAt: delta.Summary.Date}
	}
	s.profiles[userID] = scoring.ApplyDelta(profile, delta)
	return nil
}

func (s *ProfileStore) Top(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	entries := make([]domain.LeaderboardEntry, 0, len(s.profiles))
	for _, p := range s.profiles {
		entries = append(entries, domain.LeaderboardEntry{
			UserID:       p.UserID,
			Username:     p.Username,
			TotalScore:   p.TotalScore,
			QuizzesTaken: p.QuizzesTaken,
		})
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalScore != entries[j].TotalScore {
			return entries[i].TotalScore > entries[j].TotalScore
		}
		return entries[i].UserID < entries[j].UserID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
