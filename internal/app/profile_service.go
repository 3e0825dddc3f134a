package app

import (
	"context"
	"errors"
	"strings"

	"skillquiz-service/internal/domain"
	"skillquiz-service/internal/scoring"
)

// DefaultLeaderboardSize is used when callers ask for a non-positive limit.
const DefaultLeaderboardSize = 20

// ProfileView is a profile with its derived progression.
type ProfileView struct {
	domain.Profile
	Level                 int `json:"level"`
	ExperienceToNextLevel int `json:"experienceToNextLevel"`
	AverageScore          int `json:"averageScore"`
}

func newProfileView(p domain.Profile) ProfileView {
	return ProfileView{
		Profile:               p,
		Level:                 scoring.Level(p.Experience),
		ExperienceToNextLevel: scoring.ExperienceToNextLevel(p.Experience),
		AverageScore:          scoring.AverageScorePercent(p.Scores),
	}
}

type ProfileService struct {
	profiles ProfileStore
	deps
}

func NewProfileService(profiles ProfileStore, opts ...Option) *ProfileService {
	return &ProfileService{profiles: profiles, deps: newDeps(opts)}
}

// Ensure returns the user's profile, creating an empty one on first sight.
func (s *ProfileService) Ensure(ctx context.Context, userID, username string) (ProfileView, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ProfileView{}, domain.Validationf("user id is required")
	}
	existing, err := s.profiles.Get(ctx, userID)
	if err == nil {
		return newProfileView(existing), nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return ProfileView{}, domain.PersistenceError("load profile", err)
	}

	username = strings.TrimSpace(username)
	if username == "" {
		username = userID
	}
	_, admin := s.admins[userID]
	profile := domain.Profile{
		UserID:    userID,
		Username:  username,
		IsAdmin:   admin,
		Scores:    []domain.ScoreSummary{},
		CreatedAt: s.now().UTC(),
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		// Lost a creation race; the other writer's profile wins.
		if errors.Is(err, domain.ErrInvalidState) {
			return s.Get(ctx, userID)
		}
		s.metrics.PersistenceFailure("create_profile")
		return ProfileView{}, domain.PersistenceError("create profile", err)
	}
	s.logger.Info("profile created", "user_id", userID)
	return newProfileView(profile), nil
}

func (s *ProfileService) Get(ctx context.Context, userID string) (ProfileView, error) {
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return ProfileView{}, domain.PersistenceError("load profile", err)
	}
	return newProfileView(profile), nil
}

// Leaderboard ranks users by total score.
func (s *ProfileService) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	entries, err := s.profiles.Top(ctx, limit)
	if err != nil {
		return nil, domain.PersistenceError("load leaderboard", err)
	}
	return entries, nil
}
