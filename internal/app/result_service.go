package app

import (
	"context"
	"errors"

	"skillquiz-service/internal/domain"
	"skillquiz-service/internal/scoring"
)

// Outcome is what a completed attempt produced.
type Outcome struct {
	Result           domain.ResultRecord `json:"result"`
	Summary          scoring.Summary     `json:"summary"`
	ExperienceGained int                 `json:"experienceGained"`
	Level            int                 `json:"level"`
	TotalExperience  int                 `json:"totalExperience"`
}

// CompletedEvent is published after a result has been stored.
type CompletedEvent struct {
	UserID         string `json:"userId"`
	ResultID       string `json:"resultId"`
	Category       string `json:"category"`
	QuizID         string `json:"quizId,omitempty"`
	IsCustomQuiz   bool   `json:"isCustomQuiz"`
	Score          int    `json:"score"`
	TotalQuestions int    `json:"totalQuestions"`
	Percentage     int    `json:"percentage"`
}

// ResultService turns finished sessions into stored results and profile updates.
type ResultService struct {
	results  ResultStore
	profiles ProfileStore
	deps
}

func NewResultService(results ResultStore, profiles ProfileStore, opts ...Option) *ResultService {
	return &ResultService{results: results, profiles: profiles, deps: newDeps(opts)}
}

// Record stores the result of a finished session and folds it into the user's profile.
func (r *ResultService) Record(ctx context.Context, snap Snapshot) (Outcome, error) {
	if snap.State != StateFinished {
		return Outcome{}, domain.InvalidStatef("record: quiz is %s", snap.State)
	}
	if len(snap.Questions) == 0 {
		return Outcome{}, domain.InvalidStatef("record: quiz has no questions")
	}

	rec, delta := scoring.BuildResult(scoring.Completion{
		UserID:         snap.UserID,
		Category:       snap.Category,
		Score:          snap.Score,
		TotalQuestions: len(snap.Questions),
		Answers:        snap.Answers,
		QuizID:         snap.QuizID,
		IsCustomQuiz:   snap.IsCustomQuiz,
		CompletedAt:    r.now().UTC(),
	})

	id, err := r.results.Append(ctx, snap.UserID, rec)
	if err != nil {
		r.metrics.PersistenceFailure("append_result")
		return Outcome{}, domain.PersistenceError("save result", err)
	}
	rec.ID = id

	if err := r.profiles.ApplyQuizCompletion(ctx, snap.UserID, delta); err != nil {
		r.metrics.PersistenceFailure("update_profile")
		return Outcome{}, domain.PersistenceError("update profile", err)
	}

	source := sourceBuiltin
	if rec.IsCustomQuiz {
		source = sourceCommunity
	}
	r.metrics.SessionCompleted(source, rec.Percentage)

	outcome := Outcome{
		Result:           rec,
		Summary:          scoring.ResultSummary(rec.Score, rec.TotalQuestions),
		ExperienceGained: rec.ExperiencePoints,
	}
	if profile, err := r.profiles.Get(ctx, snap.UserID); err == nil {
		outcome.TotalExperience = profile.Experience
		outcome.Level = scoring.Level(profile.Experience)
	} else {
		r.logger.Warn("profile reload failed", "user_id", snap.UserID, "error", err)
	}

	event := CompletedEvent{
		UserID:         rec.UserID,
		ResultID:       rec.ID,
		Category:       rec.Category,
		QuizID:         rec.QuizID,
		IsCustomQuiz:   rec.IsCustomQuiz,
		Score:          rec.Score,
		TotalQuestions: rec.TotalQuestions,
		Percentage:     rec.Percentage,
	}
	if err := r.publisher.Publish(ctx, EventQuizCompleted, event); err != nil {
		r.logger.Warn("publish failed", "event", EventQuizCompleted, "error", err)
	}

	r.logger.Info("quiz completed",
		"user_id", rec.UserID,
		"result_id", rec.ID,
		"category", rec.Category,
		"score", rec.Score,
		"total", rec.TotalQuestions,
		"percentage", rec.Percentage,
	)
	return outcome, nil
}

// History lists a user's results, newest first.
func (r *ResultService) History(ctx context.Context, userID string, limit int) ([]domain.ResultRecord, error) {
	if limit < 0 {
		return nil, domain.Validationf("limit must not be negative, got %d", limit)
	}
	records, err := r.results.ListByUser(ctx, userID, limit)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return []domain.ResultRecord{}, nil
		}
		return nil, domain.PersistenceError("list results", err)
	}
	return records, nil
}
