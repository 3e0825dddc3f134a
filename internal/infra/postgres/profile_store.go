package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"skillquiz-service/internal/domain"
)

// ProfileStore keeps per-user stats. Score history is a JSONB array.
type ProfileStore struct {
	pool *pgxpool.Pool
}

func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

func (s *ProfileStore) Create(ctx context.Context, p domain.Profile) error {
	scores, err := json.Marshal(nonNilScores(p.Scores))
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO profiles (user_id, username, total_score, quizzes_taken, experience, is_admin, scores, last_quiz_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9)
		ON CONFLICT (user_id) DO NOTHING`,
		p.UserID, p.Username, p.TotalScore, p.QuizzesTaken, p.Experience, p.IsAdmin, string(scores), p.LastQuizAt, p.CreatedAt,
	)
	if err != nil {
		return mapErr("insert profile", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.InvalidStatef("profile %s already exists", p.UserID)
	}
	return nil
}

func (s *ProfileStore) Get(ctx context.Context, userID string) (domain.Profile, error) {
	var (
		p         domain.Profile
		scores    []byte
		lastQuiz  *time.Time
		createdAt time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, username, total_score, quizzes_taken, experience, is_admin, scores, last_quiz_at, created_at
		FROM profiles WHERE user_id=$1`, userID,
	).Scan(&p.UserID, &p.Username, &p.TotalScore, &p.QuizzesTaken, &p.Experience, &p.IsAdmin, &scores, &lastQuiz, &createdAt)
	if err != nil {
		return domain.Profile{}, mapErr("profile "+userID, err)
	}
	if err := json.Unmarshal(scores, &p.Scores); err != nil {
		return domain.Profile{}, fmt.Errorf("unmarshal scores: %w", err)
	}
	p.Scores = nonNilScores(p.Scores)
	p.LastQuizAt = lastQuiz
	p.CreatedAt = createdAt.UTC()
	return p, nil
}

// ApplyQuizCompletion is a single upsert so concurrent completions never lose an increment.
func (s *ProfileStore) ApplyQuizCompletion(ctx context.Context, userID string, delta domain.ProfileDelta) error {
	summary, err := json.Marshal(delta.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO profiles (user_id, username, total_score, quizzes_taken, experience, scores, last_quiz_at, created_at)
		VALUES ($1, $1, $2, 1, $3, jsonb_build_array($4::jsonb), $5, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			total_score   = profiles.total_score + EXCLUDED.total_score,
			quizzes_taken = profiles.quizzes_taken + 1,
			experience    = profiles.experience + EXCLUDED.experience,
			scores        = profiles.scores || EXCLUDED.scores,
			last_quiz_at  = EXCLUDED.last_quiz_at`,
		userID, delta.ScoreDelta, delta.ExperienceDelta, string(summary), delta.Summary.Date,
	)
	if err != nil {
		return mapErr("apply quiz completion", err)
	}
	return nil
}

func (s *ProfileStore) Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, username, total_score, quizzes_taken
		FROM profiles ORDER BY total_score DESC, user_id LIMIT $1`, limit)
	if err != nil {
		return nil, mapErr("leaderboard", err)
	}
	defer rows.Close()

	out := make([]domain.LeaderboardEntry, 0, limit)
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.TotalScore, &e.QuizzesTaken); err != nil {
			return nil, mapErr("scan leaderboard", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("leaderboard", err)
	}
	return out, nil
}

func nonNilScores(scores []domain.ScoreSummary) []domain.ScoreSummary {
	if scores == nil {
		return []domain.ScoreSummary{}
	}
	return scores
}
