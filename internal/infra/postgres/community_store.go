package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"skillquiz-service/internal/domain"
)

// CommunityStore keeps community quizzes with their definition and moderation record as JSONB.
type CommunityStore struct {
	pool *pgxpool.Pool
}

func NewCommunityStore(pool *pgxpool.Pool) *CommunityStore {
	return &CommunityStore{pool: pool}
}

const quizColumns = `id, created_by, created_at, definition, moderation`

func (s *CommunityStore) Create(ctx context.Context, quiz domain.CommunityQuiz) (string, error) {
	if quiz.ID == "" {
		quiz.ID = uuid.NewString()
	}
	def, err := json.Marshal(quiz.Definition)
	if err != nil {
		return "", fmt.Errorf("marshal definition: %w", err)
	}
	mod, err := json.Marshal(quiz.Moderation)
	if err != nil {
		return "", fmt.Errorf("marshal moderation: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO community_quizzes (id, created_by, created_at, category, status, is_active, definition, moderation)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb)`,
		quiz.ID, quiz.CreatedBy, quiz.CreatedAt, quiz.Definition.Category,
		string(quiz.Moderation.Status), quiz.Moderation.IsActive, string(def), string(mod),
	)
	if err != nil {
		return "", mapErr("insert community quiz", err)
	}
	return quiz.ID, nil
}

func (s *CommunityStore) GetByID(ctx context.Context, id string) (domain.CommunityQuiz, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+quizColumns+` FROM community_quizzes WHERE id=$1`, id)
	quiz, err := scanQuiz(row)
	if err != nil {
		return domain.CommunityQuiz{}, mapErr("quiz "+id, err)
	}
	return quiz, nil
}

func (s *CommunityStore) ListApprovedByCategory(ctx context.Context, category string) ([]domain.CommunityQuiz, error) {
	return s.query(ctx, `SELECT `+quizColumns+` FROM community_quizzes
		WHERE category=$1 AND status='approved' AND is_active
		ORDER BY created_at DESC, id`, category)
}

func (s *CommunityStore) ListByStatus(ctx context.Context, status domain.ModerationStatus) ([]domain.CommunityQuiz, error) {
	return s.query(ctx, `SELECT `+quizColumns+` FROM community_quizzes
		WHERE $1 = '' OR status = $1
		ORDER BY created_at DESC, id`, string(status))
}

func (s *CommunityStore) ListByAuthor(ctx context.Context, userID string) ([]domain.CommunityQuiz, error) {
	return s.query(ctx, `SELECT `+quizColumns+` FROM community_quizzes
		WHERE created_by=$1
		ORDER BY created_at DESC, id`, userID)
}

// UpdateModeration is a compare-and-set on the status column.
func (s *CommunityStore) UpdateModeration(ctx context.Context, id string, from domain.ModerationStatus, rec domain.ModerationRecord) error {
	mod, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal moderation: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE community_quizzes SET status=$3, is_active=$4, moderation=$5::jsonb
		WHERE id=$1 AND status=$2`,
		id, string(from), string(rec.Status), rec.IsActive, string(mod),
	)
	if err != nil {
		return mapErr("update moderation", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var current string
	err = s.pool.QueryRow(ctx, `SELECT status FROM community_quizzes WHERE id=$1`, id).Scan(&current)
	if err != nil {
		return mapErr("quiz "+id, err)
	}
	return domain.InvalidStatef("quiz %s is %s, expected %s", id, current, from)
}

func (s *CommunityStore) query(ctx context.Context, sql string, args ...any) ([]domain.CommunityQuiz, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapErr("list community quizzes", err)
	}
	defer rows.Close()

	out := make([]domain.CommunityQuiz, 0)
	for rows.Next() {
		quiz, err := scanQuiz(rows)
		if err != nil {
			return nil, mapErr("scan community quiz", err)
		}
		out = append(out, quiz)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list community quizzes", err)
	}
	return out, nil
}

func scanQuiz(row pgx.Row) (domain.CommunityQuiz, error) {
	var (
		quiz      domain.CommunityQuiz
		createdAt time.Time
		def, mod  []byte
	)
	if err := row.Scan(&quiz.ID, &quiz.CreatedBy, &createdAt, &def, &mod); err != nil {
		return domain.CommunityQuiz{}, err
	}
	quiz.CreatedAt = createdAt.UTC()
	if err := json.Unmarshal(def, &quiz.Definition); err != nil {
		return domain.CommunityQuiz{}, fmt.Errorf("unmarshal definition: %w", err)
	}
	if err := json.Unmarshal(mod, &quiz.Moderation); err != nil {
		return domain.CommunityQuiz{}, fmt.Errorf("unmarshal moderation: %w", err)
	}
	return quiz, nil
}
