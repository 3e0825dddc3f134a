package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"skillquiz-service/internal/domain"
)

// ResultStore appends quiz results; the full record lives in a JSONB column.
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

func (s *ResultStore) Append(ctx context.Context, userID string, rec domain.ResultRecord) (string, error) {
	rec.ID = uuid.NewString()
	rec.UserID = userID
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO quiz_results (id, user_id, category, completed_at, data)
		VALUES ($1, $2, $3, $4, $5::jsonb)`,
		rec.ID, userID, rec.Category, rec.CompletedAt, string(data),
	)
	if err != nil {
		return "", mapErr("insert result", err)
	}
	return rec.ID, nil
}

func (s *ResultStore) ListByUser(ctx context.Context, userID string, limit int) ([]domain.ResultRecord, error) {
	query := `SELECT data FROM quiz_results WHERE user_id=$1 ORDER BY completed_at DESC, id`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr("list results", err)
	}
	defer rows.Close()

	out := make([]domain.ResultRecord, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, mapErr("scan result", err)
		}
		var rec domain.ResultRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list results", err)
	}
	return out, nil
}
