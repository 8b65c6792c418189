package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"adaptive-quiz-service/internal/domain"
)

// QuestionSource loads a question-set JSONB document from Postgres.
type QuestionSource struct {
	pool  *pgxpool.Pool
	setID string
}

func NewQuestionSource(pool *pgxpool.Pool, setID string) *QuestionSource {
	return &QuestionSource{pool: pool, setID: setID}
}

func (s *QuestionSource) LoadQuestions(ctx context.Context) ([]byte, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM question_sets WHERE id=$1`, s.setID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("question set %q: %w", s.setID, domain.ErrEmptyQuestionSet)
	}
	if err != nil {
		return nil, fmt.Errorf("load question set: %w", err)
	}
	return raw, nil
}

// PutQuestionSet stores or replaces a question-set document.
func PutQuestionSet(ctx context.Context, pool *pgxpool.Pool, setID string, data []byte) error {
	_, err := pool.Exec(ctx, `INSERT INTO question_sets (id, data, updated_at) VALUES ($1, $2::jsonb, now())
		ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data, updated_at=EXCLUDED.updated_at`, setID, string(data))
	if err != nil {
		return fmt.Errorf("put question set: %w", err)
	}
	return nil
}
