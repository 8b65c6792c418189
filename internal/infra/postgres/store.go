package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"adaptive-quiz-service/internal/auth"
	"adaptive-quiz-service/internal/domain"
)

const uniqueViolation = "23505"

// Store persists accounts and session results in Postgres. It implements
// both app.AccountStore and app.ResultStore.
type Store struct {
	pool       *pgxpool.Pool
	bcryptCost int
}

func NewStore(pool *pgxpool.Pool, bcryptCost int) *Store {
	return &Store{pool: pool, bcryptCost: bcryptCost}
}

func (s *Store) Register(ctx context.Context, username, password string) (string, error) {
	if err := auth.ValidateCredentials(username, password); err != nil {
		return "", err
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	_, err = s.pool.Exec(ctx, `INSERT INTO users (id, username, password_hash) VALUES ($1, $2, $3)`,
		id, strings.TrimSpace(username), hash)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return "", domain.ErrDuplicateUsername
	}
	if err != nil {
		return "", fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

func (s *Store) Authenticate(ctx context.Context, username, password string) (string, error) {
	var (
		id   string
		hash []byte
	)
	err := s.pool.QueryRow(ctx, `SELECT id, password_hash FROM users WHERE username=$1`,
		strings.TrimSpace(username)).Scan(&id, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("load user: %w", err)
	}
	if err := auth.CheckPassword(hash, password); err != nil {
		return "", err
	}
	return id, nil
}

// RecordSession writes the result row and its per-answer rows in one
// transaction. A result whose SessionID is already stored is left as is.
func (s *Store) RecordSession(ctx context.Context, result domain.SessionResult) (string, error) {
	id := result.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	completedAt := result.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `INSERT INTO results (id, user_id, score, total, completed_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`,
		id, result.UserID, result.Score, result.Total, completedAt)
	if err != nil {
		return "", fmt.Errorf("insert result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return id, nil
	}

	batch := &pgx.Batch{}
	for _, a := range result.Answers {
		batch.Queue(`INSERT INTO answers (result_id, topic, correct) VALUES ($1, $2, $3)`, id, a.Topic, a.Correct)
	}
	br := tx.SendBatch(ctx, batch)
	for range result.Answers {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return "", fmt.Errorf("insert answer: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return "", fmt.Errorf("insert answers: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// TopAccounts returns every player when limit <= 0.
func (s *Store) TopAccounts(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	// LIMIT NULL is no limit.
	rows, err := s.pool.Query(ctx, `SELECT u.username, MAX(r.score) AS max_score
		FROM results r JOIN users u ON u.id = r.user_id
		GROUP BY u.username
		ORDER BY max_score DESC, u.username ASC
		LIMIT $1::bigint`, lim)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.Username, &e.MaxScore); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) TopicAccuracy(ctx context.Context, userID string) ([]domain.TopicAccuracy, error) {
	rows, err := s.pool.Query(ctx, `SELECT a.topic, COUNT(*) FILTER (WHERE a.correct), COUNT(*)
		FROM answers a JOIN results r ON r.id = a.result_id
		WHERE r.user_id = $1
		GROUP BY a.topic
		ORDER BY a.topic`, userID)
	if err != nil {
		return nil, fmt.Errorf("query topic accuracy: %w", err)
	}
	defer rows.Close()

	var stats []domain.TopicAccuracy
	for rows.Next() {
		var acc domain.TopicAccuracy
		if err := rows.Scan(&acc.Topic, &acc.Correct, &acc.Total); err != nil {
			return nil, err
		}
		stats = append(stats, acc)
	}
	return stats, rows.Err()
}
