// Package sqlite stores accounts and session results in a local SQLite
// database, the single-file layout used by the terminal front end.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"adaptive-quiz-service/internal/auth"
	"adaptive-quiz-service/internal/domain"
)

const schema = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT UNIQUE NOT NULL,
  password_hash BLOB NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id),
  score INTEGER NOT NULL,
  total INTEGER NOT NULL,
  completed_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS results_user_id_idx ON results (user_id);

CREATE TABLE IF NOT EXISTS answers (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  result_id TEXT NOT NULL REFERENCES results(id) ON DELETE CASCADE,
  topic TEXT NOT NULL,
  correct INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS answers_result_id_idx ON answers (result_id);
`

// Store implements app.AccountStore and app.ResultStore on SQLite.
type Store struct {
	db         *sql.DB
	bcryptCost int
	clock      func() time.Time
}

// Open opens (creating if needed) the database at path and ensures the schema exists.
func Open(ctx context.Context, path string, bcryptCost int) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One connection keeps writes serialised and lets :memory: databases persist.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{db: db, bcryptCost: bcryptCost, clock: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
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
	_, err = s.db.ExecContext(ctx, `INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		id, strings.TrimSpace(username), hash, s.clock().Unix())
	if isUniqueViolation(err) {
		return "", domain.ErrDuplicateUsername
	}
	if err != nil {
		return "", fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

func (s *Store) Authenticate(ctx context.Context, username, password string) (string, error) {
	var (
		id   string
		hash []byte
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE username=?`,
		strings.TrimSpace(username)).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
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
		completedAt = s.clock()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO results (id, user_id, score, total, completed_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		id, result.UserID, result.Score, result.Total, completedAt.Unix())
	if err != nil {
		return "", fmt.Errorf("insert result: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return "", fmt.Errorf("insert result: %w", err)
	} else if n == 0 {
		return id, nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO answers (result_id, topic, correct) VALUES (?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare answers: %w", err)
	}
	defer stmt.Close()
	for _, a := range result.Answers {
		if _, err := stmt.ExecContext(ctx, id, a.Topic, a.Correct); err != nil {
			return "", fmt.Errorf("insert answer: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// TopAccounts returns every player when limit <= 0.
func (s *Store) TopAccounts(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}
	rows, err := s.db.QueryContext(ctx, `SELECT u.username, MAX(r.score) AS max_score
		FROM results r JOIN users u ON u.id = r.user_id
		GROUP BY r.user_id
		ORDER BY max_score DESC, u.username ASC
		LIMIT ?`, limit)
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
	rows, err := s.db.QueryContext(ctx, `SELECT a.topic, SUM(a.correct), COUNT(*)
		FROM answers a JOIN results r ON r.id = a.result_id
		WHERE r.user_id = ?
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
