package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"adaptive-quiz-service/internal/quiz"
)

// SessionStore keeps session snapshots in Redis so any instance can serve a
// player's next request. Keys expire after ttl of inactivity:
//
//	SET quiz:session:{userID} <snapshot json> EX ttl
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Get(ctx context.Context, userID string) (quiz.Snapshot, bool, error) {
	raw, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return quiz.Snapshot{}, false, nil
	}
	if err != nil {
		return quiz.Snapshot{}, false, fmt.Errorf("get session: %w", err)
	}
	var snap quiz.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return quiz.Snapshot{}, false, fmt.Errorf("decode session: %w", err)
	}
	return snap, true, nil
}

func (s *SessionStore) Save(ctx context.Context, snap quiz.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(snap.UserID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, userID string) error {
	return s.client.Del(ctx, s.key(userID)).Err()
}

func (s *SessionStore) key(userID string) string {
	return "quiz:session:" + userID
}
