package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"adaptive-quiz-service/internal/domain"
)

// StatsReader answers leaderboard and accuracy queries from a result store.
type StatsReader interface {
	TopAccounts(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	TopicAccuracy(ctx context.Context, userID string) ([]domain.TopicAccuracy, error)
}

// StatsCache caches stats queries in Redis and falls back to the reader on a miss.
// Leaderboards are stored as: SET quiz:stats:top:{limit} <json>
// Accuracy is stored as:      SET quiz:stats:acc:{userID} <json>
// Leaderboard keys are tracked in the set quiz:stats:top so they can be dropped together.
type StatsCache struct {
	client *redis.Client
	reader StatsReader
	ttl    time.Duration
	log    *zap.Logger
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewStatsCache(client *redis.Client, reader StatsReader, ttl time.Duration, opts ...Option) *StatsCache {
	o := buildOptions(opts)
	return &StatsCache{
		client: client,
		reader: reader,
		ttl:    ttl,
		log:    o.log,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *StatsCache) TopAccounts(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	key := c.topKey(limit)
	var entries []domain.LeaderboardEntry
	if c.readCache(ctx, key, &entries) {
		return entries, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		var cached []domain.LeaderboardEntry
		if c.readCache(ctx, key, &cached) {
			return cached, nil
		}
		fresh, err := c.reader.TopAccounts(ctx, limit)
		if err != nil {
			return nil, err
		}
		c.writeCache(ctx, key, fresh, true)
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.LeaderboardEntry), nil
}

func (c *StatsCache) TopicAccuracy(ctx context.Context, userID string) ([]domain.TopicAccuracy, error) {
	key := c.accuracyKey(userID)
	var stats []domain.TopicAccuracy
	if c.readCache(ctx, key, &stats) {
		return stats, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		var cached []domain.TopicAccuracy
		if c.readCache(ctx, key, &cached) {
			return cached, nil
		}
		fresh, err := c.reader.TopicAccuracy(ctx, userID)
		if err != nil {
			return nil, err
		}
		c.writeCache(ctx, key, fresh, false)
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.TopicAccuracy), nil
}

// Invalidate drops the user's accuracy entry and every cached leaderboard.
func (c *StatsCache) Invalidate(ctx context.Context, userID string) error {
	keys, err := c.client.SMembers(ctx, c.topIndexKey()).Result()
	if err != nil {
		return err
	}
	keys = append(keys, c.accuracyKey(userID), c.topIndexKey())
	return c.client.Del(ctx, keys...).Err()
}

// readCache treats any Redis or decode failure as a miss.
func (c *StatsCache) readCache(ctx context.Context, key string, dst any) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// writeCache is best-effort; the reader stays the source of truth.
func (c *StatsCache) writeCache(ctx context.Context, key string, value any, leaderboard bool) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	pipe := c.client.Pipeline()
	pipe.Set(ctx, key, raw, c.ttlWithJitter())
	if leaderboard {
		pipe.SAdd(ctx, c.topIndexKey(), key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Debug("stats cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *StatsCache) topKey(limit int) string {
	return "quiz:stats:top:" + strconv.Itoa(limit)
}

func (c *StatsCache) topIndexKey() string {
	return "quiz:stats:top"
}

func (c *StatsCache) accuracyKey(userID string) string {
	return "quiz:stats:acc:" + userID
}

func (c *StatsCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
