package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"adaptive-quiz-service/internal/domain"
)

// StatsReader answers leaderboard and accuracy queries from a result store.
type StatsReader interface {
	TopAccounts(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	TopicAccuracy(ctx context.Context, userID string) ([]domain.TopicAccuracy, error)
}

// StatsCache caches stats queries with TTL to avoid repeated aggregate scans.
type StatsCache struct {
	reader StatsReader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu           sync.RWMutex
	gen          uint64 // bumped by Invalidate; fills started earlier are not stored
	leaderboards map[int]cachedEntry[[]domain.LeaderboardEntry]
	accuracy     map[string]cachedEntry[[]domain.TopicAccuracy]
}

type cachedEntry[T any] struct {
	value     T
	expiresAt time.Time
}

func NewStatsCache(reader StatsReader, ttl time.Duration) *StatsCache {
	return &StatsCache{
		reader:       reader,
		ttl:          ttl,
		clock:        time.Now,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
		leaderboards: make(map[int]cachedEntry[[]domain.LeaderboardEntry]),
		accuracy:     make(map[string]cachedEntry[[]domain.TopicAccuracy]),
	}
}

func (c *StatsCache) TopAccounts(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if entry, ok := c.cachedLeaderboard(limit); ok {
		return entry, nil
	}

	gen := c.generation()
	result, err, _ := c.sf.Do(flightKey("top", gen, strconv.Itoa(limit)), func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if entry, ok := c.cachedLeaderboard(limit); ok {
			return entry, nil
		}
		entries, err := c.reader.TopAccounts(ctx, limit)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen == gen {
			c.leaderboards[limit] = cachedEntry[[]domain.LeaderboardEntry]{value: entries, expiresAt: c.clock().Add(c.ttlWithJitter())}
		}
		c.mu.Unlock()
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.LeaderboardEntry), nil
}

func (c *StatsCache) TopicAccuracy(ctx context.Context, userID string) ([]domain.TopicAccuracy, error) {
	if entry, ok := c.cachedAccuracy(userID); ok {
		return entry, nil
	}

	gen := c.generation()
	result, err, _ := c.sf.Do(flightKey("acc", gen, userID), func() (interface{}, error) {
		if entry, ok := c.cachedAccuracy(userID); ok {
			return entry, nil
		}
		stats, err := c.reader.TopicAccuracy(ctx, userID)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen == gen {
			c.accuracy[userID] = cachedEntry[[]domain.TopicAccuracy]{value: stats, expiresAt: c.clock().Add(c.ttlWithJitter())}
		}
		c.mu.Unlock()
		return stats, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.TopicAccuracy), nil
}

// Invalidate drops the user's accuracy entry and every cached leaderboard.
// Fills already in flight finish for their callers but are not cached.
func (c *StatsCache) Invalidate(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	delete(c.accuracy, userID)
	clear(c.leaderboards)
	return nil
}

func (c *StatsCache) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

func flightKey(kind string, gen uint64, id string) string {
	return kind + ":" + strconv.FormatUint(gen, 10) + ":" + id
}

func (c *StatsCache) cachedLeaderboard(limit int) ([]domain.LeaderboardEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.leaderboards[limit]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return nil, false
	}
	return entry.value, true
}

func (c *StatsCache) cachedAccuracy(userID string) ([]domain.TopicAccuracy, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.accuracy[userID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return nil, false
	}
	return entry.value, true
}

func (c *StatsCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
