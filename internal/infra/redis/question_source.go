package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"adaptive-quiz-service/internal/bank"
)

// CachedQuestionSource keeps the raw question set in Redis so that instances
// starting together hit the backing store once:
//
//	SET quiz:questions:{setID} <document> EX ttl
type CachedQuestionSource struct {
	client *redis.Client
	source bank.Source
	setID  string
	ttl    time.Duration
	log    *zap.Logger
	sf     singleflight.Group
}

// Option configures the Redis caches.
type Option func(*options)

type options struct {
	log *zap.Logger
}

// WithLogger reports best-effort cache writes that fail.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func NewCachedQuestionSource(client *redis.Client, source bank.Source, setID string, ttl time.Duration, opts ...Option) *CachedQuestionSource {
	o := buildOptions(opts)
	return &CachedQuestionSource{client: client, source: source, setID: setID, ttl: ttl, log: o.log}
}

func (s *CachedQuestionSource) LoadQuestions(ctx context.Context) ([]byte, error) {
	key := s.key()
	if raw, err := s.client.Get(ctx, key).Bytes(); err == nil && len(raw) > 0 {
		return raw, nil
	}

	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		if raw, err := s.client.Get(ctx, key).Bytes(); err == nil && len(raw) > 0 {
			return raw, nil
		}
		raw, err := s.source.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}
		// Only valid documents are cached.
		if _, err := bank.Parse(raw); err != nil {
			return nil, err
		}
		if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
			s.log.Debug("question cache write failed", zap.String("key", key), zap.Error(err))
		}
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (s *CachedQuestionSource) key() string {
	return "quiz:questions:" + s.setID
}
