package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"adaptive-quiz-service/internal/app"
	"adaptive-quiz-service/internal/bank"
	"adaptive-quiz-service/internal/config"
	"adaptive-quiz-service/internal/infra/memory"
	pgstore "adaptive-quiz-service/internal/infra/postgres"
	redisstore "adaptive-quiz-service/internal/infra/redis"
	"adaptive-quiz-service/internal/infra/sqlite"
	"adaptive-quiz-service/internal/metrics"
)

type store interface {
	app.AccountStore
	app.ResultStore
}

// backend is the set of stores selected by config.
type backend struct {
	pool     *pgxpool.Pool
	redis    *redis.Client
	store    store
	sessions app.SessionRepository
	stats    app.StatsReader
	closers  []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackend picks Postgres, then SQLite, then memory for accounts and
// results, and Redis or memory for sessions and the stats cache.
func openBackend(ctx context.Context, cfg config.Config, log *zap.Logger) (*backend, error) {
	b := &backend{}
	ok := false
	defer func() {
		if !ok {
			b.Close()
		}
	}()

	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = b.redis.Close() })
		if err := b.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
	}

	switch {
	case cfg.Postgres.URL != "":
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		b.pool = pool
		b.closers = append(b.closers, pool.Close)
		b.store = pgstore.NewStore(pool, cfg.Auth.BcryptCost)
		log.Info("using postgres store")
	case cfg.SQLite.Path != "":
		s, err := sqlite.Open(ctx, cfg.SQLite.Path, cfg.Auth.BcryptCost)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = s.Close() })
		b.store = s
		log.Info("using sqlite store", zap.String("path", cfg.SQLite.Path))
	default:
		b.store = memory.NewStore(cfg.Auth.BcryptCost)
		log.Info("using in-memory store")
	}

	statsTTL := config.Duration(cfg.Stats.TTL, 30*time.Second)
	if b.redis != nil {
		b.sessions = redisstore.NewSessionStore(b.redis, config.Duration(cfg.Redis.TTL, time.Hour))
		b.stats = redisstore.NewStatsCache(b.redis, b.store, statsTTL, redisstore.WithLogger(log))
	} else {
		b.sessions = memory.NewSessionStore()
		b.stats = memory.NewStatsCache(b.store, statsTTL)
	}
	ok = true
	return b, nil
}

// questionSource resolves the configured question document, cached in Redis
// when available.
func (b *backend) questionSource(cfg config.Config, log *zap.Logger) (bank.Source, error) {
	var src bank.Source
	switch cfg.Questions.Source {
	case "", "file":
		src = bank.FileSource{Path: cfg.Questions.Path}
	case "postgres":
		if b.pool == nil {
			return nil, fmt.Errorf("questions.source is postgres but postgres.url is not set")
		}
		src = pgstore.NewQuestionSource(b.pool, cfg.Questions.SetID)
	default:
		return nil, fmt.Errorf("unknown questions.source %q", cfg.Questions.Source)
	}
	if b.redis != nil {
		src = redisstore.NewCachedQuestionSource(b.redis, src, cfg.Questions.SetID, config.Duration(cfg.Questions.CacheTTL, 10*time.Minute), redisstore.WithLogger(log))
	}
	return src, nil
}

// newService loads the bank and assembles the quiz service on top of b.
func (b *backend) newService(ctx context.Context, cfg config.Config, log *zap.Logger, m *metrics.Metrics) (*app.QuizService, error) {
	src, err := b.questionSource(cfg, log)
	if err != nil {
		return nil, err
	}
	qb, err := bank.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	log.Info("question bank loaded", zap.Int("questions", qb.Len()), zap.Strings("topics", qb.Topics()))
	return app.NewQuizService(qb, b.store, b.store, b.sessions,
		app.WithStats(b.stats),
		app.WithMetrics(m),
		app.WithLogger(log)), nil
}
