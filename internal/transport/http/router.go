package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"adaptive-quiz-service/internal/app"
	"adaptive-quiz-service/internal/auth"
	"adaptive-quiz-service/internal/metrics"
)

// RouterConfig holds the transport knobs read from config.
type RouterConfig struct {
	CORSOrigins      []string
	LeaderboardLimit int
	RateRequests     int
	RateWindow       time.Duration
}

// NewRouter mounts the REST API, the websocket endpoint, health and metrics.
func NewRouter(service *app.QuizService, tokens *auth.TokenService, m *metrics.Metrics, log *zap.Logger, cfg RouterConfig) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	if cfg.RateRequests <= 0 {
		cfg.RateRequests = 10
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}

	api := &API{service: service, tokens: tokens, log: log, leaderboardLimit: cfg.LeaderboardLimit}
	ws := NewWSHandler(service, tokens, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observe(log, m))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", m.Handler())
	r.Get("/ws", ws.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(rateLimit(cfg.RateRequests, cfg.RateWindow))
			r.Post("/register", api.register)
			r.Post("/login", api.login)
		})
		r.Get("/leaderboard", api.leaderboard)

		r.Group(func(r chi.Router) {
			r.Use(requireToken(tokens))
			r.Post("/session/next", api.next)
			r.Post("/session/answer", api.answer)
			r.Post("/session/restart", api.restart)
			r.Get("/session", api.status)
			r.Get("/stats", api.stats)
		})
	})
	return r
}
