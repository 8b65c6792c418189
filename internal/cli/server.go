package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"adaptive-quiz-service/internal/auth"
	"adaptive-quiz-service/internal/config"
	"adaptive-quiz-service/internal/metrics"
	transport "adaptive-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, log, err := setup(configPath, false)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer be.Close()

	m := metrics.New()
	service, err := be.newService(ctx, cfg, log, m)
	if err != nil {
		log.Error("question bank unavailable", zap.Error(err))
		return err
	}
	if cfg.Auth.Secret == config.DefaultSecret {
		log.Warn("auth.secret is the built-in default; set QUIZ_AUTH_SECRET in production")
	}
	tokens := auth.NewTokenService(cfg.Auth.Secret, config.Duration(cfg.Auth.TokenTTL, 24*time.Hour))

	router := transport.NewRouter(service, tokens, m, log, transport.RouterConfig{
		CORSOrigins:      cfg.Server.CORSOrigins,
		LeaderboardLimit: cfg.Stats.LeaderboardLimit,
		RateRequests:     cfg.Auth.RateLimit.Requests,
		RateWindow:       config.Duration(cfg.Auth.RateLimit.Window, time.Minute),
	})

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting quiz service", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	case err := <-serveErr:
		if err != nil {
			log.Error("server failed", zap.Error(err))
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
