package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("QUIZ_AUTH_SECRET", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8080" || cfg.Questions.Source != "file" || cfg.Stats.LeaderboardLimit != 10 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadReadsYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  port: "9090"
questions:
  path: data/pcep.yaml
redis:
  addr: localhost:6379
  ttl: 30m
stats:
  leaderboardLimit: 5
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("DATABASE_URL", "postgres://quiz@localhost/quiz")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("QUIZ_AUTH_SECRET", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Questions.Path != "data/pcep.yaml" || cfg.Stats.LeaderboardLimit != 5 {
		t.Fatalf("yaml values not applied: %+v", cfg)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("expected yaml redis addr kept when env empty, got %q", cfg.Redis.Addr)
	}
	if cfg.Postgres.URL != "postgres://quiz@localhost/quiz" || cfg.Auth.Secret != "from-env" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if got := Duration(cfg.Redis.TTL, time.Minute); got != 30*time.Minute {
		t.Fatalf("expected 30m, got %v", got)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected yaml error")
	}
}

func TestDuration(t *testing.T) {
	if got := Duration("", time.Second); got != time.Second {
		t.Fatalf("expected fallback, got %v", got)
	}
	if got := Duration("nonsense", time.Second); got != time.Second {
		t.Fatalf("expected fallback for invalid input, got %v", got)
	}
	if got := Duration("250ms", time.Second); got != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v", got)
	}
}
