package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port        string   `yaml:"port"`
		CORSOrigins []string `yaml:"corsOrigins"`
	} `yaml:"server"`
	Log  Log `yaml:"log"`
	Auth struct {
		Secret     string `yaml:"secret"`
		TokenTTL   string `yaml:"tokenTTL"`
		BcryptCost int    `yaml:"bcryptCost"`
		RateLimit  struct {
			Requests int    `yaml:"requests"`
			Window   string `yaml:"window"`
		} `yaml:"rateLimit"`
	} `yaml:"auth"`
	Questions struct {
		// Source is "file" or "postgres".
		Source   string `yaml:"source"`
		Path     string `yaml:"path"`
		SetID    string `yaml:"setId"`
		CacheTTL string `yaml:"cacheTTL"`
	} `yaml:"questions"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Stats struct {
		TTL              string `yaml:"ttl"`
		LeaderboardLimit int    `yaml:"leaderboardLimit"`
	} `yaml:"stats"`
}

// Log configures the zap logger.
type Log struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// Load reads YAML config from path. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// DefaultSecret signs tokens when no secret is configured.
const DefaultSecret = "change-me"

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("QUIZ_AUTH_SECRET"); v != "" {
		c.Auth.Secret = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Auth.Secret == "" {
		c.Auth.Secret = DefaultSecret
	}
	if c.Auth.RateLimit.Requests == 0 {
		c.Auth.RateLimit.Requests = 10
	}
	if c.Questions.Source == "" {
		c.Questions.Source = "file"
	}
	if c.Questions.Path == "" {
		c.Questions.Path = "config/questions.json"
	}
	if c.Questions.SetID == "" {
		c.Questions.SetID = "default"
	}
	if c.Stats.LeaderboardLimit == 0 {
		c.Stats.LeaderboardLimit = 10
	}
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
