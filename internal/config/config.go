// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a .env file, an optional YAML file and PERFBOARD_* env vars.
// - Source read failures wrap ErrLoadConfig; validation failures wrap
//   ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/perfboard/internal/domain/scoring"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the document store: memory or sqlite.
	StoreDriver string `koanf:"store_driver"`

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `koanf:"sqlite_path"`

	// Indexes declares equality indexes per collection. Empty keeps the
	// service defaults.
	Indexes map[string][]string `koanf:"indexes"`

	// DisableIndexes declares no index at all, so every filtered read takes
	// the full-scan path.
	DisableIndexes bool `koanf:"disable_indexes"`

	// FeedQueueSize bounds the change notification queue.
	FeedQueueSize int `koanf:"feed_queue_size"`

	// FeedWorkerCount sets the number of change dispatch workers. Zero means
	// one per CPU.
	FeedWorkerCount int `koanf:"feed_worker_count"`

	// DedupeSize sets how many feedback submission keys are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// DefaultLeaderboardLimit applies when GET /leaderboard names no limit.
	DefaultLeaderboardLimit int `koanf:"default_leaderboard_limit"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// FeedbackScale is raw or normalized.
	FeedbackScale string `koanf:"feedback_scale"`

	// WriteRatePerSec and WriteBurst shape the token bucket on write routes.
	WriteRatePerSec float64 `koanf:"write_rate_per_sec"`
	WriteBurst      int     `koanf:"write_burst"`

	// SeedFile names a YAML fixture loaded at startup.
	SeedFile string `koanf:"seed_file"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                "info",
		LogFormat:               "text",
		Addr:                    ":9080",
		StoreDriver:             "memory",
		SQLitePath:              "perfboard.db",
		FeedQueueSize:           4096,
		FeedWorkerCount:         0,
		DedupeSize:              50_000,
		DefaultLeaderboardLimit: 10,
		MaxLeaderboardLimit:     1000,
		FeedbackScale:           string(scoring.ScaleRaw),
		WriteRatePerSec:         50,
		WriteBurst:              100,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.StoreDriver != "memory" && c.StoreDriver != "sqlite":
		return fmt.Errorf("%w: store_driver %q (want memory or sqlite)", ErrInvalidConfig, c.StoreDriver)
	case c.StoreDriver == "sqlite" && strings.TrimSpace(c.SQLitePath) == "":
		return fmt.Errorf("%w: sqlite_path is required for the sqlite driver", ErrInvalidConfig)
	case c.FeedQueueSize < 1:
		return fmt.Errorf("%w: feed_queue_size must be positive", ErrInvalidConfig)
	case c.FeedWorkerCount < 0:
		return fmt.Errorf("%w: feed_worker_count must not be negative", ErrInvalidConfig)
	case c.DedupeSize < 1:
		return fmt.Errorf("%w: dedupe_size must be positive", ErrInvalidConfig)
	case c.MaxLeaderboardLimit < 1:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	case c.DefaultLeaderboardLimit < 0 || c.DefaultLeaderboardLimit > c.MaxLeaderboardLimit:
		return fmt.Errorf("%w: default_leaderboard_limit must be within 0..%d", ErrInvalidConfig, c.MaxLeaderboardLimit)
	case c.WriteRatePerSec < 0:
		return fmt.Errorf("%w: write_rate_per_sec must not be negative", ErrInvalidConfig)
	case c.WriteRatePerSec > 0 && c.WriteBurst < 1:
		return fmt.Errorf("%w: write_burst must be positive when writes are limited", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q (want text or json)", ErrInvalidConfig, c.LogFormat)
	}
	if _, err := scoring.ParseFeedbackScale(c.FeedbackScale); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for collection, fields := range c.Indexes {
		for _, f := range fields {
			if strings.TrimSpace(f) == "" {
				return fmt.Errorf("%w: empty index field for %s", ErrInvalidConfig, collection)
			}
		}
	}
	return nil
}

// StoreIndexes returns the index declaration to hand to the service: nil for
// the defaults, an empty map when indexes are disabled.
func (c *Config) StoreIndexes() map[string][]string {
	if c.DisableIndexes {
		return map[string][]string{}
	}
	if len(c.Indexes) == 0 {
		return nil
	}
	return c.Indexes
}
