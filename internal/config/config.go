// Package config defines service configuration structures and loading hooks.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	Log  LogConfig  `koanf:"log"`
	HTTP HTTPConfig `koanf:"http"`

	// QueueSize bounds the in-memory engagement queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of engagement workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the swipe deduplication cache. Zero means unbounded.
	DedupeSize int `koanf:"dedupe_size"`

	Scoring ScoringConfig `koanf:"scoring"`
	Store   StoreConfig   `koanf:"store"`
}

// LogConfig controls the global logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is text or json.
	Format string `koanf:"format"`
}

// HTTPConfig controls the API server.
type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ScoringConfig tunes the session scorer.
type ScoringConfig struct {
	TopN              int `koanf:"top_n"`
	AffinityThreshold int `koanf:"affinity_threshold"`
	DiversityCap      int `koanf:"diversity_cap"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	// Backend is memory, badger or postgres.
	Backend     string `koanf:"backend"`
	BadgerPath  string `koanf:"badger_path"`
	PostgresDSN string `koanf:"postgres_dsn"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		HTTP: HTTPConfig{
			Addr:            ":9080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		QueueSize:   10_000,
		WorkerCount: runtime.NumCPU(),
		DedupeSize:  50_000,
		Scoring: ScoringConfig{
			TopN:              3,
			AffinityThreshold: 3,
			DiversityCap:      2,
		},
		Store: StoreConfig{Backend: "memory"},
	}
}

// Validate reports the first invalid setting wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.HTTP.Addr == "":
		return fmt.Errorf("%w: http.addr must not be empty", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be positive, got %d", ErrInvalidConfig, c.WorkerCount)
	case c.DedupeSize < 0:
		return fmt.Errorf("%w: dedupe_size must not be negative, got %d", ErrInvalidConfig, c.DedupeSize)
	case c.Scoring.TopN < 1:
		return fmt.Errorf("%w: scoring.top_n must be positive, got %d", ErrInvalidConfig, c.Scoring.TopN)
	case c.Scoring.AffinityThreshold < 1:
		return fmt.Errorf("%w: scoring.affinity_threshold must be positive, got %d", ErrInvalidConfig, c.Scoring.AffinityThreshold)
	case c.Scoring.DiversityCap < 1:
		return fmt.Errorf("%w: scoring.diversity_cap must be positive, got %d", ErrInvalidConfig, c.Scoring.DiversityCap)
	}

	switch c.Store.Backend {
	case "memory":
	case "badger":
		if c.Store.BadgerPath == "" {
			return fmt.Errorf("%w: store.badger_path is required for the badger backend", ErrInvalidConfig)
		}
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("%w: store.postgres_dsn is required for the postgres backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store.backend %q", ErrInvalidConfig, c.Store.Backend)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log.format %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}
