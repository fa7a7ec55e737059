// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a YAML file and FGOC_ environment variables on top.
// - Validate reports problems wrapped in ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/okian/fgoc/internal/domain/model"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory batch queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of scoring workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the batch ID deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxAnomaliesLimit caps GET /v1/anomalies?limit.
	MaxAnomaliesLimit int `koanf:"max_anomalies_limit"`

	// Mu is the default gravitational parameter in km^3/s^2.
	Mu float64 `koanf:"mu"`

	// Default scoring constants.
	Alpha1        float64 `koanf:"alpha1"`
	Alpha2        float64 `koanf:"alpha2"`
	Tau           float64 `koanf:"tau"`
	FlagThreshold float64 `koanf:"flag_threshold"`

	// Short-arc classifier weights and threshold.
	ShortArcAlpha     float64 `koanf:"shortarc_alpha"`
	ShortArcBeta      float64 `koanf:"shortarc_beta"`
	ShortArcThreshold float64 `koanf:"shortarc_threshold"`

	// StoreBackend is memory or sqlite.
	StoreBackend string `koanf:"store_backend"`
	SQLitePath   string `koanf:"sqlite_path"`

	TracingEnabled     bool    `koanf:"tracing_enabled"`
	TracingExporter    string  `koanf:"tracing_exporter"`
	TracingEndpoint    string  `koanf:"tracing_endpoint"`
	TracingSampleRatio float64 `koanf:"tracing_sample_ratio"`
	ServiceName        string  `koanf:"service_name"`
}

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// New creates a Config populated with defaults.
func New(_ context.Context) *Config {
	p := model.DefaultScoreParams()
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		QueueSize:          10_000,
		WorkerCount:        runtime.NumCPU(),
		DedupeSize:         100_000,
		MaxAnomaliesLimit:  100,
		Mu:                 model.EarthMu,
		Alpha1:             p.Alpha1,
		Alpha2:             p.Alpha2,
		Tau:                p.Tau,
		FlagThreshold:      p.FlagThreshold,
		ShortArcAlpha:      8,
		ShortArcBeta:       4,
		ShortArcThreshold:  0.25,
		StoreBackend:       StoreMemory,
		SQLitePath:         "data/fgoc.db",
		TracingExporter:    "stdout",
		TracingEndpoint:    "localhost:4317",
		TracingSampleRatio: 1,
		ServiceName:        "fgoc",
	}
}

// ScoreParams returns the configured default scoring constants.
func (c *Config) ScoreParams() model.ScoreParams {
	return model.ScoreParams{
		Alpha1:        c.Alpha1,
		Alpha2:        c.Alpha2,
		Tau:           c.Tau,
		FlagThreshold: c.FlagThreshold,
	}
}

// Validate checks the fields the service cannot start without.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("addr must not be empty: %w", ErrInvalidConfig)
	case !(c.Mu > 0) || math.IsInf(c.Mu, 0):
		return fmt.Errorf("mu must be positive and finite, got %v: %w", c.Mu, ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("queue_size must be positive, got %d: %w", c.QueueSize, ErrInvalidConfig)
	case c.MaxAnomaliesLimit < 1:
		return fmt.Errorf("max_anomalies_limit must be positive, got %d: %w", c.MaxAnomaliesLimit, ErrInvalidConfig)
	case c.StoreBackend != StoreMemory && c.StoreBackend != StoreSQLite:
		return fmt.Errorf("unknown store_backend %q: %w", c.StoreBackend, ErrInvalidConfig)
	case c.StoreBackend == StoreSQLite && c.SQLitePath == "":
		return fmt.Errorf("sqlite_path required for sqlite backend: %w", ErrInvalidConfig)
	case c.TracingExporter != "stdout" && c.TracingExporter != "otlp":
		return fmt.Errorf("unknown tracing_exporter %q: %w", c.TracingExporter, ErrInvalidConfig)
	case c.TracingSampleRatio < 0 || c.TracingSampleRatio > 1:
		return fmt.Errorf("tracing_sample_ratio %v outside [0,1]: %w", c.TracingSampleRatio, ErrInvalidConfig)
	}
	return nil
}
