// Package config loads and validates stormtrack configuration from file,
// environment, and defaults.
package config

import (
	"errors"
	"log/slog"
	"runtime"
	"time"
)

// Config is the top-level configuration struct for stormtrack.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	Zones     ZonesConfig     `mapstructure:"zones"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// UpstreamConfig holds upstream endpoint settings.
type UpstreamConfig struct {
	// DiscoveryBase is the base URL of the observation site (index page,
	// detail pages, history and radii files live under it).
	DiscoveryBase string `mapstructure:"discovery_base"`
	// ADeckBase is the base URL of the A-Deck file tree.
	ADeckBase string `mapstructure:"adeck_base"`
	// FetchTimeout bounds a single upstream request.
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	// RateLimitPerOrigin caps concurrent requests per origin.
	RateLimitPerOrigin int `mapstructure:"rate_limit_per_origin"`
}

// DatabaseConfig holds persistence settings.
type DatabaseConfig struct {
	// URL is the Postgres connection string.
	URL string `mapstructure:"url"`
	// MaxOpenConns bounds the connection pool.
	MaxOpenConns int `mapstructure:"max_open_conns"`
}

// SchedulerConfig holds worker runtime knobs.
type SchedulerConfig struct {
	// Workers is the worker routine count. Zero means max(2, NumCPU).
	Workers int `mapstructure:"workers"`
	// SoftDeadline surfaces a warning event when a task exceeds it.
	SoftDeadline time.Duration `mapstructure:"soft_deadline"`
	// HardDeadline cancels a task that exceeds it.
	HardDeadline time.Duration `mapstructure:"hard_deadline"`
	// ShutdownGrace is how long in-flight tasks get after a shutdown signal.
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`
}

// LifecycleConfig holds staleness thresholds in hours.
type LifecycleConfig struct {
	// DormantHours is the active→dormant staleness threshold.
	DormantHours int `mapstructure:"dormant_hours"`
	// ArchiveHours is the dormant→archived staleness threshold.
	ArchiveHours int `mapstructure:"archive_hours"`
}

// ZonesConfig holds zone-builder inputs.
type ZonesConfig struct {
	// CoastFile is the path of the coastline GeoJSON file. Empty uses the
	// built-in simplified coastlines.
	CoastFile string `mapstructure:"coast_file"`
	// WatchCoastline reloads the coast file on change when true.
	WatchCoastline bool `mapstructure:"watch_coastline"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`
	// JSON switches the handler to JSON output.
	JSON bool `mapstructure:"json"`
}

// MetricsConfig holds the diagnostics endpoint settings.
type MetricsConfig struct {
	// Addr is the listen address for /metrics, /healthz, /readyz.
	// Empty disables the diagnostics server.
	Addr string `mapstructure:"addr"`
}

// Defaults.
const (
	DefaultDiscoveryBase      = "https://tropic.ssec.wisc.edu/real-time/adt/"
	DefaultADeckBase          = "https://ftp.nhc.noaa.gov/atcf/aid_public/"
	DefaultFetchTimeout       = 30 * time.Second
	DefaultRateLimitPerOrigin = 1
	DefaultMaxOpenConns       = 8
	DefaultSoftDeadline       = 25 * time.Minute
	DefaultHardDeadline       = 30 * time.Minute
	DefaultShutdownGrace      = 5 * time.Second
	DefaultDormantHours       = 24
	DefaultArchiveHours       = 168
	DefaultLogLevel           = "info"
	DefaultMetricsAddr        = ":9180"
)

// Sentinel errors for configuration validation.
var (
	// ErrMissingDatabaseURL indicates no database URL was configured.
	ErrMissingDatabaseURL = errors.New("database.url must be set")
	// ErrInvalidWorkers indicates the workers value is negative.
	ErrInvalidWorkers = errors.New("scheduler.workers must be non-negative")
	// ErrInvalidRateLimit indicates the per-origin rate limit is not positive.
	ErrInvalidRateLimit = errors.New("upstream.rate_limit_per_origin must be positive")
	// ErrInvalidDeadlines indicates the soft deadline is not below the hard deadline.
	ErrInvalidDeadlines = errors.New("scheduler.soft_deadline must be below scheduler.hard_deadline")
	// ErrInvalidDormantHours indicates the dormant threshold is not positive.
	ErrInvalidDormantHours = errors.New("lifecycle.dormant_hours must be positive")
	// ErrInvalidArchiveHours indicates the archive threshold does not exceed the dormant threshold.
	ErrInvalidArchiveHours = errors.New("lifecycle.archive_hours must exceed lifecycle.dormant_hours")
	// ErrInvalidLogLevel indicates an unknown log level.
	ErrInvalidLogLevel = errors.New("log.level must be one of debug, info, warn, error")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return ErrMissingDatabaseURL
	}

	if c.Scheduler.Workers < 0 {
		return ErrInvalidWorkers
	}

	if c.Upstream.RateLimitPerOrigin <= 0 {
		return ErrInvalidRateLimit
	}

	if c.Scheduler.SoftDeadline >= c.Scheduler.HardDeadline {
		return ErrInvalidDeadlines
	}

	if c.Lifecycle.DormantHours <= 0 {
		return ErrInvalidDormantHours
	}

	if c.Lifecycle.ArchiveHours <= c.Lifecycle.DormantHours {
		return ErrInvalidArchiveHours
	}

	_, err := c.SlogLevel()

	return err
}

// WorkerCount resolves the effective worker count: the configured value, or
// max(2, NumCPU) when zero.
func (c *Config) WorkerCount() int {
	if c.Scheduler.Workers > 0 {
		return c.Scheduler.Workers
	}

	return max(2, runtime.NumCPU())
}

// SlogLevel maps the configured log level onto a slog.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, ErrInvalidLogLevel
	}
}
