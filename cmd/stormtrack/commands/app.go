// Package commands implements the stormtrack CLI commands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/stormtrack/stormtrack/internal/config"
	"github.com/stormtrack/stormtrack/internal/discovery"
	"github.com/stormtrack/stormtrack/internal/events"
	"github.com/stormtrack/stormtrack/internal/fetch"
	"github.com/stormtrack/stormtrack/internal/forecast"
	"github.com/stormtrack/stormtrack/internal/ingest"
	"github.com/stormtrack/stormtrack/internal/lifecycle"
	"github.com/stormtrack/stormtrack/internal/observability"
	"github.com/stormtrack/stormtrack/internal/store"
	"github.com/stormtrack/stormtrack/internal/zones"
)

// Process exit codes: transient failures are retryable by the caller,
// permanent ones are not.
const (
	exitOK        = 0
	exitTransient = 1
	exitPermanent = 2
	exitNotFound  = 3
)

// configError marks failures that stem from configuration or operator input,
// mapped to the permanent exit code.
type configError struct{ err error }

func (e configError) Error() string { return e.err.Error() }
func (e configError) Unwrap() error { return e.err }

// ExitCode maps a command error onto the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return exitOK
	}

	if errors.Is(err, store.ErrNotFound) {
		return exitNotFound
	}

	var cfgErr configError
	if errors.As(err, &cfgErr) || errors.Is(err, store.ErrConflict) {
		return exitPermanent
	}

	return exitTransient
}

// app holds the wired service graph shared by all commands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	telemetry *observability.Telemetry
	metrics   *observability.PipelineMetrics
	bus       *events.Bus
	store     *store.Store
	client    *fetch.Client
	discovery *discovery.Service
	ingest    *ingest.Service
	forecast  *forecast.Service
	coast     *zones.CoastSource
	builder   *zones.Builder
	lifecycle *lifecycle.Service
}

// newApp loads configuration, connects the database, runs migrations, and
// wires the services.
func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, loadErr := config.Load(configPath)
	if loadErr != nil {
		return nil, configError{err: loadErr}
	}

	level, levelErr := cfg.SlogLevel()
	if levelErr != nil {
		return nil, configError{err: levelErr}
	}

	logger := observability.NewLogger(level, cfg.Log.JSON)

	telemetry, telemetryErr := observability.NewTelemetry()
	if telemetryErr != nil {
		return nil, fmt.Errorf("set up telemetry: %w", telemetryErr)
	}

	metrics, metricsErr := observability.NewPipelineMetrics(telemetry.Meter())
	if metricsErr != nil {
		return nil, fmt.Errorf("set up pipeline metrics: %w", metricsErr)
	}

	st, storeErr := store.Open(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns)
	if storeErr != nil {
		return nil, storeErr
	}

	migrateErr := st.Migrate(ctx)
	if migrateErr != nil {
		_ = st.Close()

		return nil, migrateErr
	}

	coast, coastErr := zones.NewCoastSource(cfg.Zones.CoastFile, cfg.Zones.WatchCoastline, logger)
	if coastErr != nil {
		_ = st.Close()

		return nil, configError{err: coastErr}
	}

	bus := events.NewBus()
	client := fetch.NewClient(cfg.Upstream.FetchTimeout, cfg.Upstream.RateLimitPerOrigin, metrics)

	a := &app{
		cfg:       cfg,
		logger:    logger,
		telemetry: telemetry,
		metrics:   metrics,
		bus:       bus,
		store:     st,
		client:    client,
		discovery: discovery.NewService(client, cfg.Upstream.DiscoveryBase, logger),
		ingest:    ingest.NewService(client, st, bus, metrics, logger),
		forecast:  forecast.NewService(client, st, bus, cfg.Upstream.ADeckBase, metrics, logger),
		coast:     coast,
		lifecycle: lifecycle.NewService(st, bus, dormantAfter(cfg), archiveAfter(cfg), logger),
	}
	a.builder = zones.NewBuilder(st, coast, bus, metrics, logger)

	return a, nil
}

func dormantAfter(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Lifecycle.DormantHours) * time.Hour
}

func archiveAfter(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Lifecycle.ArchiveHours) * time.Hour
}

// Close releases the app's long-lived resources.
func (a *app) Close() {
	if a.coast != nil {
		_ = a.coast.Close()
	}

	if a.store != nil {
		_ = a.store.Close()
	}
}
