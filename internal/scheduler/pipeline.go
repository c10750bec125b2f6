package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stormtrack/stormtrack/internal/discovery"
	"github.com/stormtrack/stormtrack/internal/forecast"
	"github.com/stormtrack/stormtrack/internal/ingest"
	"github.com/stormtrack/stormtrack/internal/lifecycle"
	"github.com/stormtrack/stormtrack/internal/model"
	"github.com/stormtrack/stormtrack/internal/store"
	"github.com/stormtrack/stormtrack/internal/zones"
)

// Pipeline cadences.
const (
	discoverPeriod = 10 * time.Minute
	ingestPeriod   = 15 * time.Minute
	zonesPeriod    = 30 * time.Minute
	sweepPeriod    = time.Hour
	healthPeriod   = 5 * time.Minute
)

// Discoverer finds active storms on the upstream index.
type Discoverer interface {
	Discover(ctx context.Context) ([]discovery.Discovered, bool, error)
}

// Ingester pulls one storm's history and radii files.
type Ingester interface {
	IngestStorm(ctx context.Context, storm model.Storm) (ingest.Result, error)
}

// Forecaster rebuilds one storm's ensemble-mean forecast.
type Forecaster interface {
	Rebuild(ctx context.Context, storm model.Storm) (forecast.Result, error)
}

// ZoneBuilder regenerates one storm's alert zones.
type ZoneBuilder interface {
	Generate(ctx context.Context, storm model.Storm) (zones.Result, error)
}

// Sweeper applies the time-based lifecycle transitions.
type Sweeper interface {
	Sweep(ctx context.Context) (lifecycle.SweepResult, error)
}

// StormStore is the persistence surface the pipeline needs.
type StormStore interface {
	UpsertStorm(ctx context.Context, storm model.Storm) (model.Storm, error)
	ListStormsByStatus(ctx context.Context, statuses ...model.Status) ([]model.Storm, error)
}

// Pipeline wires the domain services onto the scheduler: discovery feeds the
// storm set, each active storm runs ingest→forecast→zones as one chained job,
// and the lifecycle sweep runs on its own cadence.
type Pipeline struct {
	sched      *Scheduler
	discoverer Discoverer
	ingester   Ingester
	forecaster Forecaster
	builder    ZoneBuilder
	sweeper    Sweeper
	storms     StormStore
	logger     *slog.Logger
}

// NewPipeline builds the pipeline around an existing scheduler.
func NewPipeline(sched *Scheduler, discoverer Discoverer, ingester Ingester,
	forecaster Forecaster, builder ZoneBuilder, sweeper Sweeper,
	storms StormStore, logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		sched:      sched,
		discoverer: discoverer,
		ingester:   ingester,
		forecaster: forecaster,
		builder:    builder,
		sweeper:    sweeper,
		storms:     storms,
		logger:     logger,
	}
}

// Register installs the periodic jobs.
func (p *Pipeline) Register() {
	p.sched.Every(discoverPeriod, NewJob("discover", QueueDefault, p.RunDiscovery))
	p.sched.Every(ingestPeriod, NewJob("ingest-all", QueueIngest, p.runIngestAll))
	p.sched.Every(zonesPeriod, NewJob("zones-refresh", QueueZones, p.RunZonesRefresh))
	p.sched.Every(sweepPeriod, NewJob("lifecycle-sweep", QueueAlerts, p.RunSweep))
	p.sched.Every(healthPeriod, NewJob("health-report", QueueDefault, p.runHealthReport))
}

// RunDiscovery refreshes the storm set from the upstream index and kicks the
// per-storm chain for anything newly seen.
func (p *Pipeline) RunDiscovery(ctx context.Context) error {
	discovered, changed, discoverErr := p.discoverer.Discover(ctx)
	if discoverErr != nil {
		return fmt.Errorf("discover storms: %w", discoverErr)
	}

	if !changed {
		return nil
	}

	for _, d := range discovered {
		storm, upsertErr := p.storms.UpsertStorm(ctx, model.Storm{
			Code:              d.Code,
			Basin:             d.Basin,
			Name:              d.Name,
			HistoryFileURL:    d.HistoryURL,
			SatelliteImageURL: d.SatelliteImageURL,
		})
		if upsertErr != nil {
			p.logger.Warn("storm upsert failed", "storm", d.Code, "error", upsertErr)

			continue
		}

		if storm.Status == model.StatusActive {
			p.submitChain(storm)
		}
	}

	return nil
}

// runIngestAll kicks the per-storm chain for every active storm.
func (p *Pipeline) runIngestAll(ctx context.Context) error {
	storms, listErr := p.storms.ListStormsByStatus(ctx, model.StatusActive)
	if listErr != nil {
		return fmt.Errorf("list active storms: %w", listErr)
	}

	for _, storm := range storms {
		p.submitChain(storm)
	}

	return nil
}

// RunZonesRefresh rebuilds zones for active storms between chain runs: the
// classification windows are anchored to the wall clock, so zones drift stale
// even without new upstream data.
func (p *Pipeline) RunZonesRefresh(ctx context.Context) error {
	storms, listErr := p.storms.ListStormsByStatus(ctx, model.StatusActive)
	if listErr != nil {
		return fmt.Errorf("list active storms: %w", listErr)
	}

	for _, storm := range storms {
		p.submitZones(storm)
	}

	return nil
}

// RunSweep applies the lifecycle transitions once.
func (p *Pipeline) RunSweep(ctx context.Context) error {
	result, sweepErr := p.sweeper.Sweep(ctx)
	if sweepErr != nil {
		return sweepErr
	}

	if result.Dormanted > 0 || result.Archived > 0 || result.Deferred > 0 {
		p.logger.Info("lifecycle sweep",
			"dormanted", result.Dormanted,
			"archived", result.Archived,
			"deferred", result.Deferred)
	}

	return nil
}

// runHealthReport logs the tracked storm counts as a liveness trace.
func (p *Pipeline) runHealthReport(ctx context.Context) error {
	active, activeErr := p.storms.ListStormsByStatus(ctx, model.StatusActive)
	if activeErr != nil {
		return fmt.Errorf("list active storms: %w", activeErr)
	}

	dormant, dormantErr := p.storms.ListStormsByStatus(ctx, model.StatusDormant)
	if dormantErr != nil {
		return fmt.Errorf("list dormant storms: %w", dormantErr)
	}

	p.logger.Info("pipeline health", "active", len(active), "dormant", len(dormant))

	return nil
}

// stormKey is the exclusivity key shared by every job touching one storm.
// The chain holds it through its forecast stage, so a zones-only run can
// never start while that storm's forecast update is in flight.
func stormKey(code string) string {
	return "storm/" + code
}

// submitChain enqueues the full ingest→forecast→zones chain for one storm.
// Overlapping ticks for the same storm collapse.
func (p *Pipeline) submitChain(storm model.Storm) {
	name := "storm-chain/" + storm.Code

	p.sched.Submit(NewKeyedJob(name, QueueIngest, stormKey(storm.Code),
		func(ctx context.Context) error {
			return classify(p.RunChain(ctx, storm))
		}))
}

// submitZones enqueues only the zone stage for one storm.
func (p *Pipeline) submitZones(storm model.Storm) {
	name := "storm-zones/" + storm.Code

	p.sched.Submit(NewKeyedJob(name, QueueZones, stormKey(storm.Code),
		func(ctx context.Context) error {
			_, genErr := p.builder.Generate(ctx, storm)

			return classify(genErr)
		}))
}

// classify marks failures a retry cannot fix. Malformed upstream content and
// persistence conflicts stay wrong on the second attempt; fetch failures
// carry their own classification through the error chain.
func classify(err error) error {
	if errors.Is(err, ingest.ErrTooManyBadLines) || errors.Is(err, store.ErrConflict) {
		return Permanent(err)
	}

	return err
}

// RunChain runs ingest, forecast, and zones for one storm in order. Later
// stages still run when an earlier stage saw no change; their own
// conditional-fetch short circuits keep that cheap.
func (p *Pipeline) RunChain(ctx context.Context, storm model.Storm) error {
	ingestResult, ingestErr := p.ingester.IngestStorm(ctx, storm)
	if ingestErr != nil {
		return fmt.Errorf("chain ingest: %w", ingestErr)
	}

	forecastResult, forecastErr := p.forecaster.Rebuild(ctx, storm)
	if forecastErr != nil {
		return fmt.Errorf("chain forecast: %w", forecastErr)
	}

	zonesResult, zonesErr := p.builder.Generate(ctx, storm)
	if zonesErr != nil {
		return fmt.Errorf("chain zones: %w", zonesErr)
	}

	p.logger.Debug("storm chain finished",
		"storm", storm.Code,
		"new_advisories", ingestResult.NewAdvisories,
		"forecast_points", forecastResult.Points,
		"warnings", zonesResult.Warnings,
		"watches", zonesResult.Watches)

	return nil
}
