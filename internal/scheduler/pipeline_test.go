package scheduler_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormtrack/stormtrack/internal/discovery"
	"github.com/stormtrack/stormtrack/internal/events"
	"github.com/stormtrack/stormtrack/internal/forecast"
	"github.com/stormtrack/stormtrack/internal/ingest"
	"github.com/stormtrack/stormtrack/internal/lifecycle"
	"github.com/stormtrack/stormtrack/internal/model"
	"github.com/stormtrack/stormtrack/internal/scheduler"
	"github.com/stormtrack/stormtrack/internal/zones"
)

type fakeServices struct {
	mu sync.Mutex

	discovered []discovery.Discovered
	changed    bool

	// When set, IngestStorm signals ingestStarted and then blocks on
	// ingestGate, holding its chain mid-flight.
	ingestStarted chan struct{}
	ingestGate    chan struct{}

	ingested   []string
	forecasted []string
	zoned      []string
	sweeps     int

	storms map[string]model.Storm
}

func newFakeServices() *fakeServices {
	return &fakeServices{storms: map[string]model.Storm{}}
}

func (f *fakeServices) Discover(context.Context) ([]discovery.Discovered, bool, error) {
	return f.discovered, f.changed, nil
}

func (f *fakeServices) IngestStorm(_ context.Context, storm model.Storm) (ingest.Result, error) {
	if f.ingestStarted != nil {
		close(f.ingestStarted)
		<-f.ingestGate
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.ingested = append(f.ingested, storm.Code)

	return ingest.Result{NewAdvisories: 1}, nil
}

func (f *fakeServices) Rebuild(_ context.Context, storm model.Storm) (forecast.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.forecasted = append(f.forecasted, storm.Code)

	return forecast.Result{Points: 5}, nil
}

func (f *fakeServices) Generate(_ context.Context, storm model.Storm) (zones.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.zoned = append(f.zoned, storm.Code)

	return zones.Result{Warnings: 1}, nil
}

func (f *fakeServices) Sweep(context.Context) (lifecycle.SweepResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sweeps++

	return lifecycle.SweepResult{}, nil
}

func (f *fakeServices) UpsertStorm(_ context.Context, storm model.Storm) (model.Storm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if storm.Status == "" {
		storm.Status = model.StatusActive
	}

	storm.ID = int64(len(f.storms) + 1)
	f.storms[storm.Code] = storm

	return storm, nil
}

func (f *fakeServices) ListStormsByStatus(_ context.Context, statuses ...model.Status) ([]model.Storm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []model.Storm

	for _, storm := range f.storms {
		for _, status := range statuses {
			if storm.Status == status {
				out = append(out, storm)
			}
		}
	}

	return out, nil
}

func (f *fakeServices) chainCalls() (ingested, forecasted, zoned []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string{}, f.ingested...),
		append([]string{}, f.forecasted...),
		append([]string{}, f.zoned...)
}

func newPipeline(t *testing.T, fakes *fakeServices) (*scheduler.Pipeline, *scheduler.Scheduler) {
	t.Helper()

	sched := startScheduler(t, testConfig(), events.NewBus())

	pipeline := scheduler.NewPipeline(sched, fakes, fakes, fakes, fakes, fakes,
		fakes, slog.New(slog.DiscardHandler))

	return pipeline, sched
}

func TestRunChainOrdersStages(t *testing.T) {
	t.Parallel()

	fakes := newFakeServices()
	pipeline, _ := newPipeline(t, fakes)

	storm := model.Storm{ID: 1, Code: "28W", Basin: model.BasinWestPacific}

	require.NoError(t, pipeline.RunChain(context.Background(), storm))

	ingested, forecasted, zoned := fakes.chainCalls()
	assert.Equal(t, []string{"28W"}, ingested)
	assert.Equal(t, []string{"28W"}, forecasted)
	assert.Equal(t, []string{"28W"}, zoned)
}

func TestRunDiscoveryUpsertsAndChains(t *testing.T) {
	t.Parallel()

	fakes := newFakeServices()
	fakes.changed = true
	fakes.discovered = []discovery.Discovered{
		{Code: "28W", Basin: model.BasinWestPacific, HistoryURL: "http://example.test/28W-list.txt"},
		{Code: "09L", Basin: model.BasinAtlantic, HistoryURL: "http://example.test/09L-list.txt"},
	}

	pipeline, _ := newPipeline(t, fakes)

	require.NoError(t, pipeline.RunDiscovery(context.Background()))

	assert.Len(t, fakes.storms, 2)

	// The chain jobs run asynchronously on the worker pool.
	assert.Eventually(t, func() bool {
		ingested, forecasted, zoned := fakes.chainCalls()

		return len(ingested) == 2 && len(forecasted) == 2 && len(zoned) == 2
	}, 2*time.Second, 20*time.Millisecond)
}

func TestZonesRefreshWaitsForStormChain(t *testing.T) {
	t.Parallel()

	fakes := newFakeServices()
	fakes.changed = true
	fakes.discovered = []discovery.Discovered{
		{Code: "28W", Basin: model.BasinWestPacific, HistoryURL: "http://example.test/28W-list.txt"},
	}
	fakes.ingestStarted = make(chan struct{})
	fakes.ingestGate = make(chan struct{})

	cfg := testConfig()
	cfg.SoftDeadline = 5 * time.Second
	cfg.HardDeadline = 10 * time.Second

	sched := startScheduler(t, cfg, events.NewBus())
	pipeline := scheduler.NewPipeline(sched, fakes, fakes, fakes, fakes, fakes,
		fakes, slog.New(slog.DiscardHandler))

	ctx := context.Background()

	require.NoError(t, pipeline.RunDiscovery(ctx))
	<-fakes.ingestStarted

	// The chain for 28W is held mid-ingest, ahead of its forecast stage; a
	// zones refresh must not regenerate that storm's zones in the meantime.
	require.NoError(t, pipeline.RunZonesRefresh(ctx))

	assert.Never(t, func() bool {
		_, _, zoned := fakes.chainCalls()

		return len(zoned) > 0
	}, 300*time.Millisecond, 20*time.Millisecond)

	close(fakes.ingestGate)

	// The chain finishes and runs its own zone stage exactly once; the
	// refused refresh tick was dropped, not queued.
	assert.Eventually(t, func() bool {
		_, _, zoned := fakes.chainCalls()

		return len(zoned) == 1
	}, 2*time.Second, 20*time.Millisecond)

	time.Sleep(100 * time.Millisecond)

	_, _, zoned := fakes.chainCalls()
	assert.Equal(t, []string{"28W"}, zoned)
}

func TestRunDiscoveryUnchangedIndexIsANoOp(t *testing.T) {
	t.Parallel()

	fakes := newFakeServices()
	fakes.changed = false
	fakes.discovered = nil

	pipeline, _ := newPipeline(t, fakes)

	require.NoError(t, pipeline.RunDiscovery(context.Background()))

	assert.Empty(t, fakes.storms)
}

func TestRunSweepDelegates(t *testing.T) {
	t.Parallel()

	fakes := newFakeServices()
	pipeline, _ := newPipeline(t, fakes)

	require.NoError(t, pipeline.RunSweep(context.Background()))

	assert.Equal(t, 1, fakes.sweeps)
}
