package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormtrack/stormtrack/internal/events"
	"github.com/stormtrack/stormtrack/internal/fetch"
	"github.com/stormtrack/stormtrack/internal/scheduler"
)

func testConfig() scheduler.Config {
	return scheduler.Config{
		Workers:       2,
		SoftDeadline:  50 * time.Millisecond,
		HardDeadline:  500 * time.Millisecond,
		ShutdownGrace: 100 * time.Millisecond,
	}
}

func startScheduler(t *testing.T, cfg scheduler.Config, bus *events.Bus) *scheduler.Scheduler {
	t.Helper()

	sched := scheduler.New(cfg, bus, nil, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})

	go func() {
		sched.Run(ctx)
		close(done)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	return sched
}

func TestSubmitRunsJob(t *testing.T) {
	t.Parallel()

	sched := startScheduler(t, testConfig(), events.NewBus())

	var runs atomic.Int32

	ok := sched.Submit(scheduler.NewJob("once", scheduler.QueueDefault, func(context.Context) error {
		runs.Add(1)

		return nil
	}))
	require.True(t, ok)

	assert.Eventually(t, func() bool { return runs.Load() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestSubmitDropsWhileSameJobRuns(t *testing.T) {
	t.Parallel()

	sched := startScheduler(t, testConfig(), events.NewBus())

	started := make(chan struct{})
	release := make(chan struct{})

	blocking := scheduler.NewJob("blocking", scheduler.QueueIngest, func(context.Context) error {
		close(started)
		<-release

		return nil
	})

	require.True(t, sched.Submit(blocking))
	<-started

	// The same job name cannot be queued while the first run is in flight.
	assert.False(t, sched.Submit(blocking))

	close(release)

	// After the run finishes the name frees up again.
	assert.Eventually(t, func() bool {
		return sched.Submit(scheduler.NewJob("blocking", scheduler.QueueIngest,
			func(context.Context) error { return nil }))
	}, time.Second, 10*time.Millisecond)
}

func TestSubmitSharedKeyBlocksOverlappingJobs(t *testing.T) {
	t.Parallel()

	sched := startScheduler(t, testConfig(), events.NewBus())

	started := make(chan struct{})
	release := make(chan struct{})

	chain := scheduler.NewKeyedJob("chain/28W", scheduler.QueueIngest, "storm/28W",
		func(context.Context) error {
			close(started)
			<-release

			return nil
		})

	require.True(t, sched.Submit(chain))
	<-started

	// A differently named job holding the same storm key must not start
	// while the chain is in flight.
	var zonesRuns atomic.Int32

	zonesJob := scheduler.NewKeyedJob("zones/28W", scheduler.QueueZones, "storm/28W",
		func(context.Context) error {
			zonesRuns.Add(1)

			return nil
		})
	assert.False(t, sched.Submit(zonesJob))

	// A different storm's key is unaffected.
	assert.True(t, sched.Submit(scheduler.NewKeyedJob("zones/09L", scheduler.QueueZones,
		"storm/09L", func(context.Context) error { return nil })))

	close(release)

	assert.Eventually(t, func() bool { return sched.Submit(zonesJob) },
		time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return zonesRuns.Load() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestRetryOnTransientFailure(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.SoftDeadline = 5 * time.Second
	cfg.HardDeadline = 10 * time.Second

	sched := startScheduler(t, cfg, events.NewBus())

	var attempts atomic.Int32

	sched.Submit(scheduler.NewJob("flaky", scheduler.QueueForecast, func(context.Context) error {
		if attempts.Add(1) == 1 {
			return errors.New("transient")
		}

		return nil
	}))

	assert.Eventually(t, func() bool { return attempts.Load() == 2 },
		5*time.Second, 25*time.Millisecond)
}

func TestPermanentFailureIsNotRetried(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.SoftDeadline = 5 * time.Second
	cfg.HardDeadline = 10 * time.Second

	sched := startScheduler(t, cfg, events.NewBus())

	var attempts atomic.Int32

	done := make(chan struct{})

	sched.Submit(scheduler.NewJob("doomed", scheduler.QueueIngest, func(context.Context) error {
		attempts.Add(1)
		close(done)

		return scheduler.Permanent(errors.New("malformed upstream file"))
	}))

	<-done

	// Give the retry loop room to misbehave before checking.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestNonRetryableFetchFailureIsNotRetried(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.SoftDeadline = 5 * time.Second
	cfg.HardDeadline = 10 * time.Second

	sched := startScheduler(t, cfg, events.NewBus())

	var attempts atomic.Int32

	done := make(chan struct{})

	sched.Submit(scheduler.NewJob("forbidden", scheduler.QueueIngest, func(context.Context) error {
		attempts.Add(1)
		close(done)

		return fmt.Errorf("fetch history: %w",
			&fetch.Error{Kind: fetch.OutcomePermanent, Err: errors.New("upstream returned 403")})
	}))

	<-done

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestSoftDeadlinePublishesOverrun(t *testing.T) {
	t.Parallel()

	bus := events.NewBus()

	ch, cancel := bus.Subscribe(events.KindTaskOverrun)
	defer cancel()

	sched := startScheduler(t, testConfig(), bus)

	sched.Submit(scheduler.NewJob("slow", scheduler.QueueZones, func(ctx context.Context) error {
		select {
		case <-time.After(150 * time.Millisecond):
		case <-ctx.Done():
		}

		return nil
	}))

	select {
	case evt := <-ch:
		assert.Equal(t, "slow", evt.Detail["job"])
		assert.NotEmpty(t, evt.Detail["run_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("no overrun event")
	}
}

func TestHardDeadlineCancelsJob(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.HardDeadline = 100 * time.Millisecond

	sched := startScheduler(t, cfg, events.NewBus())

	var sawCancel atomic.Bool

	sched.Submit(scheduler.NewJob("runaway", scheduler.QueueDefault, func(ctx context.Context) error {
		<-ctx.Done()
		sawCancel.Store(true)

		return ctx.Err()
	}))

	assert.Eventually(t, func() bool { return sawCancel.Load() },
		2*time.Second, 10*time.Millisecond)
}

func TestPeriodicJobFires(t *testing.T) {
	t.Parallel()

	bus := events.NewBus()
	sched := scheduler.New(testConfig(), bus, nil, slog.New(slog.DiscardHandler))

	var runs atomic.Int32

	sched.Every(30*time.Millisecond, scheduler.NewJob("tick", scheduler.QueueDefault,
		func(context.Context) error {
			runs.Add(1)

			return nil
		}))

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})

	go func() {
		sched.Run(ctx)
		close(done)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	assert.Eventually(t, func() bool { return runs.Load() >= 2 },
		2*time.Second, 10*time.Millisecond)
}
