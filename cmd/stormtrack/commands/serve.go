package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stormtrack/stormtrack/internal/observability"
	"github.com/stormtrack/stormtrack/internal/scheduler"
)

// NewServeCommand returns the long-running pipeline command.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the full pipeline with the periodic scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cmd)
		},
	}
}

func runServe(ctx context.Context, cmd *cobra.Command) error {
	a, appErr := newApp(ctx, cmd)
	if appErr != nil {
		return appErr
	}
	defer a.Close()

	if a.cfg.Metrics.Addr != "" {
		diagnostics, diagErr := observability.NewDiagnosticsServer(
			a.cfg.Metrics.Addr, a.telemetry, a.store.Ping)
		if diagErr != nil {
			return diagErr
		}
		defer func() { _ = diagnostics.Close() }()

		a.logger.Info("diagnostics listening", "addr", diagnostics.Addr())
	}

	sched := scheduler.New(scheduler.Config{
		Workers:       a.cfg.WorkerCount(),
		SoftDeadline:  a.cfg.Scheduler.SoftDeadline,
		HardDeadline:  a.cfg.Scheduler.HardDeadline,
		ShutdownGrace: a.cfg.Scheduler.ShutdownGrace,
	}, a.bus, a.metrics, a.logger)

	pipeline := scheduler.NewPipeline(sched,
		a.discovery, a.ingest, a.forecast, a.builder, a.lifecycle,
		a.store, a.logger)
	pipeline.Register()

	go a.lifecycle.WatchReactivations(ctx)

	// Prime the storm set before the first discovery tick.
	primeErr := pipeline.RunDiscovery(ctx)
	if primeErr != nil {
		a.logger.Warn("initial discovery failed", "error", primeErr)
	}

	a.logger.Info("stormtrack serving",
		"workers", a.cfg.WorkerCount(),
		"discovery_base", a.cfg.Upstream.DiscoveryBase)

	sched.Run(ctx)

	a.logger.Info("stormtrack stopped")

	return nil
}
