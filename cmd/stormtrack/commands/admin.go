package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/stormtrack/stormtrack/internal/model"
)

// NewDiscoverNowCommand refreshes the storm set from the upstream index once.
func NewDiscoverNowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "discover-now",
		Short: "Refresh the storm set from the upstream index once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				discovered, changed, discoverErr := a.discovery.Discover(ctx)
				if discoverErr != nil {
					return discoverErr
				}

				if !changed {
					cmd.Println("index unchanged")

					return nil
				}

				for _, d := range discovered {
					storm, upsertErr := a.store.UpsertStorm(ctx, model.Storm{
						Code:              d.Code,
						Basin:             d.Basin,
						Name:              d.Name,
						HistoryFileURL:    d.HistoryURL,
						SatelliteImageURL: d.SatelliteImageURL,
					})
					if upsertErr != nil {
						return upsertErr
					}

					cmd.Printf("%s (%s) status=%s\n", storm.Code, storm.Basin, storm.Status)
				}

				return nil
			})
		},
	}
}

// NewIngestNowCommand ingests one storm's history and radii files.
func NewIngestNowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest-now <storm-code>",
		Short: "Ingest one storm's history and radii files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStorm(cmd, args[0], func(ctx context.Context, a *app, storm model.Storm) error {
				result, ingestErr := a.ingest.IngestStorm(ctx, storm)
				if ingestErr != nil {
					return ingestErr
				}

				if result.Unchanged {
					cmd.Println("history unchanged")

					return nil
				}

				cmd.Printf("new advisories: %d, skipped lines: %d, radii matched: %d\n",
					result.NewAdvisories, result.SkippedLines, result.RadiiMatched)

				return nil
			})
		},
	}
}

// NewRebuildForecastCommand rebuilds one storm's ensemble-mean forecast.
func NewRebuildForecastCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild-forecast <storm-code>",
		Short: "Rebuild one storm's ensemble-mean forecast",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStorm(cmd, args[0], func(ctx context.Context, a *app, storm model.Storm) error {
				result, rebuildErr := a.forecast.Rebuild(ctx, storm)
				if rebuildErr != nil {
					return rebuildErr
				}

				if result.Unchanged {
					cmd.Println("a-deck unchanged")

					return nil
				}

				cmd.Printf("forecast points: %d from %d ensemble members\n",
					result.Points, result.Members)

				return nil
			})
		},
	}
}

// NewRegenerateZonesCommand regenerates one storm's watch and warning zones.
func NewRegenerateZonesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate-zones <storm-code>",
		Short: "Regenerate one storm's watch and warning zones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStorm(cmd, args[0], func(ctx context.Context, a *app, storm model.Storm) error {
				result, genErr := a.builder.Generate(ctx, storm)
				if genErr != nil {
					return genErr
				}

				cmd.Printf("warnings: %d, watches: %d (from %d coast segments)\n",
					result.Warnings, result.Watches, result.Segments)

				return nil
			})
		},
	}
}

// NewArchiveCommand archives a dormant storm.
func NewArchiveCommand() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "archive <storm-code>",
		Short: "Archive a dormant storm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				archiveErr := a.lifecycle.ArchiveNow(ctx, args[0], reason)
				if archiveErr != nil {
					return archiveErr
				}

				cmd.Printf("archived %s\n", args[0])

				return nil
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "why the storm is being archived (optional)")

	return cmd
}

// withApp wires the app for a one-shot command and tears it down afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()

	a, appErr := newApp(ctx, cmd)
	if appErr != nil {
		return appErr
	}
	defer a.Close()

	return fn(ctx, a)
}

// withStorm resolves the storm code before running the command body.
func withStorm(cmd *cobra.Command, code string,
	fn func(ctx context.Context, a *app, storm model.Storm) error,
) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		storm, getErr := a.store.GetStormByCode(ctx, code)
		if getErr != nil {
			return getErr
		}

		return fn(ctx, a, storm)
	})
}
