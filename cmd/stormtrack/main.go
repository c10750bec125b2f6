// Package main provides the entry point for the stormtrack service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stormtrack/stormtrack/cmd/stormtrack/commands"
	"github.com/stormtrack/stormtrack/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stormtrack",
		Short: "Stormtrack - tropical cyclone tracking and alerting pipeline",
		Long: `Stormtrack discovers active tropical cyclones on the upstream
observation site, ingests their history and wind-radii files, reduces the
public A-Deck ensemble to a mean forecast, and generates coastal watch and
warning zones.

Commands:
  serve             Run the full pipeline with the periodic scheduler
  discover-now      Refresh the storm set from the upstream index once
  ingest-now        Ingest one storm's history and radii files
  rebuild-forecast  Rebuild one storm's ensemble-mean forecast
  regenerate-zones  Regenerate one storm's watch and warning zones
  archive           Archive a dormant storm`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "path of the configuration file")

	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewDiscoverNowCommand())
	rootCmd.AddCommand(commands.NewIngestNowCommand())
	rootCmd.AddCommand(commands.NewRebuildForecastCommand())
	rootCmd.AddCommand(commands.NewRegenerateZonesCommand())
	rootCmd.AddCommand(commands.NewArchiveCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(commands.ExitCode(err))
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "stormtrack %s (commit: %s, built: %s)\n",
				version.Version, version.Commit, version.Date)
		},
	}
}
