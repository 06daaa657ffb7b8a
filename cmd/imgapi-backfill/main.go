package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	migrate := newMigrateCmd()

	rootCmd := &cobra.Command{
		Use:   "imgapi-backfill",
		Short: "Backfill the IMGAPI local manifest archive",
		Long: `imgapi-backfill reads every image record from the configured IMGAPI
database (moray or a local manifest directory), normalizes it into a
canonical manifest and writes it to the local archive at
<archiveDir>/<uuid[0:3]>/<uuid>.json.

Running it again overwrites existing archive entries.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		// Bare invocation runs the migration, like the old migration script.
		RunE: migrate.RunE,
	}
	rootCmd.Flags().AddFlagSet(migrate.Flags())

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"imgapi-backfill version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(migrate)
	rootCmd.AddCommand(newRecordStoreCmd())
	return rootCmd
}
