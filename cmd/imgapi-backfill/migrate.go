package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cuemby/imgbackfill/pkg/config"
	"github.com/cuemby/imgbackfill/pkg/log"
	"github.com/cuemby/imgbackfill/pkg/metrics"
	"github.com/cuemby/imgbackfill/pkg/migrate"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Write every image record to the local archive",
		Long: `Write every image record to the local archive.

Records are processed one at a time; the first error stops the run and
the command exits non-zero. Archive entries written before the failure
are kept and are overwritten by the next run.`,
		Args: cobra.NoArgs,
		RunE: runMigrate,
	}

	cmd.Flags().String("config", "", "Path to the IMGAPI config file (default: "+config.DefaultConfigPath+" or ./etc/imgapi.config.json)")
	cmd.Flags().String("database-type", "", "Record backend: moray or local (overrides config)")
	cmd.Flags().String("moray-host", "", "Moray host (overrides config)")
	cmd.Flags().Int("moray-port", 0, "Moray port (overrides config)")
	cmd.Flags().String("local-dir", "", "Local manifest directory (overrides config)")
	cmd.Flags().String("archive-dir", "", "Archive root directory (overrides config)")
	cmd.Flags().String("mode", "", "Deployment mode; \"dc\" restricts archive ownership (overrides config)")
	cmd.Flags().Bool("restrict-ownership", false, "Force ownership restriction on or off regardless of mode")
	cmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().Bool("log-json", false, "Log as JSON lines")
	cmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this textfile when done")
	return cmd
}

func runMigrate(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	logLevel, _ := flags.GetString("log-level")
	logJSON, _ := flags.GetBool("log-json")
	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
		Output:     cmd.OutOrStdout(),
	})

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	m, err := migrate.NewFromConfig(cfg, migrate.Options{})
	if err != nil {
		return err
	}
	defer m.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, runErr := m.Run(ctx)

	if path, _ := flags.GetString("metrics-file"); path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			log.Errorf("failed to write metrics", err)
		}
	}

	if runErr != nil {
		return fmt.Errorf("migration failed after %d of %d images: %w", res.Processed, res.Total, runErr)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Migrated %d images\n", res.Processed)
	return nil
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	explicit, _ := flags.GetString("config")

	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	path := config.ResolvePath(explicit, wd)

	cfg, err := config.Load(path)
	if err != nil {
		if explicit != "" || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		log.Warn("no config file at " + path + ", using defaults")
		cfg = config.Default()
	} else {
		log.Logger.Debug().Str("path", path).Msg("loaded config")
	}

	if v, _ := flags.GetString("database-type"); v != "" {
		cfg.DatabaseType = v
	}
	if v, _ := flags.GetString("moray-host"); v != "" {
		cfg.Moray.Host = v
	}
	if v, _ := flags.GetInt("moray-port"); v != 0 {
		cfg.Moray.Port = v
	}
	if v, _ := flags.GetString("local-dir"); v != "" {
		cfg.Database.Dir = filepath.Clean(v)
	}
	if v, _ := flags.GetString("archive-dir"); v != "" {
		cfg.Storage.Local.ArchiveDir = filepath.Clean(v)
	}
	if v, _ := flags.GetString("mode"); v != "" {
		cfg.Mode = v
	}
	if flags.Changed("restrict-ownership") {
		v, _ := flags.GetBool("restrict-ownership")
		cfg.RestrictOwnership = &v
	}
	return cfg, nil
}
