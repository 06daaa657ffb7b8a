package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/imgbackfill/pkg/log"
	"github.com/cuemby/imgbackfill/pkg/moray"
	"github.com/cuemby/imgbackfill/pkg/source"
	"github.com/cuemby/imgbackfill/pkg/storage"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const defaultStorePath = "./recordstore.db"

func newRecordStoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recordstore",
		Short: "Run or seed a moray-compatible record store",
		Long: `A small record store that speaks the FindObjects protocol used by the
moray backend. It is meant for development and for migrating images
out of a local manifest directory through the moray code path.`,
	}
	cmd.PersistentFlags().String("db", defaultStorePath, "Path to the record store database")
	cmd.PersistentFlags().String("bucket", source.DefaultBucket, "Bucket holding image records")
	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(newRecordStoreServeCmd())
	cmd.AddCommand(newRecordStoreLoadCmd())
	return cmd
}

func newRecordStoreServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the record store over gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			initRecordStoreLogging(cmd)
			dbPath, _ := cmd.Flags().GetString("db")
			listen, _ := cmd.Flags().GetString("listen")

			store, err := storage.NewBoltStore(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := logBuckets(store); err != nil {
				return err
			}

			srv := moray.NewServer(store)
			errCh := make(chan error, 1)
			go func() {
				if err := srv.Start(listen); err != nil {
					errCh <- fmt.Errorf("record store server error: %v", err)
				}
			}()

			fmt.Fprintf(cmd.OutOrStdout(), "Record store is running on %s. Press Ctrl+C to stop.\n", listen)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			var runErr error
			select {
			case <-sigCh:
				fmt.Fprintln(cmd.OutOrStdout(), "\nShutting down...")
			case runErr = <-errCh:
			}

			srv.Stop()
			log.Info("record store stopped")
			return runErr
		},
	}
	cmd.Flags().String("listen", "127.0.0.1:2020", "Address to listen on")
	return cmd
}

func newRecordStoreLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load <uuid>.raw records from a local manifest directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			initRecordStoreLogging(cmd)
			dbPath, _ := cmd.Flags().GetString("db")
			bucket, _ := cmd.Flags().GetString("bucket")
			dir, _ := cmd.Flags().GetString("dir")

			store, err := storage.NewBoltStore(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := loadRecords(cmd.Context(), store, bucket, source.NewLocalSource(dir))
			if err != nil {
				return err
			}
			total, err := store.CountObjects(bucket)
			if err != nil && !errors.Is(err, storage.ErrBucketNotFound) {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Loaded %d records into %s (%d total)\n", n, bucket, total)
			return nil
		},
	}
	cmd.Flags().String("dir", source.DefaultLocalDir, "Local manifest directory to read")
	return cmd
}

// loadRecords copies every record from src into bucket, keyed by uuid.
func loadRecords(ctx context.Context, store *storage.BoltStore, bucket string, src *source.LocalSource) (int, error) {
	records, err := src.Enumerate(ctx)
	if err != nil {
		return 0, err
	}

	for _, rec := range records {
		id := rec.UUID()
		if err := uuid.Validate(id); err != nil {
			return 0, fmt.Errorf("record %q: invalid uuid: %w", id, err)
		}
		if err := store.PutObject(bucket, id, rec); err != nil {
			return 0, fmt.Errorf("failed to store %s: %w", id, err)
		}
		logger := log.WithImageUUID(id)
		logger.Debug().Msg("loaded record")
	}
	return len(records), nil
}

// logBuckets logs every bucket in store with its object count.
func logBuckets(store *storage.BoltStore) error {
	names, err := store.Buckets()
	if err != nil {
		return err
	}
	for _, name := range names {
		n, err := store.CountObjects(name)
		if err != nil {
			return err
		}
		log.Logger.Info().Str("bucket", name).Int("objects", n).Msg("serving bucket")
	}
	return nil
}

func initRecordStoreLogging(cmd *cobra.Command) {
	level, _ := cmd.Flags().GetString("log-level")
	log.Init(log.Config{Level: log.Level(level), Output: cmd.ErrOrStderr()})
}
