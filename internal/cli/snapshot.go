package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shopqa/shopqa/internal/config"
	"github.com/shopqa/shopqa/internal/datastore"
	"github.com/shopqa/shopqa/internal/snapshot"
	s3store "github.com/shopqa/shopqa/internal/storage/s3"
)

func newSnapshotCommand(opts *Options, flags *rootFlags) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Copy the commerce tables to or from Parquet in object storage",
	}
	cmd.PersistentFlags().StringVar(&prefix, "prefix", "", "object key prefix; overrides SHOPQA_SNAPSHOT_PREFIX")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "export",
			Short: "Write every table as <prefix>/<table>.parquet",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withSnapshotDeps(cmd.Context(), opts, flags, prefix, func(deps snapshotDeps) error {
					tables, err := (&snapshot.Exporter{DB: deps.db, Store: deps.store, Prefix: deps.prefix, Logger: deps.logger}).Export(cmd.Context())
					if err != nil {
						return err
					}
					printSnapshot(opts.Stdout, "exported", tables)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "restore",
			Short: "Replace the table contents with a snapshot (DuckDB only)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withSnapshotDeps(cmd.Context(), opts, flags, prefix, func(deps snapshotDeps) error {
					if deps.driver != config.DriverDuckDB {
						return fmt.Errorf("snapshot restore requires the %s driver, got %s", config.DriverDuckDB, deps.driver)
					}
					tables, err := (&snapshot.Restorer{DB: deps.db, Store: deps.store, Prefix: deps.prefix, Logger: deps.logger}).Restore(cmd.Context())
					if err != nil {
						return err
					}
					printSnapshot(opts.Stdout, "restored", tables)
					return nil
				})
			},
		},
	)
	return cmd
}

type snapshotDeps struct {
	db     *sql.DB
	store  *s3store.Store
	prefix string
	driver string
	logger *slog.Logger
}

func withSnapshotDeps(ctx context.Context, opts *Options, flags *rootFlags, prefix string, run func(snapshotDeps) error) error {
	cfg, logger, err := loadConfig(opts, flags.configPath)
	if err != nil {
		return err
	}
	if prefix == "" {
		prefix = cfg.Snapshot.Prefix
	}
	db, err := datastore.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	store, err := s3store.Open(ctx, cfg.ObjectStore)
	if err != nil {
		return fmt.Errorf("open object store: %w", err)
	}
	return run(snapshotDeps{db: db, store: store, prefix: prefix, driver: cfg.Database.Driver, logger: logger})
}

func printSnapshot(out io.Writer, verb string, tables []snapshot.TableSnapshot) {
	for _, table := range tables {
		_, _ = fmt.Fprintf(out, "%s %-12s %6d rows  %s\n", verb, table.Table, table.Rows, table.Key)
	}
}
