package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/pterm/pterm"

	"github.com/shopqa/shopqa/internal/config"
	"github.com/shopqa/shopqa/internal/migrations"
	"github.com/shopqa/shopqa/internal/seed"
)

// runSetup applies pending migrations and replaces the table contents with a
// freshly generated dataset.
func runSetup(ctx context.Context, opts *Options, cfg config.Config, db *sql.DB, logger *slog.Logger) error {
	out := opts.Stdout
	_, _ = fmt.Fprintln(out, "Initializing database and creating sample data...")

	applied, err := migrations.NewRunner().Up(ctx, db, 0)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	logger.InfoContext(ctx, "schema_migrated", slog.Int("applied", applied))

	dataset, err := seed.NewGenerator(cfg.Seed.RandomSeed).Generate(seed.Counts{
		Customers: cfg.Seed.Customers,
		Products:  cfg.Seed.Products,
		Orders:    cfg.Seed.Orders,
		Reviews:   cfg.Seed.Reviews,
	})
	if err != nil {
		return fmt.Errorf("generate sample data: %w", err)
	}

	progress, stop := seedProgress(opts, dataset.Len())
	loader := &seed.Loader{Logger: logger}
	_, err = loader.Load(ctx, db, dataset, progress)
	stop()
	if err != nil {
		return fmt.Errorf("load sample data: %w", err)
	}

	_, _ = fmt.Fprintln(out, "Database setup complete!")
	return nil
}

// seedProgress renders loader progress as one bar across all tables. Plain
// output prints a line per finished table instead.
func seedProgress(opts *Options, total int) (seed.Progress, func()) {
	done := map[string]int{}
	if opts.Plain || total == 0 {
		progress := func(table string, n, tableTotal int) {
			if n == tableTotal {
				_, _ = fmt.Fprintf(opts.Stdout, "  %s: %d rows\n", table, n)
			}
		}
		return progress, func() {}
	}

	bar, err := pterm.DefaultProgressbar.
		WithTotal(total).
		WithTitle("Loading sample data").
		WithWriter(opts.Stdout).
		Start()
	if err != nil {
		return nil, func() {}
	}
	progress := func(table string, n, _ int) {
		bar.UpdateTitle("Loading " + table)
		bar.Add(n - done[table])
		done[table] = n
	}
	return progress, func() { _, _ = bar.Stop() }
}
