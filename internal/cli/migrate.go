package cli

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/shopqa/shopqa/internal/datastore"
	"github.com/shopqa/shopqa/internal/migrations"
)

func newMigrateCommand(opts *Options, flags *rootFlags) *cobra.Command {
	var direction string
	var steps int
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or list schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch direction {
			case "up", "down", "status":
			default:
				return usageError{err: fmt.Errorf("invalid direction %q: want up, down or status", direction)}
			}
			cfg, _, err := loadConfig(opts, flags.configPath)
			if err != nil {
				return err
			}
			db, err := datastore.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			runner := migrations.NewRunner()
			out := opts.Stdout
			switch direction {
			case "up":
				applied, err := runner.Up(cmd.Context(), db, steps)
				if err != nil {
					return fmt.Errorf("migration up failed: %w", err)
				}
				_, _ = fmt.Fprintf(out, "applied %d migration(s)\n", applied)
			case "down":
				reverted, err := runner.Down(cmd.Context(), db, steps)
				if err != nil {
					return fmt.Errorf("migration down failed: %w", err)
				}
				_, _ = fmt.Fprintf(out, "rolled back %d migration(s)\n", reverted)
			case "status":
				statuses, err := runner.Status(cmd.Context(), db)
				if err != nil {
					return fmt.Errorf("migration status failed: %w", err)
				}
				data := pterm.TableData{{"VERSION", "NAME", "APPLIED"}}
				for _, status := range statuses {
					data = append(data, []string{
						strconv.FormatInt(status.Version, 10),
						status.Name,
						strconv.FormatBool(status.Applied),
					})
				}
				table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(out, table)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&direction, "direction", "up", "migration direction: up|down|status")
	cmd.Flags().IntVar(&steps, "steps", 0, "number of migration steps; 0 means all for up, 1 for down")
	return cmd
}
