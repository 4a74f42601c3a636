// Package cli implements the shopqa command line: one-shot questions, the
// interactive loop, and the operational subcommands.
package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/shopqa/shopqa/internal/config"
	"github.com/shopqa/shopqa/internal/datastore"
	"github.com/shopqa/shopqa/internal/observability"
)

const serviceName = "shopqa"

type Options struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Lookup resolves configuration keys; nil uses the process environment.
	Lookup config.LookupFunc
	// Plain disables colors and progress bars.
	Plain bool
	// Asker replaces the database-backed pipeline for question commands.
	Asker Asker
	// HTTPClient is used by the remote subcommand.
	HTTPClient *http.Client
}

// usageError marks bad flags or arguments; Run exits 2 for it.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// silentError carries an exit code for failures that were already printed.
type silentError struct{ code int }

func (e silentError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func Run(ctx context.Context, args []string, opts Options) int {
	if opts.Stdin == nil {
		opts.Stdin = strings.NewReader("")
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.Lookup == nil {
		opts.Lookup = os.LookupEnv
	}
	if opts.Plain {
		pterm.DisableStyling()
	}

	root := newRootCommand(&opts)
	root.SetArgs(args)
	root.SetIn(opts.Stdin)
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var silent silentError
	if errors.As(err, &silent) {
		return silent.code
	}
	_, _ = fmt.Fprintf(opts.Stderr, "Error: %v\n", err)
	var usage usageError
	if errors.As(err, &usage) {
		return 2
	}
	return 1
}

type rootFlags struct {
	configPath string
	setup      bool
	question   string
}

func newRootCommand(opts *Options) *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Answer questions about the shop database in plain language",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRoot(cmd.Context(), opts, flags)
		},
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "YAML, TOML or JSON config file; environment variables take precedence")
	root.Flags().BoolVar(&flags.setup, "setup", false, "create the schema and load generated sample data")
	root.Flags().StringVar(&flags.question, "question", "", "answer a single question and exit")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})

	root.AddCommand(
		newServeCommand(opts, flags),
		newMigrateCommand(opts, flags),
		newSnapshotCommand(opts, flags),
		newRemoteCommand(opts),
	)
	return root
}

func runRoot(ctx context.Context, opts *Options, flags *rootFlags) error {
	cfg, logger, err := loadConfig(opts, flags.configPath)
	if err != nil {
		return err
	}
	question := strings.TrimSpace(flags.question)
	if flags.question != "" && question == "" {
		return usageError{err: errors.New("--question must not be blank")}
	}

	// Setup and the session share one handle; an in-memory DuckDB lives only
	// as long as it.
	var db *sql.DB
	if flags.setup || opts.Asker == nil {
		db, err = datastore.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
	}

	if flags.setup {
		if err := runSetup(ctx, opts, cfg, db, logger); err != nil {
			return err
		}
		if question == "" {
			return nil
		}
	}

	asker := opts.Asker
	if asker == nil {
		env, err := newEnvironment(ctx, cfg, db, logger, opts.Stdout)
		if err != nil {
			return err
		}
		defer env.Close()
		asker = env.pipeline
	}

	if question != "" {
		outcome := asker.Ask(ctx, question)
		printOutcome(opts.Stdout, outcome)
		if outcome.Failed() {
			return silentError{code: 1}
		}
		return nil
	}
	return runInteractive(ctx, opts.Stdin, opts.Stdout, asker, !opts.Plain && !cfg.Model.Stream)
}

func loadConfig(opts *Options, path string) (config.Config, *slog.Logger, error) {
	cfg, err := config.LoadWithFile(serviceName, path, opts.Lookup)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, observability.NewLogger(cfg, opts.Stderr), nil
}
