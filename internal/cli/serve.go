package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/shopqa/shopqa/internal/api"
	"github.com/shopqa/shopqa/internal/schema"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *Options, flags *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the question pipeline over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(opts, flags.configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Address = addr
			}

			// Streaming would interleave tokens from concurrent requests.
			cfg.Model.Stream = false
			env, err := openEnvironment(cmd.Context(), cfg, logger, nil)
			if err != nil {
				return err
			}
			defer env.Close()

			checks := []api.ReadinessCheck{env.db.PingContext}
			if env.store != nil {
				checks = append(checks, env.store.Ping)
			}
			handler := api.NewHandler(cfg, api.Dependencies{
				Logger:            logger,
				Readiness:         api.CombineReadinessChecks(checks...),
				DependencyTimeout: time.Second,
				Asker:             env.pipeline,
				Schema:            schema.Description,
				Tables:            schema.Tables(),
			})
			server := &http.Server{
				Addr:         cfg.HTTP.Address,
				Handler:      handler,
				ReadTimeout:  cfg.HTTP.ReadTimeout,
				WriteTimeout: cfg.HTTP.WriteTimeout,
				IdleTimeout:  cfg.HTTP.IdleTimeout,
			}
			return serve(cmd.Context(), server, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address; overrides SHOPQA_HTTP_ADDR")
	return cmd
}

// serve runs server until ctx is cancelled, then shuts down gracefully.
func serve(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	errc := make(chan error, 1)
	go func() {
		logger.Info("starting api server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		_ = server.Close()
		return err
	}
	return nil
}
