package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/shopqa/shopqa/internal/archive"
	"github.com/shopqa/shopqa/internal/config"
	"github.com/shopqa/shopqa/internal/datastore"
	"github.com/shopqa/shopqa/internal/llm"
	"github.com/shopqa/shopqa/internal/pipeline"
	"github.com/shopqa/shopqa/internal/query"
	"github.com/shopqa/shopqa/internal/schema"
	"github.com/shopqa/shopqa/internal/storage"
	s3store "github.com/shopqa/shopqa/internal/storage/s3"
)

// environment holds the long-lived dependencies of a question session.
type environment struct {
	cfg      config.Config
	db       *sql.DB
	ownsDB   bool
	store    *s3store.Store
	pipeline *pipeline.Pipeline
}

// openEnvironment connects to the database and builds the session on it. The
// database is closed with the environment.
func openEnvironment(ctx context.Context, cfg config.Config, logger *slog.Logger, stream io.Writer) (*environment, error) {
	db, err := datastore.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	env, err := newEnvironment(ctx, cfg, db, logger, stream)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	env.ownsDB = true
	return env, nil
}

// newEnvironment connects to the model, plus the object store when archiving
// is enabled, and runs questions against db. stream receives generated tokens
// when streaming is configured. The caller keeps ownership of db.
func newEnvironment(ctx context.Context, cfg config.Config, db *sql.DB, logger *slog.Logger, stream io.Writer) (*environment, error) {
	env := &environment{cfg: cfg, db: db}

	generator, err := llm.New(cfg.Model, stream)
	if err != nil {
		env.Close()
		return nil, err
	}

	var recorder pipeline.Recorder
	if cfg.Archive.Enabled {
		store, err := env.objectStore(ctx)
		if err != nil {
			env.Close()
			return nil, err
		}
		recorder, err = archive.NewRecorder(store, cfg.Archive.Prefix, logger)
		if err != nil {
			env.Close()
			return nil, err
		}
	}

	env.pipeline, err = pipeline.New(pipeline.Deps{
		Generator: generator,
		Executor: query.NewGateway(db, query.GatewayOptions{
			RowLimit:   cfg.Database.RowLimit,
			Timeout:    cfg.Database.QueryTimeout,
			ReadOnlyTx: datastore.IsPostgres(cfg.Database),
			Logger:     logger,
		}),
		Schema:   schema.Description,
		Recorder: recorder,
		Logger:   logger,
	}, pipeline.Options{
		FailOnQueryError:  cfg.Pipeline.FailOnQueryError,
		PromptTokenBudget: cfg.Model.ContextLength - cfg.Model.MaxTokens,
	})
	if err != nil {
		env.Close()
		return nil, err
	}
	logger.DebugContext(ctx, "environment_ready",
		slog.String("driver", cfg.Database.Driver),
		slog.String("model_backend", cfg.Model.Backend),
		slog.String("model", cfg.Model.Name),
		slog.Bool("archive", cfg.Archive.Enabled),
	)
	return env, nil
}

func (e *environment) objectStore(ctx context.Context) (storage.ObjectStore, error) {
	if e.store != nil {
		return e.store, nil
	}
	store, err := s3store.Open(ctx, e.cfg.ObjectStore)
	if err != nil {
		return nil, fmt.Errorf("open object store: %w", err)
	}
	e.store = store
	return store, nil
}

func (e *environment) Close() {
	if e.ownsDB && e.db != nil {
		_ = e.db.Close()
	}
}
