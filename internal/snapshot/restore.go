package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopqa/shopqa/internal/schema"
	"github.com/shopqa/shopqa/internal/seed"
	"github.com/shopqa/shopqa/internal/storage"
)

// Restorer loads a snapshot into an embedded DuckDB database through
// read_parquet. Other drivers cannot read local Parquet files.
type Restorer struct {
	DB     *sql.DB
	Store  storage.ObjectStore
	Prefix string
	// TempDir holds the downloaded files; empty uses os.TempDir.
	TempDir string
	Logger  *slog.Logger
}

// Restore replaces every table's rows with the snapshot. All table objects
// are downloaded before any row is deleted.
func (r *Restorer) Restore(ctx context.Context) ([]TableSnapshot, error) {
	if r.DB == nil {
		return nil, fmt.Errorf("database is required")
	}
	if r.Store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dir, err := os.MkdirTemp(r.TempDir, "shopqa-restore-*")
	if err != nil {
		return nil, fmt.Errorf("create restore dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	tables := schema.Tables()
	files := make(map[string]string, len(tables))
	out := make([]TableSnapshot, 0, len(tables))
	for _, table := range tables {
		key, err := storage.SnapshotTableKey(r.Prefix, table)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, table+".parquet")
		size, err := r.download(ctx, key, path)
		if err != nil {
			return nil, err
		}
		files[table] = path
		out = append(out, TableSnapshot{Table: table, Key: key, Bytes: size})
	}

	if err := seed.Clear(ctx, r.DB); err != nil {
		return nil, err
	}
	for i, table := range tables {
		result, err := r.DB.ExecContext(ctx, insertFromParquet(table, files[table]))
		if err != nil {
			return nil, fmt.Errorf("restore %s: %w", table, err)
		}
		if affected, err := result.RowsAffected(); err == nil {
			out[i].Rows = int(affected)
		}
		logger.InfoContext(ctx, "snapshot_table_restored",
			slog.String("table", table),
			slog.String("key", out[i].Key),
			slog.Int("rows", out[i].Rows),
		)
	}
	return out, nil
}

func (r *Restorer) download(ctx context.Context, key, path string) (int64, error) {
	reader, err := r.Store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return 0, fmt.Errorf("snapshot object %q not found", key)
		}
		return 0, fmt.Errorf("download %q: %w", key, err)
	}
	defer func() { _ = reader.Close() }()

	size, err := writeFile(path, reader)
	if err != nil {
		return 0, fmt.Errorf("write %q: %w", path, err)
	}
	return size, nil
}

func insertFromParquet(table, path string) string {
	columns := strings.Join(schema.Columns(table), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM read_parquet(%s)", table, columns, columns, quoteLiteral(path))
}

func quoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func writeFile(path string, reader io.Reader) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	size, copyErr := io.Copy(file, reader)
	closeErr := file.Close()
	if copyErr != nil {
		return 0, copyErr
	}
	return size, closeErr
}
