package seed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopqa/shopqa/internal/schema"
)

const defaultBatchSize = 200

// Progress is called after each inserted batch.
type Progress func(table string, done, total int)

type Loader struct {
	BatchSize int
	Logger    *slog.Logger
}

type Stats struct {
	Rows     map[string]int
	Duration time.Duration
}

type tableRows struct {
	name string
	rows [][]any
}

// Load replaces the contents of every commerce table with dataset. Rows are
// cleared children first, then inserted parents first in one transaction.
func (l *Loader) Load(ctx context.Context, db *sql.DB, dataset Dataset, progress Progress) (Stats, error) {
	if db == nil {
		return Stats{}, fmt.Errorf("database is required")
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batchSize := l.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	start := time.Now()

	if err := Clear(ctx, db); err != nil {
		return Stats{}, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stats := Stats{Rows: map[string]int{}}
	for _, table := range datasetTables(dataset) {
		columns := schema.Columns(table.name)
		total := len(table.rows)
		for offset := 0; offset < total; offset += batchSize {
			end := offset + batchSize
			if end > total {
				end = total
			}
			statement, args := insertStatement(table.name, columns, table.rows[offset:end])
			if _, err := tx.ExecContext(ctx, statement, args...); err != nil {
				return Stats{}, fmt.Errorf("insert %s rows %d-%d: %w", table.name, offset+1, end, err)
			}
			if progress != nil {
				progress(table.name, end, total)
			}
		}
		stats.Rows[table.name] = total
		logger.DebugContext(ctx, "seed_table_loaded", slog.String("table", table.name), slog.Int("rows", total))
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed tx: %w", err)
	}
	stats.Duration = time.Since(start)
	logger.InfoContext(ctx, "seed_loaded",
		slog.Int("rows", dataset.Len()),
		slog.String("duration", stats.Duration.String()),
	)
	return stats, nil
}

// Clear deletes every commerce row, children first. Each DELETE commits on
// its own; DuckDB rejects a parent delete in the transaction that removed its
// children.
func Clear(ctx context.Context, db *sql.DB) error {
	tables := schema.Tables()
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := db.ExecContext(ctx, "DELETE FROM "+tables[i]); err != nil {
			return fmt.Errorf("clear %s: %w", tables[i], err)
		}
	}
	return nil
}

func datasetTables(ds Dataset) []tableRows {
	customers := make([][]any, 0, len(ds.Customers))
	for _, row := range ds.Customers {
		customers = append(customers, row.Values())
	}
	products := make([][]any, 0, len(ds.Products))
	for _, row := range ds.Products {
		products = append(products, row.Values())
	}
	orders := make([][]any, 0, len(ds.Orders))
	for _, row := range ds.Orders {
		orders = append(orders, row.Values())
	}
	items := make([][]any, 0, len(ds.OrderItems))
	for _, row := range ds.OrderItems {
		items = append(items, row.Values())
	}
	reviews := make([][]any, 0, len(ds.Reviews))
	for _, row := range ds.Reviews {
		reviews = append(reviews, row.Values())
	}
	return []tableRows{
		{name: schema.TableCustomers, rows: customers},
		{name: schema.TableProducts, rows: products},
		{name: schema.TableOrders, rows: orders},
		{name: schema.TableOrderItems, rows: items},
		{name: schema.TableReviews, rows: reviews},
	}
}

// insertStatement builds one multi-row INSERT with $n placeholders.
func insertStatement(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	n := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
		}
		b.WriteByte(')')
		args = append(args, row...)
	}
	return b.String(), args
}
