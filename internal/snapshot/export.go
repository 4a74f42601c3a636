// Package snapshot copies the commerce tables to and from Parquet objects.
package snapshot

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/shopqa/shopqa/internal/schema"
	"github.com/shopqa/shopqa/internal/seed"
	"github.com/shopqa/shopqa/internal/storage"
)

const parquetContentType = "application/vnd.apache.parquet"

// TableSnapshot describes one exported or restored table.
type TableSnapshot struct {
	Table string
	Key   string
	Rows  int
	Bytes int64
}

type Exporter struct {
	DB     *sql.DB
	Store  storage.ObjectStore
	Prefix string
	Logger *slog.Logger
}

// Export writes every table as <prefix>/<table>.parquet.
func (e *Exporter) Export(ctx context.Context) ([]TableSnapshot, error) {
	if e.DB == nil {
		return nil, fmt.Errorf("database is required")
	}
	if e.Store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}

	out := make([]TableSnapshot, 0, len(schema.Tables()))
	for _, table := range schema.Tables() {
		key, err := storage.SnapshotTableKey(e.Prefix, table)
		if err != nil {
			return nil, err
		}
		data, rows, err := e.encodeTable(ctx, table)
		if err != nil {
			return nil, err
		}
		info, err := e.Store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: parquetContentType})
		if err != nil {
			return nil, fmt.Errorf("upload %s snapshot: %w", table, err)
		}
		out = append(out, TableSnapshot{Table: table, Key: key, Rows: rows, Bytes: info.Size})
		logger.InfoContext(ctx, "snapshot_table_exported",
			slog.String("table", table),
			slog.String("key", key),
			slog.Int("rows", rows),
		)
	}
	return out, nil
}

func (e *Exporter) encodeTable(ctx context.Context, table string) ([]byte, int, error) {
	switch table {
	case schema.TableCustomers:
		return exportRows(ctx, e.DB, table, func(rows *sql.Rows) (seed.Customer, error) {
			var c seed.Customer
			err := rows.Scan(&c.CustomerID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.RegistrationDate)
			return c, err
		})
	case schema.TableProducts:
		return exportRows(ctx, e.DB, table, func(rows *sql.Rows) (seed.Product, error) {
			var p seed.Product
			err := rows.Scan(&p.ProductID, &p.Name, &p.Description, &p.Price, &p.Category, &p.StockQuantity)
			return p, err
		})
	case schema.TableOrders:
		return exportRows(ctx, e.DB, table, func(rows *sql.Rows) (seed.Order, error) {
			var o seed.Order
			err := rows.Scan(&o.OrderID, &o.CustomerID, &o.OrderDate, &o.TotalAmount, &o.Status)
			return o, err
		})
	case schema.TableOrderItems:
		return exportRows(ctx, e.DB, table, func(rows *sql.Rows) (seed.OrderItem, error) {
			var i seed.OrderItem
			err := rows.Scan(&i.ItemID, &i.OrderID, &i.ProductID, &i.Quantity, &i.UnitPrice)
			return i, err
		})
	case schema.TableReviews:
		return exportRows(ctx, e.DB, table, func(rows *sql.Rows) (seed.Review, error) {
			var r seed.Review
			err := rows.Scan(&r.ReviewID, &r.ProductID, &r.CustomerID, &r.Rating, &r.Comment, &r.ReviewDate)
			return r, err
		})
	default:
		return nil, 0, fmt.Errorf("unknown table %q", table)
	}
}

// selectStatement orders by the first column, the table's primary key.
func selectStatement(table string) string {
	columns := schema.Columns(table)
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", strings.Join(columns, ", "), table, columns[0])
}

func exportRows[T any](ctx context.Context, db *sql.DB, table string, scan func(*sql.Rows) (T, error)) ([]byte, int, error) {
	rows, err := db.QueryContext(ctx, selectStatement(table))
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]T, 0, 256)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan %s row: %w", table, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate %s rows: %w", table, err)
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[T](buf)
	if len(items) > 0 {
		if _, err := writer.Write(items); err != nil {
			return nil, 0, fmt.Errorf("write %s parquet rows: %w", table, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, 0, fmt.Errorf("close %s parquet writer: %w", table, err)
	}
	return buf.Bytes(), len(items), nil
}
