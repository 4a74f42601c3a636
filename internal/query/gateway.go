package query

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopqa/shopqa/internal/observability"
)

type GatewayOptions struct {
	// RowLimit wraps every statement in an outer LIMIT. Zero disables it.
	RowLimit int
	// Timeout bounds each execution. Zero means no timeout.
	Timeout time.Duration
	// ReadOnlyTx runs each statement in a read-only transaction that is
	// always rolled back.
	ReadOnlyTx bool
	Logger     *slog.Logger
}

// Gateway executes generated SQL. It never returns a Go error; failures are
// carried in the Result.
type Gateway struct {
	db         *sql.DB
	rowLimit   int
	timeout    time.Duration
	readOnlyTx bool
	logger     *slog.Logger
}

func NewGateway(db *sql.DB, opts GatewayOptions) *Gateway {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rowLimit := opts.RowLimit
	if rowLimit < 0 {
		rowLimit = 0
	}
	return &Gateway{
		db:         db,
		rowLimit:   rowLimit,
		timeout:    opts.Timeout,
		readOnlyTx: opts.ReadOnlyTx,
		logger:     logger,
	}
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (g *Gateway) Execute(ctx context.Context, sqlText string) Result {
	start := time.Now()
	result := g.execute(ctx, sqlText)
	observability.ObserveQuery(time.Since(start), len(result.Rows), result.Failed())
	if result.Failed() {
		g.logger.WarnContext(ctx, "query_failed",
			slog.String("trace_id", observability.TraceIDFromContext(ctx)),
			slog.String("error", result.Err.Error()),
			slog.String("duration", time.Since(start).String()),
		)
	} else {
		g.logger.DebugContext(ctx, "query_executed",
			slog.String("trace_id", observability.TraceIDFromContext(ctx)),
			slog.Int("rows", len(result.Rows)),
			slog.String("duration", time.Since(start).String()),
		)
	}
	return result
}

func (g *Gateway) execute(ctx context.Context, sqlText string) Result {
	statement, err := prepareStatement(sqlText, g.rowLimit)
	if err != nil {
		return Failed(&ExecutionError{Err: err})
	}
	if g.db == nil {
		return Failed(&ExecutionError{Err: fmt.Errorf("database is not configured")})
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	conn, err := g.db.Conn(ctx)
	if err != nil {
		return Failed(&ExecutionError{Err: fmt.Errorf("acquire connection: %w", err)})
	}
	defer func() { _ = conn.Close() }()

	var target querier = conn
	if g.readOnlyTx {
		tx, err := conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
		if err != nil {
			return Failed(&ExecutionError{Err: fmt.Errorf("begin read-only transaction: %w", err)})
		}
		defer func() { _ = tx.Rollback() }()
		target = tx
	}

	columns, rows, err := scanRows(ctx, target, statement)
	if err != nil {
		return Failed(&ExecutionError{Err: err})
	}
	return Succeeded(columns, rows)
}

func scanRows(ctx context.Context, target querier, statement string) ([]string, []Row, error) {
	rows, err := target.QueryContext(ctx, statement)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("query columns: %w", err)
	}

	out := make([]Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(Row, len(columns))
		for i, column := range columns {
			row[i] = Field{Column: column, Value: normalizeValue(values[i])}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return columns, out, nil
}

func normalizeValue(value any) any {
	if typed, ok := value.([]byte); ok {
		return string(typed)
	}
	return value
}

// prepareStatement applies the read-only allow-list and the row limit.
func prepareStatement(sqlText string, rowLimit int) (string, error) {
	statement := trimStatement(sqlText)
	if !isAllowedSQL(statement) {
		return "", ErrStatementNotAllowed
	}
	if hasMultipleStatements(statement) {
		return "", fmt.Errorf("%w: multiple statements", ErrStatementNotAllowed)
	}
	if rowLimit > 0 {
		// The statement sits on its own lines so a line comment inside it
		// cannot swallow the closing parenthesis. DuckDB renames duplicate
		// column names in the subquery (id, id_1).
		statement = fmt.Sprintf("SELECT * FROM (\n%s\n) AS q LIMIT %d", statement, rowLimit)
	}
	return statement, nil
}

func isAllowedSQL(sqlText string) bool {
	normalized := strings.ToLower(strings.TrimLeft(strings.TrimSpace(sqlText), "("))
	if normalized == "" {
		return false
	}
	return strings.HasPrefix(normalized, "select") || strings.HasPrefix(normalized, "with")
}

// trimStatement drops comments, whitespace and semicolons from both ends of
// sqlText. Quoted text and comments between tokens are kept.
func trimStatement(sqlText string) string {
	start, end := -1, 0
	var quote byte
	for i := 0; i < len(sqlText); i++ {
		c := sqlText[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			end = i + 1
			continue
		case c == '\'' || c == '"':
			quote = c
		case c == '-' && i+1 < len(sqlText) && sqlText[i+1] == '-':
			for i < len(sqlText) && sqlText[i] != '\n' {
				i++
			}
			continue
		case c == '/' && i+1 < len(sqlText) && sqlText[i+1] == '*':
			closing := strings.Index(sqlText[i+2:], "*/")
			if closing < 0 {
				i = len(sqlText)
				continue
			}
			i += closing + 3
			continue
		case c == ';' || c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			continue
		}
		if start < 0 {
			start = i
		}
		end = i + 1
	}
	if start < 0 {
		return ""
	}
	return sqlText[start:end]
}

// hasMultipleStatements reports a semicolon outside quotes and comments.
func hasMultipleStatements(sqlText string) bool {
	var quote byte
	for i := 0; i < len(sqlText); i++ {
		c := sqlText[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '-' && i+1 < len(sqlText) && sqlText[i+1] == '-':
			for i < len(sqlText) && sqlText[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(sqlText) && sqlText[i+1] == '*':
			end := strings.Index(sqlText[i+2:], "*/")
			if end < 0 {
				return false
			}
			i += end + 3
		case c == ';':
			return true
		}
	}
	return false
}
