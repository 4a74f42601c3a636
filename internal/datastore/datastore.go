// Package datastore opens the SQL pool behind the query gateway.
package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/shopqa/shopqa/internal/config"
)

// Open opens and pings a pool for the configured driver.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database %s: %w", driver, MaskDSN(dsn), err)
	}
	return db, nil
}

// DSN returns the explicit DSN when set, otherwise one built from the
// connection fields. DuckDB uses the file path; empty means in-memory.
func DSN(cfg config.DatabaseConfig) (string, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case config.DriverPostgres:
		if cfg.DSN != "" {
			return cfg.DSN, nil
		}
		if cfg.Host == "" {
			return "", fmt.Errorf("database host is required")
		}
		u := url.URL{
			Scheme: "postgres",
			Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Path:   "/" + cfg.Name,
		}
		if cfg.User != "" {
			if cfg.Password != "" {
				u.User = url.UserPassword(cfg.User, cfg.Password)
			} else {
				u.User = url.User(cfg.User)
			}
		}
		if cfg.SSLMode != "" {
			u.RawQuery = url.Values{"sslmode": []string{cfg.SSLMode}}.Encode()
		}
		return u.String(), nil
	case config.DriverDuckDB:
		if cfg.DSN != "" {
			return cfg.DSN, nil
		}
		return cfg.Path, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// IsPostgres reports whether the pool supports read-only transactions.
func IsPostgres(cfg config.DatabaseConfig) bool {
	return strings.EqualFold(strings.TrimSpace(cfg.Driver), config.DriverPostgres)
}

var (
	reKeywordPassword = regexp.MustCompile(`(?i)(password=)([^\s;]+)`)
	reURLPassword     = regexp.MustCompile(`(://[^:/@]+):([^@]+)(@)`)
)

// MaskDSN hides passwords in URL and keyword/value DSNs.
func MaskDSN(dsn string) string {
	out := reURLPassword.ReplaceAllString(dsn, "$1:***$3")
	return reKeywordPassword.ReplaceAllString(out, "$1***")
}
