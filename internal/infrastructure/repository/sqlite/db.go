package sqlite

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"

	_ "modernc.org/sqlite"
)

const DriverName = "sqlite"

const defaultBusyTimeout = 5 * time.Second

type Options struct {
	Path        string
	BusyTimeout time.Duration
	// DBName and QueryFormatter only affect emitted spans.
	DBName         string
	QueryFormatter func(query string) string
}

// DSN builds a modernc.org/sqlite connection string with WAL, foreign keys
// and a busy timeout.
func DSN(path string, busyTimeout time.Duration) string {
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}
	params := url.Values{}
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()))
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "foreign_keys(ON)")
	return "file:" + filepath.ToSlash(filepath.Clean(path)) + "?" + params.Encode()
}

// Open returns a traced single-connection handle. The store has exactly one
// writer, so the pool never grows beyond one connection.
func Open(ctx context.Context, opts Options) (*sqlx.DB, error) {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	traceOpts := []otelsql.Option{otelsql.WithDBSystem("sqlite")}
	if opts.DBName != "" {
		traceOpts = append(traceOpts, otelsql.WithDBName(opts.DBName))
	}
	if opts.QueryFormatter != nil {
		traceOpts = append(traceOpts, otelsql.WithQueryFormatter(opts.QueryFormatter))
	}

	db, err := otelsqlx.Open(DriverName, DSN(path, opts.BusyTimeout), traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return db, nil
}
