// Package db provides the SQLite connection used for durable sync state.
package db

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/modforge/modsync/internal/utils"
)

// SQLite pragmas tuned for a single-writer append-heavy workload.
const defaultPragma = `
PRAGMA journal_mode=WAL;
PRAGMA busy_timeout=5000;
PRAGMA foreign_keys=ON;
PRAGMA temp_store=MEMORY;
PRAGMA cache_size=8000;
`

type config struct {
	path            string
	pragmas         string
	maxOpenConns    int
	maxIdleConns    int
	connMaxLifetime time.Duration
}

// Option configures the SQLite connection.
type Option func(*config)

// WithPath sets the database file path. Use ":memory:" for an in-memory
// database.
func WithPath(path string) Option {
	return func(c *config) {
		c.path = path
	}
}

// WithPragmas replaces the default pragmas.
func WithPragmas(pragmas string) Option {
	return func(c *config) {
		c.pragmas = pragmas
	}
}

// WithMaxOpenConns caps the connection pool.
func WithMaxOpenConns(n int) Option {
	return func(c *config) {
		c.maxOpenConns = n
	}
}

// WithConnMaxLifetime bounds how long a pooled connection lives.
func WithConnMaxLifetime(d time.Duration) Option {
	return func(c *config) {
		c.connMaxLifetime = d
	}
}

// NewSqliteDB opens (creating if necessary) a SQLite database.
func NewSqliteDB(opts ...Option) (*sqlx.DB, error) {
	cfg := &config{
		path:         ":memory:",
		pragmas:      defaultPragma,
		maxIdleConns: 2,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var dsn string
	if cfg.path != ":memory:" {
		if err := utils.EnsureParent(cfg.path); err != nil {
			return nil, fmt.Errorf("ensure parent directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_txlock=immediate&mode=rwc", cfg.path)
	} else {
		dsn = ":memory:"
	}

	slog.Debug("db open", "driver", driverID, "path", cfg.path)
	db, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.maxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.maxOpenConns)
	}
	if cfg.maxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.maxIdleConns)
	}
	if cfg.connMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.connMaxLifetime)
	}

	if _, err := db.Exec(cfg.pragmas); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	return db, nil
}
