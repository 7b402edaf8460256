// Package sqlitedb implements the Database port on SQLite. One handle is
// shared by the memory and project stores, which each install their own
// schema on it.
package sqlitedb

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"codescope/internal/errs"
	"codescope/internal/provider"
)

// DB wraps a sqlx handle behind the Database port.
type DB struct {
	db *sqlx.DB
}

// Open creates or opens the database file at path.
func Open(path string) (*DB, error) {
	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &DB{db: db}, nil
}

// OpenInMemory opens a throwaway database for tests, pinned to one connection
// so every query sees the same in-memory instance.
func OpenInMemory() (*DB, error) {
	db, err := sqlx.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &DB{db: db}, nil
}

// DB returns the underlying sqlx handle.
func (d *DB) DB() *sqlx.DB { return d.db }

func (d *DB) HealthCheck(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return errs.Wrap(errs.KindDatabase, "health_check", err)
	}
	return nil
}

func (d *DB) Close() error { return d.db.Close() }

var _ provider.Database = (*DB)(nil)
