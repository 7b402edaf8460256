package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const catalogDDL = `
PRAGMA journal_mode=WAL;
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS indexed_files (
    collection  TEXT NOT NULL,
    path        TEXT NOT NULL,
    hash        TEXT NOT NULL,
    language    TEXT NOT NULL DEFAULT '',
    size_bytes  INTEGER NOT NULL DEFAULT 0,
    chunk_count INTEGER NOT NULL DEFAULT 0,
    indexed_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (collection, path)
);

CREATE TABLE IF NOT EXISTS collection_meta (
    collection TEXT NOT NULL,
    key        TEXT NOT NULL,
    value      TEXT NOT NULL,
    PRIMARY KEY (collection, key)
);
`

// FileRecord is one indexed source file in the catalog.
type FileRecord struct {
	Collection string `db:"collection"`
	Path       string `db:"path"`
	Hash       string `db:"hash"`
	Language   string `db:"language"`
	SizeBytes  int64  `db:"size_bytes"`
	ChunkCount int    `db:"chunk_count"`
}

// Catalog records which files have been indexed into which collection, keyed
// by content hash so unchanged files can be skipped on re-index. It also
// carries per-collection metadata such as the embedding model used.
type Catalog struct {
	db *sqlx.DB
}

// OpenCatalog creates or opens the catalog database at path.
func OpenCatalog(path string) (*Catalog, error) {
	return openCatalog(path+"?_journal_mode=WAL&_foreign_keys=on", 0)
}

// OpenCatalogInMemory opens a throwaway catalog for tests. The pool is pinned
// to one connection because every sqlite connection to :memory: is a distinct
// database.
func OpenCatalogInMemory() (*Catalog, error) {
	return openCatalog(":memory:", 1)
}

func openCatalog(dsn string, maxConns int) (*Catalog, error) {
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}
	if _, err := db.Exec(catalogDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init catalog schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// FileHash returns the stored hash for a path, or "" if never indexed.
func (c *Catalog) FileHash(ctx context.Context, collection, path string) (string, error) {
	var hash string
	err := c.db.GetContext(ctx, &hash,
		"SELECT hash FROM indexed_files WHERE collection = ? AND path = ?",
		collection, path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return hash, err
}

// UpsertFile records a file as indexed, replacing any previous entry.
func (c *Catalog) UpsertFile(ctx context.Context, rec FileRecord) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO indexed_files (collection, path, hash, language, size_bytes, chunk_count, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(collection, path) DO UPDATE SET
		    hash = excluded.hash,
		    language = excluded.language,
		    size_bytes = excluded.size_bytes,
		    chunk_count = excluded.chunk_count,
		    indexed_at = CURRENT_TIMESTAMP`,
		rec.Collection, rec.Path, rec.Hash, rec.Language, rec.SizeBytes, rec.ChunkCount)
	return err
}

// Files lists all catalog entries for a collection, ordered by path.
func (c *Catalog) Files(ctx context.Context, collection string) ([]FileRecord, error) {
	var out []FileRecord
	err := c.db.SelectContext(ctx, &out, `
		SELECT collection, path, hash, language, size_bytes, chunk_count
		FROM indexed_files WHERE collection = ? ORDER BY path`,
		collection)
	return out, err
}

// FileCount returns how many files the collection has indexed.
func (c *Catalog) FileCount(ctx context.Context, collection string) (int, error) {
	var n int
	err := c.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM indexed_files WHERE collection = ?", collection)
	return n, err
}

// DeleteCollection drops all file records and metadata for a collection.
func (c *Catalog) DeleteCollection(ctx context.Context, collection string) error {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM indexed_files WHERE collection = ?", collection); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM collection_meta WHERE collection = ?", collection); err != nil {
		return err
	}
	return tx.Commit()
}

// Collections lists every collection the catalog knows about.
func (c *Catalog) Collections(ctx context.Context) ([]string, error) {
	var out []string
	err := c.db.SelectContext(ctx, &out, `
		SELECT DISTINCT collection FROM indexed_files
		UNION SELECT DISTINCT collection FROM collection_meta
		ORDER BY 1`)
	return out, err
}

// Meta returns a per-collection metadata value, or "" if not set.
func (c *Catalog) Meta(ctx context.Context, collection, key string) (string, error) {
	var value string
	err := c.db.GetContext(ctx, &value,
		"SELECT value FROM collection_meta WHERE collection = ? AND key = ?",
		collection, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetMeta stores a per-collection metadata key-value pair.
func (c *Catalog) SetMeta(ctx context.Context, collection, key, value string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO collection_meta (collection, key, value) VALUES (?, ?, ?)
		ON CONFLICT(collection, key) DO UPDATE SET value = excluded.value`,
		collection, key, value)
	return err
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}
