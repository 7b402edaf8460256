// Package sqlitevec implements the VectorStore port on SQLite + sqlite-vec.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"codescope/internal/errs"
	"codescope/internal/provider"
)

func init() {
	sqlite_vec.Auto()
}

var collectionName = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

// listPageSize bounds how many rows a single ListVectors query pulls; larger
// requests are satisfied with a partial page instead of an error.
const listPageSize = 1000

// Store is a multi-collection vector store. Each collection gets a metadata
// table and a vec0 virtual table; the registry table records dimensions.
type Store struct {
	db *sql.DB
}

// Open creates or opens the store at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, errs.Wrap(errs.KindVectorDB, "open", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS collections (
		    name       TEXT PRIMARY KEY,
		    dimensions INTEGER NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.KindVectorDB, "init schema", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) CreateCollection(ctx context.Context, name string, dimensions int) error {
	if !collectionName.MatchString(name) {
		return errs.Invalid("collection", "must match [A-Za-z0-9_-]{1,100}")
	}
	if dimensions < 1 {
		return errs.Invalid("dimensions", "must be positive")
	}

	var existing int
	err := s.db.QueryRowContext(ctx,
		"SELECT dimensions FROM collections WHERE name = ?", name).Scan(&existing)
	switch {
	case err == nil:
		if existing != dimensions {
			return errs.E(errs.KindVectorDB, "create_collection",
				fmt.Sprintf("collection %s exists with dimensions %d", name, existing))
		}
		return nil
	case err != sql.ErrNoRows:
		return errs.Wrap(errs.KindVectorDB, "create_collection", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.KindVectorDB, "create_collection", err)
	}
	defer tx.Rollback()

	metaDDL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
		    id         INTEGER PRIMARY KEY AUTOINCREMENT,
		    file_path  VARCHAR(65535) NOT NULL,
		    start_line INTEGER NOT NULL,
		    content    VARCHAR(65535) NOT NULL,
		    language   TEXT NOT NULL DEFAULT ''
		);
	`, metaTable(name))
	if _, err := tx.ExecContext(ctx, metaDDL); err != nil {
		return errs.Wrap(errs.KindVectorDB, "create_collection", err)
	}
	vecDDL := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(
		    meta_id INTEGER PRIMARY KEY,
		    embedding float[%d]
		);
	`, vecTable(name), dimensions)
	if _, err := tx.ExecContext(ctx, vecDDL); err != nil {
		return errs.Wrap(errs.KindVectorDB, "create_collection", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO collections (name, dimensions) VALUES (?, ?)", name, dimensions); err != nil {
		return errs.Wrap(errs.KindVectorDB, "create_collection", err)
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.KindVectorDB, "create_collection", err)
	}
	return nil
}

func (s *Store) dimensions(ctx context.Context, name string) (int, error) {
	var dims int
	err := s.db.QueryRowContext(ctx,
		"SELECT dimensions FROM collections WHERE name = ?", name).Scan(&dims)
	if err == sql.ErrNoRows {
		return 0, errs.NotFound("collection", name)
	}
	if err != nil {
		return 0, errs.Wrap(errs.KindVectorDB, "get_collection", err)
	}
	return dims, nil
}

func (s *Store) InsertVectors(ctx context.Context, name string, vectors [][]float32, meta []provider.Metadata) ([]string, error) {
	if len(vectors) != len(meta) {
		return nil, errs.Invalid("vectors", "vectors and metadata length mismatch")
	}
	if len(vectors) == 0 {
		return []string{}, nil
	}
	dims, err := s.dimensions(ctx, name)
	if err != nil {
		return nil, err
	}
	for _, v := range vectors {
		if len(v) != dims {
			// Invalid argument, not a store fault: the indexer treats it as
			// fatal and aborts the whole run.
			return nil, errs.E(errs.KindInvalidArgument, "insert_vectors",
				"dimension mismatch: got "+strconv.Itoa(len(v))+", want "+strconv.Itoa(dims))
		}
	}
	for _, m := range meta {
		if len(m.Content) > provider.MaxContentLen {
			return nil, errs.Invalid("content", "exceeds varchar limit")
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindVectorDB, "insert_vectors", err)
	}
	defer tx.Rollback()

	metaStmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (file_path, start_line, content, language) VALUES (?, ?, ?, ?)",
		metaTable(name)))
	if err != nil {
		return nil, errs.Wrap(errs.KindVectorDB, "insert_vectors", err)
	}
	defer metaStmt.Close()

	vecStmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (meta_id, embedding) VALUES (?, ?)", vecTable(name)))
	if err != nil {
		return nil, errs.Wrap(errs.KindVectorDB, "insert_vectors", err)
	}
	defer vecStmt.Close()

	ids := make([]string, 0, len(vectors))
	for i, v := range vectors {
		res, err := metaStmt.ExecContext(ctx,
			meta[i].FilePath, meta[i].StartLine, meta[i].Content, meta[i].Language)
		if err != nil {
			return nil, errs.Wrap(errs.KindVectorDB, "insert_vectors", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, errs.Wrap(errs.KindVectorDB, "insert_vectors", err)
		}
		blob, err := sqlite_vec.SerializeFloat32(v)
		if err != nil {
			return nil, errs.Wrap(errs.KindVectorDB, "serialize embedding", err)
		}
		if _, err := vecStmt.ExecContext(ctx, id, blob); err != nil {
			return nil, errs.Wrap(errs.KindVectorDB, "insert_vectors", err)
		}
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	if err := tx.Commit(); err != nil {
		return nil, errs.Wrap(errs.KindVectorDB, "insert_vectors", err)
	}
	return ids, nil
}

func (s *Store) SearchSimilar(ctx context.Context, name string, query []float32, limit int, filter *provider.Filter) ([]provider.SearchResult, error) {
	if limit <= 0 {
		return []provider.SearchResult{}, nil
	}
	dims, err := s.dimensions(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(query) != dims {
		return nil, errs.E(errs.KindVectorDB, "search_similar", "query dimension mismatch")
	}
	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, errs.Wrap(errs.KindVectorDB, "serialize query", err)
	}

	// Over-fetch when filtering post-query so the page can still fill.
	fetch := limit
	if filter != nil {
		fetch = limit * 4
	}
	q := fmt.Sprintf(`
		SELECT v.meta_id, v.distance, m.file_path, m.start_line, m.content, m.language
		FROM %s v
		JOIN %s m ON m.id = v.meta_id
		WHERE v.embedding MATCH ? AND v.k = ?
		ORDER BY v.distance
	`, vecTable(name), metaTable(name))
	rows, err := s.db.QueryContext(ctx, q, blob, fetch)
	if err != nil {
		return nil, errs.Wrap(errs.KindVectorDB, "search_similar", err)
	}
	defer rows.Close()

	var results []provider.SearchResult
	for rows.Next() {
		var id int64
		var distance float64
		var m provider.Metadata
		if err := rows.Scan(&id, &distance, &m.FilePath, &m.StartLine, &m.Content, &m.Language); err != nil {
			return nil, errs.Wrap(errs.KindVectorDB, "search_similar", err)
		}
		if !filter.Matches(m) {
			continue
		}
		results = append(results, provider.SearchResult{
			ID:        strconv.FormatInt(id, 10),
			FilePath:  m.FilePath,
			StartLine: m.StartLine,
			Content:   m.Content,
			Language:  m.Language,
			Score:     1 / (1 + distance),
		})
		if len(results) == limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindVectorDB, "search_similar", err)
	}
	provider.SortResults(results)
	return results, nil
}

func (s *Store) DeleteVectors(ctx context.Context, name string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.dimensions(ctx, name); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.KindVectorDB, "delete_vectors", err)
	}
	defer tx.Rollback()
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return errs.Invalid("id", "not numeric: "+raw)
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE meta_id = ?", vecTable(name)), id); err != nil {
			return errs.Wrap(errs.KindVectorDB, "delete_vectors", err)
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE id = ?", metaTable(name)), id); err != nil {
			return errs.Wrap(errs.KindVectorDB, "delete_vectors", err)
		}
	}
	return tx.Commit()
}

func (s *Store) ListVectors(ctx context.Context, name string, limit int) ([]provider.SearchResult, error) {
	if _, err := s.dimensions(ctx, name); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > listPageSize {
		limit = listPageSize
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT id, file_path, start_line, content, language FROM %s ORDER BY id LIMIT ?",
		metaTable(name)), limit)
	if err != nil {
		return nil, errs.Wrap(errs.KindVectorDB, "list_vectors", err)
	}
	defer rows.Close()

	var results []provider.SearchResult
	for rows.Next() {
		var id int64
		var r provider.SearchResult
		if err := rows.Scan(&id, &r.FilePath, &r.StartLine, &r.Content, &r.Language); err != nil {
			// Oversized row payloads truncate the page instead of failing.
			break
		}
		r.ID = strconv.FormatInt(id, 10)
		results = append(results, r)
	}
	return results, nil
}

func (s *Store) GetStats(ctx context.Context, name string) (provider.CollectionStats, error) {
	dims, err := s.dimensions(ctx, name)
	if err != nil {
		return provider.CollectionStats{}, err
	}
	var count int64
	if err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s", metaTable(name))).Scan(&count); err != nil {
		return provider.CollectionStats{}, errs.Wrap(errs.KindVectorDB, "get_stats", err)
	}
	return provider.CollectionStats{Name: name, Dimensions: dims, Vectors: count}, nil
}

func (s *Store) DropCollection(ctx context.Context, name string) error {
	if !collectionName.MatchString(name) {
		return errs.Invalid("collection", "must match [A-Za-z0-9_-]{1,100}")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.KindVectorDB, "drop_collection", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+vecTable(name)); err != nil {
		return errs.Wrap(errs.KindVectorDB, "drop_collection", err)
	}
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+metaTable(name)); err != nil {
		return errs.Wrap(errs.KindVectorDB, "drop_collection", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", name); err != nil {
		return errs.Wrap(errs.KindVectorDB, "drop_collection", err)
	}
	return tx.Commit()
}

func (s *Store) Flush(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	if err != nil {
		return errs.RetriableE(errs.KindVectorDB, "flush", err)
	}
	return nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errs.Wrap(errs.KindVectorDB, "health_check", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// Table names embed the hex of the collection name, so the encoding is
// injective (distinct names like "a-b" and "a_b" never share tables) and
// interpolation into DDL is safe.
func metaTable(name string) string {
	return "c_" + hex.EncodeToString([]byte(name)) + "_meta"
}

func vecTable(name string) string {
	return "vec_" + hex.EncodeToString([]byte(name))
}

var _ provider.VectorStore = (*Store)(nil)
