package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"codescope/internal/common"
	"codescope/internal/errs"
	"codescope/internal/provider"
	"codescope/internal/provider/sqlitedb"
	"codescope/internal/search"
)

const memoryDDL = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS observations (
    id               TEXT PRIMARY KEY,
    content          TEXT NOT NULL,
    observation_type TEXT NOT NULL,
    tags             TEXT NOT NULL DEFAULT '[]',
    content_hash     TEXT NOT NULL,
    session_id       TEXT NOT NULL DEFAULT '',
    repo_id          TEXT NOT NULL DEFAULT '',
    file_path        TEXT NOT NULL DEFAULT '',
    branch           TEXT NOT NULL DEFAULT '',
    commit_sha       TEXT NOT NULL DEFAULT '',
    vector_id        TEXT NOT NULL DEFAULT '',
    created_at       INTEGER NOT NULL,
    UNIQUE (content_hash, session_id)
);

CREATE INDEX IF NOT EXISTS idx_obs_session_created
    ON observations (session_id, created_at);
CREATE INDEX IF NOT EXISTS idx_obs_repo_branch
    ON observations (repo_id, branch);
CREATE INDEX IF NOT EXISTS idx_obs_created
    ON observations (created_at);
`

// DefaultCollection is the vector-store collection holding observation
// embeddings.
const DefaultCollection = "memories"

// Deps are the ports the memory store drives. Embedder, Vectors, and Engine
// are optional as a group: without them observations are stored and
// traversable but not semantically searchable.
type Deps struct {
	Embedder provider.Embedder
	Vectors  provider.VectorStore
	Engine   *search.Engine
}

// Store persists observations through the database port and mirrors their
// content into the vector store for hybrid search.
type Store struct {
	db         *sqlx.DB
	owned      provider.Database // set when the store opened its own handle
	embedder   provider.Embedder
	vectors    provider.VectorStore
	engine     *search.Engine
	collection string
	log        *slog.Logger
	now        func() time.Time
}

// New prepares the observation schema on a shared database handle. The
// caller keeps ownership of the handle and closes it after the store.
func New(ctx context.Context, dbh provider.Database, deps Deps) (*Store, error) {
	db := dbh.DB()
	if _, err := db.ExecContext(ctx, memoryDDL); err != nil {
		return nil, fmt.Errorf("init memory schema: %w", err)
	}

	s := &Store{
		db:         db,
		embedder:   deps.Embedder,
		vectors:    deps.Vectors,
		engine:     deps.Engine,
		collection: DefaultCollection,
		log:        common.Component("memory"),
		now:        time.Now,
	}
	if s.embedder != nil && s.vectors != nil {
		if err := s.vectors.CreateCollection(ctx, s.collection, s.embedder.Dimensions()); err != nil {
			return nil, fmt.Errorf("create memory collection: %w", err)
		}
	}
	return s, nil
}

// OpenInMemory opens a throwaway store for tests, owning its own handle.
func OpenInMemory(ctx context.Context, deps Deps) (*Store, error) {
	dbh, err := sqlitedb.OpenInMemory()
	if err != nil {
		return nil, err
	}
	s, err := New(ctx, dbh, deps)
	if err != nil {
		dbh.Close()
		return nil, err
	}
	s.owned = dbh
	return s, nil
}

// StoreRequest is the input to Store.
type StoreRequest struct {
	Content string
	Type    ObservationType
	Tags    []string
	Meta    Meta
}

// StoreResult reports the stored (or pre-existing) observation.
type StoreResult struct {
	ID           string
	Deduplicated bool
}

// Store persists an observation. A duplicate (content_hash, session_id) pair
// returns the existing id with Deduplicated set; the unique index makes this
// at-most-once even under concurrent writers.
func (s *Store) Store(ctx context.Context, req StoreRequest) (StoreResult, error) {
	if err := validateContent(req.Content); err != nil {
		return StoreResult{}, err
	}
	if !req.Type.Valid() {
		return StoreResult{}, errs.Invalid("observation_type", fmt.Sprintf("unknown type %q", req.Type))
	}

	hash := ContentHash(req.Type, req.Content)
	tags, err := json.Marshal(dedupTags(req.Tags))
	if err != nil {
		return StoreResult{}, fmt.Errorf("encode tags: %w", err)
	}
	obs := Observation{
		ID:          uuid.NewString(),
		Content:     req.Content,
		Type:        req.Type,
		ContentHash: hash,
		Meta:        req.Meta,
		CreatedAt:   s.now().Unix(),
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO observations
		    (id, content, observation_type, tags, content_hash,
		     session_id, repo_id, file_path, branch, commit_sha, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (content_hash, session_id) DO NOTHING`,
		obs.ID, obs.Content, string(obs.Type), string(tags), hash,
		req.Meta.SessionID, req.Meta.RepoID, req.Meta.FilePath,
		req.Meta.Branch, req.Meta.Commit, obs.CreatedAt)
	if err != nil {
		return StoreResult{}, errs.Wrap(errs.KindDatabase, "memory.store", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return StoreResult{}, errs.Wrap(errs.KindDatabase, "memory.store", err)
	}
	if affected == 0 {
		var existingID string
		err := s.db.GetContext(ctx, &existingID,
			"SELECT id FROM observations WHERE content_hash = ? AND session_id = ?",
			hash, req.Meta.SessionID)
		if err != nil {
			return StoreResult{}, errs.Wrap(errs.KindDatabase, "memory.store", err)
		}
		return StoreResult{ID: existingID, Deduplicated: true}, nil
	}

	s.indexObservation(ctx, obs)
	return StoreResult{ID: obs.ID}, nil
}

// indexObservation mirrors a new observation into the vector store. Failure
// is non-fatal: the observation stays queryable by id and timeline.
func (s *Store) indexObservation(ctx context.Context, obs Observation) {
	if s.embedder == nil || s.vectors == nil {
		return
	}
	vecs, err := s.embedder.Embed(ctx, []string{obs.Content})
	if err != nil || len(vecs) != 1 {
		s.log.Warn("embed observation failed", "id", obs.ID, "error", err)
		return
	}
	ids, err := s.vectors.InsertVectors(ctx, s.collection, vecs, []provider.Metadata{{
		FilePath: obs.Meta.FilePath,
		Content:  obs.Content,
		Language: string(obs.Type),
	}})
	if err != nil || len(ids) != 1 {
		s.log.Warn("insert observation vector failed", "id", obs.ID, "error", err)
		return
	}
	if _, err := s.db.ExecContext(ctx,
		"UPDATE observations SET vector_id = ? WHERE id = ?", ids[0], obs.ID); err != nil {
		s.log.Warn("record vector id failed", "id", obs.ID, "error", err)
	}
	if s.engine != nil {
		s.engine.Sparse(s.collection).Add(ids[0], obs.Content)
	}
}

// Get returns one observation by id.
func (s *Store) Get(ctx context.Context, id string) (Observation, error) {
	var row obsRow
	err := s.db.GetContext(ctx, &row, selectObs+" WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return Observation{}, errs.NotFound("observation", id)
	}
	if err != nil {
		return Observation{}, errs.Wrap(errs.KindDatabase, "memory.get", err)
	}
	return row.observation()
}

// Filter restricts search and timeline results. Zero fields match everything.
type Filter struct {
	SessionID string
	RepoID    string
	Branch    string
	Type      ObservationType
	Tag       string
}

// where renders the filter as SQL conjuncts.
func (f *Filter) where() (string, []any) {
	if f == nil {
		return "", nil
	}
	var conds []string
	var args []any
	if f.SessionID != "" {
		conds = append(conds, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.RepoID != "" {
		conds = append(conds, "repo_id = ?")
		args = append(args, f.RepoID)
	}
	if f.Branch != "" {
		conds = append(conds, "branch = ?")
		args = append(args, f.Branch)
	}
	if f.Type != "" {
		conds = append(conds, "observation_type = ?")
		args = append(args, string(f.Type))
	}
	if f.Tag != "" {
		// Tags are stored as a JSON array of strings.
		conds = append(conds, "tags LIKE ?")
		args = append(args, `%"`+f.Tag+`"%`)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return strings.Join(conds, " AND "), args
}

// Matches reports whether the observation satisfies the filter.
func (f *Filter) Matches(o Observation) bool {
	if f == nil {
		return true
	}
	if f.SessionID != "" && o.Meta.SessionID != f.SessionID {
		return false
	}
	if f.RepoID != "" && o.Meta.RepoID != f.RepoID {
		return false
	}
	if f.Branch != "" && o.Meta.Branch != f.Branch {
		return false
	}
	if f.Type != "" && o.Type != f.Type {
		return false
	}
	if f.Tag != "" {
		found := false
		for _, t := range o.Tags {
			if t == f.Tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ScoredObservation pairs an observation with its search score.
type ScoredObservation struct {
	Observation
	Score float64 `json:"score"`
}

// Search ranks observations against the query through the hybrid engine,
// then applies the filter.
func (s *Store) Search(ctx context.Context, query string, filter *Filter, limit int) ([]ScoredObservation, error) {
	if s.engine == nil {
		return nil, errs.E(errs.KindConfig, "memory.search", "no search engine configured")
	}
	if limit <= 0 {
		return []ScoredObservation{}, nil
	}

	// Over-fetch so post-filtering can still fill the page.
	results, err := s.engine.Search(ctx, s.collection, query, limit*3)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	out := make([]ScoredObservation, 0, limit)
	for _, r := range results {
		var row obsRow
		err := s.db.GetContext(ctx, &row, selectObs+" WHERE vector_id = ?", r.ID)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, errs.Wrap(errs.KindDatabase, "memory.search", err)
		}
		obs, err := row.observation()
		if err != nil {
			return nil, err
		}
		if !filter.Matches(obs) {
			continue
		}
		out = append(out, ScoredObservation{Observation: obs, Score: r.Score})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Sweep deletes observations older than the retention window and removes
// their vectors. Returns the number of deleted observations.
func (s *Store) Sweep(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := s.now().Add(-retention).Unix()

	var vectorIDs []string
	err := s.db.SelectContext(ctx, &vectorIDs,
		"SELECT vector_id FROM observations WHERE created_at < ? AND vector_id != ''", cutoff)
	if err != nil {
		return 0, errs.Wrap(errs.KindDatabase, "memory.sweep", err)
	}
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM observations WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, errs.Wrap(errs.KindDatabase, "memory.sweep", err)
	}
	deleted, _ := res.RowsAffected()

	if len(vectorIDs) > 0 && s.vectors != nil {
		if err := s.vectors.DeleteVectors(ctx, s.collection, vectorIDs); err != nil {
			s.log.Warn("delete swept vectors failed", "count", len(vectorIDs), "error", err)
		}
		if s.engine != nil {
			sparse := s.engine.Sparse(s.collection)
			for _, id := range vectorIDs {
				sparse.Remove(id)
			}
		}
	}
	return int(deleted), nil
}

// Close releases the store's own handle; a shared handle stays open for its
// owner to close.
func (s *Store) Close() error {
	if s.owned != nil {
		return s.owned.Close()
	}
	return nil
}

const selectObs = `
	SELECT id, content, observation_type, tags, content_hash,
	       session_id, repo_id, file_path, branch, commit_sha, created_at
	FROM observations`

type obsRow struct {
	ID          string `db:"id"`
	Content     string `db:"content"`
	Type        string `db:"observation_type"`
	Tags        string `db:"tags"`
	ContentHash string `db:"content_hash"`
	SessionID   string `db:"session_id"`
	RepoID      string `db:"repo_id"`
	FilePath    string `db:"file_path"`
	Branch      string `db:"branch"`
	CommitSHA   string `db:"commit_sha"`
	CreatedAt   int64  `db:"created_at"`
}

func (r obsRow) observation() (Observation, error) {
	var tags []string
	if err := json.Unmarshal([]byte(r.Tags), &tags); err != nil {
		return Observation{}, fmt.Errorf("decode tags for %s: %w", r.ID, err)
	}
	return Observation{
		ID:          r.ID,
		Content:     r.Content,
		Type:        ObservationType(r.Type),
		Tags:        tags,
		ContentHash: r.ContentHash,
		Meta: Meta{
			SessionID: r.SessionID,
			RepoID:    r.RepoID,
			FilePath:  r.FilePath,
			Branch:    r.Branch,
			Commit:    r.CommitSHA,
		},
		CreatedAt: r.CreatedAt,
	}, nil
}

// dedupTags drops duplicate tags, preserving first occurrence order.
func dedupTags(tags []string) []string {
	if len(tags) == 0 {
		return []string{}
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
