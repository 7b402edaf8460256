// Package index orchestrates the ingest path: walk a directory, chunk the
// files, embed the chunks, and insert vectors plus metadata into a
// collection. Re-index runs skip files whose content hash is unchanged.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"codescope/internal/chunker"
	"codescope/internal/common"
	"codescope/internal/errs"
	"codescope/internal/limiter"
	"codescope/internal/ops"
	"codescope/internal/provider"
	"codescope/internal/search"
)

const metaEmbeddingModel = "embedding_model"

// Options tunes the indexing pipeline. Zero values take defaults.
type Options struct {
	Workers         int
	EmbedBatchSize  int
	InsertBatchSize int
	MaxFileSize     int64
	ExcludePatterns []string
	MaxRetries      int
	RetryDelay      time.Duration
}

// Deps are the ports the indexer drives. Engine and Limiter are optional:
// without an engine the sparse index is not fed, without a limiter embedding
// batches run ungated.
type Deps struct {
	Embedder provider.Embedder
	Store    provider.VectorStore
	Registry *chunker.Registry
	Catalog  *Catalog
	Tracker  *ops.Tracker
	Engine   *search.Engine
	Limiter  *limiter.Limiter
}

// Indexer is the public API for building and maintaining collections.
type Indexer struct {
	embedder provider.Embedder
	store    provider.VectorStore
	registry *chunker.Registry
	chunk    *chunker.Chunker
	catalog  *Catalog
	tracker  *ops.Tracker
	engine   *search.Engine
	limits   *limiter.Limiter
	opts     Options
	log      *slog.Logger
}

// New creates an indexer over the given ports.
func New(deps Deps, opts Options) (*Indexer, error) {
	switch {
	case deps.Embedder == nil:
		return nil, errs.E(errs.KindConfig, "index", "embedder is required")
	case deps.Store == nil:
		return nil, errs.E(errs.KindConfig, "index", "vector store is required")
	case deps.Registry == nil:
		return nil, errs.E(errs.KindConfig, "index", "chunker registry is required")
	case deps.Catalog == nil:
		return nil, errs.E(errs.KindConfig, "index", "catalog is required")
	case deps.Tracker == nil:
		return nil, errs.E(errs.KindConfig, "index", "operation tracker is required")
	}
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = 32
	}
	if opts.InsertBatchSize <= 0 {
		opts.InsertBatchSize = 100
	}
	return &Indexer{
		embedder: deps.Embedder,
		store:    deps.Store,
		registry: deps.Registry,
		chunk:    chunker.New(deps.Registry, opts.MaxFileSize),
		catalog:  deps.Catalog,
		tracker:  deps.Tracker,
		engine:   deps.Engine,
		limits:   deps.Limiter,
		opts:     opts,
		log:      common.Component("index"),
	}, nil
}

// IndexDirectory walks root and indexes every supported file into the
// collection. At most one indexing operation runs per collection; a second
// call while one is active is rejected with a resource-exhausted error.
func (idx *Indexer) IndexDirectory(ctx context.Context, root, collection string) (*Stats, error) {
	// The tracker registration doubles as the per-collection lock, so the
	// check and the claim are a single atomic step.
	opID, ok := idx.tracker.StartIfNotRunning(ops.KindIndexing, collection, 0)
	if !ok {
		return nil, errs.E(errs.KindResourceExhausted, "index",
			fmt.Sprintf("indexing already running for collection %q", collection))
	}

	// A model change invalidates every stored vector, so rebuild from scratch.
	lastModel, err := idx.catalog.Meta(ctx, collection, metaEmbeddingModel)
	if err != nil {
		idx.tracker.Fail(opID, err.Error())
		return nil, fmt.Errorf("read collection meta: %w", err)
	}
	if lastModel != "" && lastModel != idx.embedder.Model() {
		idx.log.Info("embedding model changed, rebuilding collection",
			"collection", collection, "from", lastModel, "to", idx.embedder.Model())
		if err := idx.ClearCollection(ctx, collection); err != nil {
			idx.tracker.Fail(opID, err.Error())
			return nil, fmt.Errorf("clear collection for rebuild: %w", err)
		}
	}

	if err := idx.store.CreateCollection(ctx, collection, idx.embedder.Dimensions()); err != nil {
		idx.tracker.Fail(opID, err.Error())
		return nil, fmt.Errorf("create collection: %w", err)
	}

	stats, err := idx.runPipeline(ctx, root, collection, opID)
	if stats != nil {
		stats.OperationID = opID
	}
	if err != nil {
		idx.tracker.Fail(opID, err.Error())
		return stats, err
	}

	if err := idx.catalog.SetMeta(ctx, collection, metaEmbeddingModel, idx.embedder.Model()); err != nil {
		idx.tracker.Fail(opID, err.Error())
		return stats, fmt.Errorf("record embedding model: %w", err)
	}
	if err := idx.store.Flush(ctx, collection); err != nil {
		idx.log.Warn("flush after indexing failed", "collection", collection, "error", err)
	}
	idx.tracker.Complete(opID)
	return stats, nil
}

// ClearCollection drops the collection's vectors, catalog entries, and sparse
// index.
func (idx *Indexer) ClearCollection(ctx context.Context, collection string) error {
	if err := idx.store.DropCollection(ctx, collection); err != nil && !errs.IsKind(err, errs.KindNotFound) {
		return fmt.Errorf("drop collection: %w", err)
	}
	if err := idx.catalog.DeleteCollection(ctx, collection); err != nil {
		return fmt.Errorf("delete catalog entries: %w", err)
	}
	if idx.engine != nil {
		idx.engine.DropSparse(collection)
	}
	return nil
}

// RebuildSparse reloads the collection's sparse term index from stored
// metadata. Used after process restart, when vectors are persisted but the
// in-memory BM25 index is empty.
func (idx *Indexer) RebuildSparse(ctx context.Context, collection string) error {
	if idx.engine == nil {
		return nil
	}
	stats, err := idx.store.GetStats(ctx, collection)
	if err != nil {
		return fmt.Errorf("collection stats: %w", err)
	}
	results, err := idx.store.ListVectors(ctx, collection, int(stats.Vectors))
	if err != nil {
		return fmt.Errorf("list vectors: %w", err)
	}
	sparse := idx.engine.Sparse(collection)
	for _, r := range results {
		sparse.Add(r.ID, r.Content)
	}
	idx.log.Info("sparse index rebuilt", "collection", collection, "documents", len(results))
	return nil
}

// Status returns a snapshot of the tracked operation.
func (idx *Indexer) Status(operationID string) (ops.Operation, bool) {
	return idx.tracker.Get(operationID)
}
