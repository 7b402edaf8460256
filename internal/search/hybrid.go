// Package search ranks code chunks by combining dense vector similarity with
// sparse BM25 scores.
package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"codescope/internal/common"
	"codescope/internal/errs"
	"codescope/internal/event"
	"codescope/internal/provider"
)

const (
	// candidateFactor over-fetches dense candidates before re-ranking.
	candidateFactor = 3
	// DefaultTimeout is the hard deadline for one search call.
	DefaultTimeout = 30 * time.Second

	cacheCapacity = 256
)

// Options configures an Engine.
type Options struct {
	SemanticWeight float64
	BM25Weight     float64
	MaxCandidates  int
	Timeout        time.Duration
}

type cacheKey struct {
	collection string
	query      string
	k          int
	generation uint64
}

// Engine performs hybrid retrieval over one vector store.
type Engine struct {
	embedder provider.Embedder
	store    provider.VectorStore
	opts     Options

	mu      sync.RWMutex
	sparse  map[string]*SparseIndex // per collection
	results *lru[cacheKey, []provider.SearchResult]
	log     interface {
		Warn(msg string, args ...any)
	}
}

// NewEngine creates a hybrid search engine. Weights must sum to 1; zero
// options take the standard defaults.
func NewEngine(embedder provider.Embedder, store provider.VectorStore, opts Options) *Engine {
	if opts.SemanticWeight == 0 && opts.BM25Weight == 0 {
		opts.SemanticWeight, opts.BM25Weight = 0.7, 0.3
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = 200
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Engine{
		embedder: embedder,
		store:    store,
		opts:     opts,
		sparse:   make(map[string]*SparseIndex),
		results:  newLRU[cacheKey, []provider.SearchResult](cacheCapacity),
		log:      common.Component("search"),
	}
}

// Sparse returns the collection's sparse index, creating it on first use.
func (e *Engine) Sparse(collection string) *SparseIndex {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx, ok := e.sparse[collection]
	if !ok {
		idx = NewSparseIndex()
		e.sparse[collection] = idx
	}
	return idx
}

// DropSparse discards a collection's sparse index and cached results.
func (e *Engine) DropSparse(collection string) {
	e.mu.Lock()
	delete(e.sparse, collection)
	e.mu.Unlock()
	e.results.Clear()
}

// SubscribeMaintenance invalidates caches when index maintenance events fire.
func (e *Engine) SubscribeMaintenance(bus *event.Bus) {
	handler := func(ev event.Event) {
		if ev.Collection == "" {
			e.mu.Lock()
			e.sparse = make(map[string]*SparseIndex)
			e.mu.Unlock()
			e.results.Clear()
			return
		}
		e.DropSparse(ev.Collection)
	}
	bus.Subscribe(event.TopicIndexClear, handler)
	bus.Subscribe(event.TopicIndexRebuild, handler)
	bus.Subscribe(event.TopicCacheClear, func(event.Event) { e.results.Clear() })
}

// Search returns the top k chunks for the query, ranked by the weighted
// combination of normalized dense and sparse scores.
func (e *Engine) Search(ctx context.Context, collection, query string, k int) ([]provider.SearchResult, error) {
	if k <= 0 {
		return []provider.SearchResult{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	e.mu.RLock()
	sparseIdx := e.sparse[collection]
	e.mu.RUnlock()

	var gen uint64
	if sparseIdx != nil {
		gen = sparseIdx.Generation()
	}
	key := cacheKey{collection: collection, query: query, k: k, generation: gen}
	if cached, ok := e.results.Get(key); ok {
		out := make([]provider.SearchResult, len(cached))
		copy(out, cached)
		return out, nil
	}

	queryVecs, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(queryVecs) != 1 {
		return nil, errs.E(errs.KindEmbedding, "search", "embedder returned no query vector")
	}

	kDense := k * candidateFactor
	if kDense > e.opts.MaxCandidates {
		kDense = e.opts.MaxCandidates
	}
	candidates, err := e.store.SearchSimilar(ctx, collection, queryVecs[0], kDense, nil)
	if err != nil {
		if errs.IsKind(err, errs.KindNotFound) {
			return []provider.SearchResult{}, nil
		}
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(candidates) == 0 {
		return []provider.SearchResult{}, nil
	}

	dense := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		dense[c.ID] = c.Score
	}

	var sparseScores map[string]float64
	if sparseIdx != nil && sparseIdx.Len() > 0 {
		ids := make([]string, len(candidates))
		for i, c := range candidates {
			ids[i] = c.ID
		}
		sparseScores = sparseIdx.Score(query, ids)
	} else {
		e.log.Warn("sparse index unavailable, falling back to dense-only",
			"collection", collection)
	}

	denseNorm := minMaxNormalize(dense)
	combined := make([]provider.SearchResult, len(candidates))
	if sparseScores == nil {
		for i, c := range candidates {
			c.Score = denseNorm[c.ID]
			combined[i] = c
		}
	} else {
		sparseNorm := minMaxNormalize(sparseScores)
		for i, c := range candidates {
			c.Score = e.opts.SemanticWeight*denseNorm[c.ID] + e.opts.BM25Weight*sparseNorm[c.ID]
			combined[i] = c
		}
	}

	provider.SortResults(combined)
	if len(combined) > k {
		combined = combined[:k]
	}

	stored := make([]provider.SearchResult, len(combined))
	copy(stored, combined)
	e.results.Put(key, stored)
	return combined, nil
}

// minMaxNormalize maps scores onto [0,1] over the candidate set. A constant
// stream normalizes to 1 so it neither dominates nor vanishes.
func minMaxNormalize(scores map[string]float64) map[string]float64 {
	if len(scores) == 0 {
		return scores
	}
	first := true
	var lo, hi float64
	for _, s := range scores {
		if first {
			lo, hi = s, s
			first = false
			continue
		}
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	out := make(map[string]float64, len(scores))
	if hi == lo {
		for id := range scores {
			out[id] = 1
		}
		return out
	}
	for id, s := range scores {
		out[id] = (s - lo) / (hi - lo)
	}
	return out
}
