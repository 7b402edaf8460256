// Package memvec is an in-memory VectorStore used for tests and as a
// lightweight fallback provider.
package memvec

import (
	"context"
	"math"
	"strconv"
	"sync"

	"codescope/internal/errs"
	"codescope/internal/provider"
)

type collection struct {
	dimensions int
	nextID     int64
	vectors    map[string][]float32
	meta       map[string]provider.Metadata
}

// Store keeps collections entirely in process memory.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// New creates an empty store.
func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) CreateCollection(ctx context.Context, name string, dimensions int) error {
	if dimensions < 1 {
		return errs.Invalid("dimensions", "must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		if c.dimensions != dimensions {
			return errs.E(errs.KindVectorDB, "create_collection",
				"collection exists with dimensions "+strconv.Itoa(c.dimensions))
		}
		return nil
	}
	s.collections[name] = &collection{
		dimensions: dimensions,
		vectors:    make(map[string][]float32),
		meta:       make(map[string]provider.Metadata),
	}
	return nil
}

func (s *Store) InsertVectors(ctx context.Context, name string, vectors [][]float32, meta []provider.Metadata) ([]string, error) {
	if len(vectors) != len(meta) {
		return nil, errs.Invalid("vectors", "vectors and metadata length mismatch")
	}
	if len(vectors) == 0 {
		return []string{}, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, errs.NotFound("collection", name)
	}
	for _, v := range vectors {
		if len(v) != c.dimensions {
			// Invalid argument, not a store fault: the indexer treats it as
			// fatal and aborts the whole run.
			return nil, errs.E(errs.KindInvalidArgument, "insert_vectors",
				"dimension mismatch: got "+strconv.Itoa(len(v))+", want "+strconv.Itoa(c.dimensions))
		}
	}
	for _, m := range meta {
		if len(m.Content) > provider.MaxContentLen {
			return nil, errs.Invalid("content", "exceeds varchar limit")
		}
	}
	ids := make([]string, len(vectors))
	for i, v := range vectors {
		c.nextID++
		id := strconv.FormatInt(c.nextID, 10)
		vc := make([]float32, len(v))
		copy(vc, v)
		c.vectors[id] = vc
		c.meta[id] = meta[i]
		ids[i] = id
	}
	return ids, nil
}

func (s *Store) SearchSimilar(ctx context.Context, name string, query []float32, limit int, filter *provider.Filter) ([]provider.SearchResult, error) {
	if limit <= 0 {
		return []provider.SearchResult{}, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, errs.NotFound("collection", name)
	}
	if len(query) != c.dimensions {
		return nil, errs.E(errs.KindVectorDB, "search_similar", "query dimension mismatch")
	}
	var results []provider.SearchResult
	for id, v := range c.vectors {
		m := c.meta[id]
		if !filter.Matches(m) {
			continue
		}
		d := l2(query, v)
		results = append(results, provider.SearchResult{
			ID:        id,
			FilePath:  m.FilePath,
			StartLine: m.StartLine,
			Content:   m.Content,
			Language:  m.Language,
			Score:     similarity(d),
		})
	}
	provider.SortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *Store) DeleteVectors(ctx context.Context, name string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return errs.NotFound("collection", name)
	}
	for _, id := range ids {
		delete(c.vectors, id)
		delete(c.meta, id)
	}
	return nil
}

func (s *Store) ListVectors(ctx context.Context, name string, limit int) ([]provider.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, errs.NotFound("collection", name)
	}
	if limit <= 0 {
		limit = len(c.meta)
	}
	results := make([]provider.SearchResult, 0, limit)
	for id, m := range c.meta {
		if len(results) >= limit {
			break
		}
		results = append(results, provider.SearchResult{
			ID:        id,
			FilePath:  m.FilePath,
			StartLine: m.StartLine,
			Content:   m.Content,
			Language:  m.Language,
		})
	}
	return results, nil
}

func (s *Store) GetStats(ctx context.Context, name string) (provider.CollectionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return provider.CollectionStats{}, errs.NotFound("collection", name)
	}
	return provider.CollectionStats{
		Name:       name,
		Dimensions: c.dimensions,
		Vectors:    int64(len(c.vectors)),
	}, nil
}

func (s *Store) DropCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

func (s *Store) Flush(ctx context.Context, name string) error { return nil }

func (s *Store) HealthCheck(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func l2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// similarity maps an L2 distance into (0,1]. Only monotonicity is part of
// the port contract.
func similarity(distance float64) float64 {
	return 1 / (1 + distance)
}

var _ provider.VectorStore = (*Store)(nil)
