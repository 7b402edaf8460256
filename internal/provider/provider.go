// Package provider defines the abstract ports the core depends on. Concrete
// providers (ollama, openai, sqlitevec, memvec) live in subpackages and are
// selected at startup through the Registry.
package provider

import (
	"context"
	"sort"

	"github.com/jmoiron/sqlx"
)

// MaxContentLen bounds chunk content persisted to a vector store, matching
// the provider varchar limit.
const MaxContentLen = 65535

// Embedder converts text batches into fixed-dimension vectors.
type Embedder interface {
	// Embed returns one vector per input text, in input order. Retriable
	// failures (rate limits, transient transport errors) are marked via
	// errs.IsRetriable; everything else is fatal.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Dimensions() int
}

// Metadata is the payload stored alongside each vector.
type Metadata struct {
	FilePath  string `json:"file_path"`
	StartLine int    `json:"start_line"`
	Content   string `json:"content"`
	Language  string `json:"language"`
}

// SearchResult is a scored match from a vector store. Score is a similarity
// in [0,1]; the mapping from raw distance is monotone but otherwise
// unspecified, so callers must only rely on ordering.
type SearchResult struct {
	ID        string  `json:"id"`
	FilePath  string  `json:"file_path"`
	StartLine int     `json:"start_line"`
	Content   string  `json:"content"`
	Language  string  `json:"language"`
	Score     float64 `json:"score"`
}

// Filter restricts a similarity search.
type Filter struct {
	// FilePathPrefix keeps only results whose path starts with the prefix.
	FilePathPrefix string
	// Language keeps only results in the given language.
	Language string
}

// Matches reports whether the metadata satisfies the filter.
func (f *Filter) Matches(m Metadata) bool {
	if f == nil {
		return true
	}
	if f.FilePathPrefix != "" && !hasPrefix(m.FilePath, f.FilePathPrefix) {
		return false
	}
	if f.Language != "" && m.Language != f.Language {
		return false
	}
	return true
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// CollectionStats summarizes one collection.
type CollectionStats struct {
	Name       string `json:"name"`
	Dimensions int    `json:"dimensions"`
	Vectors    int64  `json:"vectors"`
}

// VectorStore is the persistence port for embeddings and their metadata.
type VectorStore interface {
	// CreateCollection is idempotent when the collection already exists
	// with matching dimensions and fails otherwise.
	CreateCollection(ctx context.Context, name string, dimensions int) error
	// InsertVectors validates that vectors and metadata have equal length
	// and that every vector matches the collection dimensions.
	InsertVectors(ctx context.Context, name string, vectors [][]float32, meta []Metadata) ([]string, error)
	SearchSimilar(ctx context.Context, name string, query []float32, limit int, filter *Filter) ([]SearchResult, error)
	DeleteVectors(ctx context.Context, name string, ids []string) error
	// ListVectors pages through stored metadata. Implementations return a
	// partial page rather than failing on transport size limits.
	ListVectors(ctx context.Context, name string, limit int) ([]SearchResult, error)
	GetStats(ctx context.Context, name string) (CollectionStats, error)
	DropCollection(ctx context.Context, name string) error
	Flush(ctx context.Context, name string) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// Database is the relational port backing the memory and project stores.
// Implementations hand out a shared sqlx handle; schema setup and queries
// stay with the stores that run on it.
type Database interface {
	DB() *sqlx.DB
	HealthCheck(ctx context.Context) error
	Close() error
}

// SortResults orders results by descending score, breaking ties by lower
// start line and then file path. Shared by every store and the hybrid ranker
// so ordering is identical across providers.
func SortResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].StartLine != results[j].StartLine {
			return results[i].StartLine < results[j].StartLine
		}
		return results[i].FilePath < results[j].FilePath
	})
}
