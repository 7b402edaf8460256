package provider

import (
	"sync"

	"codescope/internal/errs"
)

// EmbedderFactory builds an embedder from the validated settings.
type EmbedderFactory func() (Embedder, error)

// VectorStoreFactory builds a vector store.
type VectorStoreFactory func() (VectorStore, error)

// DatabaseFactory builds a relational database handle.
type DatabaseFactory func() (Database, error)

// Registry maps provider names to factories. It is built once at startup from
// the validated config; downstream code holds port-shaped handles and never
// learns which variant is behind them.
type Registry struct {
	mu        sync.RWMutex
	embedders map[string]EmbedderFactory
	vectors   map[string]VectorStoreFactory
	databases map[string]DatabaseFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		embedders: make(map[string]EmbedderFactory),
		vectors:   make(map[string]VectorStoreFactory),
		databases: make(map[string]DatabaseFactory),
	}
}

// RegisterEmbedder adds an embedder factory under a name.
func (r *Registry) RegisterEmbedder(name string, f EmbedderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embedders[name] = f
}

// RegisterVectorStore adds a vector store factory under a name.
func (r *Registry) RegisterVectorStore(name string, f VectorStoreFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vectors[name] = f
}

// RegisterDatabase adds a database factory under a name.
func (r *Registry) RegisterDatabase(name string, f DatabaseFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.databases[name] = f
}

// Embedder constructs the named embedder.
func (r *Registry) Embedder(name string) (Embedder, error) {
	r.mu.RLock()
	f, ok := r.embedders[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errs.NotFound("embedding provider", name)
	}
	return f()
}

// VectorStore constructs the named vector store.
func (r *Registry) VectorStore(name string) (VectorStore, error) {
	r.mu.RLock()
	f, ok := r.vectors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errs.NotFound("vector store provider", name)
	}
	return f()
}

// Database constructs the named database.
func (r *Registry) Database(name string) (Database, error) {
	r.mu.RLock()
	f, ok := r.databases[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errs.NotFound("database provider", name)
	}
	return f()
}
