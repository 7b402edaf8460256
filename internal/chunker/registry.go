package chunker

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// LanguageSpec defines the tree-sitter grammar and query for a language.
type LanguageSpec struct {
	Language *sitter.Language
	// Query is a tree-sitter S-expression query capturing top-level
	// definitions. It must use @chunk for the outer node and @name for the
	// identifier (optional).
	Query      string
	Extensions []string
}

// Registry maps file extensions to language specs and names. Extensions
// without a grammar can still be registered as line-chunked languages.
type Registry struct {
	mu       sync.RWMutex
	specs    map[string]*LanguageSpec // extension (without dot) → spec
	names    map[string]string       // extension → language name
	fallback map[string]string       // extension → language name (line chunking only)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		specs:    make(map[string]*LanguageSpec),
		names:    make(map[string]string),
		fallback: make(map[string]string),
	}
}

// Register adds a grammar-backed language spec under the given name.
func (r *Registry) Register(name string, spec *LanguageSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range spec.Extensions {
		r.specs[ext] = spec
		r.names[ext] = name
	}
}

// RegisterFallback marks extensions as chunkable by line window without a
// grammar.
func (r *Registry) RegisterFallback(name string, extensions ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range extensions {
		if _, ok := r.specs[ext]; !ok {
			r.fallback[ext] = name
		}
	}
}

// Lookup returns the grammar spec for a file path, or nil when the extension
// has no grammar. The language name is returned for grammar and fallback
// extensions alike; unsupported extensions yield "".
func (r *Registry) Lookup(path string) (spec *LanguageSpec, lang string) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.specs[ext]; ok {
		return s, r.names[ext]
	}
	if name, ok := r.fallback[ext]; ok {
		return nil, name
	}
	return nil, ""
}

// LanguageName returns the classified language for a path. Extensions that
// are registered neither way report "unknown".
func (r *Registry) LanguageName(path string) string {
	_, lang := r.Lookup(path)
	if lang == "" {
		return "unknown"
	}
	return lang
}

// Supported reports whether the path's extension is chunkable at all.
func (r *Registry) Supported(path string) bool {
	_, lang := r.Lookup(path)
	return lang != ""
}

// Extensions returns the set of all registered extensions (without dot).
func (r *Registry) Extensions() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make(map[string]bool, len(r.specs)+len(r.fallback))
	for ext := range r.specs {
		exts[ext] = true
	}
	for ext := range r.fallback {
		exts[ext] = true
	}
	return exts
}
