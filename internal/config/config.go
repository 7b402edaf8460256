// Package config loads and validates the core settings record.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the validated configuration record. It is the sole input at the
// core boundary; environment overrides are not supported here.
type Settings struct {
	// Provider selection
	EmbeddingProvider string `yaml:"embedding_provider"`
	VectorProvider    string `yaml:"vector_provider"`
	DatabasePath      string `yaml:"database_path"`

	// Embedding
	OllamaURL      string `yaml:"ollama_url"`
	OpenAIKey      string `yaml:"openai_key"`
	EmbeddingModel string `yaml:"embedding_model"`
	Dimensions     int    `yaml:"dimensions"`

	// Indexing
	Workers             int           `yaml:"workers"`
	EmbedBatchSize      int           `yaml:"embed_batch_size"`
	InsertBatchSize     int           `yaml:"insert_batch_size"`
	MaxFileSize         int64         `yaml:"max_file_size"`
	SupportedExtensions []string      `yaml:"supported_extensions"`
	ExcludePatterns     []string      `yaml:"exclude_patterns"`
	MaxRetries          int           `yaml:"max_retries"`
	RetryDelay          time.Duration `yaml:"retry_delay"`

	// Search
	SemanticWeight float64       `yaml:"semantic_weight"`
	BM25Weight     float64       `yaml:"bm25_weight"`
	MaxCandidates  int           `yaml:"max_candidates"`
	SearchTimeout  time.Duration `yaml:"search_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Resource limits (semaphore widths per operation class)
	SearchPermits int `yaml:"search_permits"`
	IndexPermits  int `yaml:"index_permits"`
	EmbedPermits  int `yaml:"embed_permits"`

	// Memory
	RetentionDays int `yaml:"retention_days"`
}

// document is the YAML root. Only `settings:` is accepted.
type document struct {
	Settings *Settings `yaml:"settings"`
}

// Load reads and validates the YAML config file at path.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a config document. Unknown keys at any level are rejected.
func Parse(data []byte) (*Settings, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if doc.Settings == nil {
		return nil, fmt.Errorf("parse config: missing settings block")
	}
	s := doc.Settings
	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) applyDefaults() {
	if s.EmbeddingProvider == "" {
		s.EmbeddingProvider = "ollama"
	}
	if s.VectorProvider == "" {
		s.VectorProvider = "sqlite-vec"
	}
	if s.OllamaURL == "" {
		s.OllamaURL = "http://localhost:11434"
	}
	if s.EmbeddingModel == "" {
		s.EmbeddingModel = "nomic-embed-text"
	}
	if s.Dimensions == 0 {
		s.Dimensions = 768
	}
	if s.Workers == 0 {
		s.Workers = 4
	}
	if s.EmbedBatchSize == 0 {
		s.EmbedBatchSize = 32
	}
	if s.InsertBatchSize == 0 {
		s.InsertBatchSize = 128
	}
	if s.MaxFileSize == 0 {
		s.MaxFileSize = 1 << 20
	}
	if s.MaxRetries == 0 {
		s.MaxRetries = 3
	}
	if s.RetryDelay == 0 {
		s.RetryDelay = 500 * time.Millisecond
	}
	if s.SemanticWeight == 0 && s.BM25Weight == 0 {
		s.SemanticWeight = 0.7
		s.BM25Weight = 0.3
	}
	if s.MaxCandidates == 0 {
		s.MaxCandidates = 200
	}
	if s.SearchTimeout == 0 {
		s.SearchTimeout = 30 * time.Second
	}
	if s.RequestTimeout == 0 {
		s.RequestTimeout = 120 * time.Second
	}
	if s.SearchPermits == 0 {
		s.SearchPermits = 8
	}
	if s.IndexPermits == 0 {
		s.IndexPermits = 2
	}
	if s.EmbedPermits == 0 {
		s.EmbedPermits = 4
	}
	if s.RetentionDays == 0 {
		s.RetentionDays = 90
	}
}

// Validate checks ranges and cross-field constraints.
func (s *Settings) Validate() error {
	if s.DatabasePath == "" {
		return fmt.Errorf("config: database_path is required")
	}
	if s.Dimensions < 1 || s.Dimensions > 8192 {
		return fmt.Errorf("config: dimensions must be 1-8192, got %d", s.Dimensions)
	}
	if s.Workers < 1 || s.Workers > 128 {
		return fmt.Errorf("config: workers must be 1-128, got %d", s.Workers)
	}
	if s.MaxRetries < 1 || s.MaxRetries > 10 {
		return fmt.Errorf("config: max_retries must be 1-10, got %d", s.MaxRetries)
	}
	if s.SemanticWeight < 0 || s.BM25Weight < 0 {
		return fmt.Errorf("config: search weights must be non-negative")
	}
	sum := s.SemanticWeight + s.BM25Weight
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("config: semantic_weight + bm25_weight must equal 1, got %g", sum)
	}
	switch s.EmbeddingProvider {
	case "ollama", "openai", "static":
	default:
		return fmt.Errorf("config: unknown embedding_provider %q", s.EmbeddingProvider)
	}
	switch s.VectorProvider {
	case "sqlite-vec", "memory":
	default:
		return fmt.Errorf("config: unknown vector_provider %q", s.VectorProvider)
	}
	if s.EmbeddingProvider == "openai" && s.OpenAIKey == "" {
		return fmt.Errorf("config: openai_key is required for the openai provider")
	}
	return nil
}
