package config

import (
	"strings"
	"testing"
)

const minimal = `
settings:
  database_path: /tmp/codescope.db
`

func TestParseDefaults(t *testing.T) {
	s, err := Parse([]byte(minimal))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if s.EmbeddingProvider != "ollama" {
		t.Errorf("EmbeddingProvider = %q, want ollama", s.EmbeddingProvider)
	}
	if s.Dimensions != 768 {
		t.Errorf("Dimensions = %d, want 768", s.Dimensions)
	}
	if s.SemanticWeight+s.BM25Weight != 1.0 {
		t.Errorf("weights sum = %g, want 1", s.SemanticWeight+s.BM25Weight)
	}
	if s.EmbedBatchSize != 32 {
		t.Errorf("EmbedBatchSize = %d, want 32", s.EmbedBatchSize)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	doc := `
settings:
  database_path: /tmp/x.db
  not_a_real_key: true
`
	if _, err := Parse([]byte(doc)); err == nil {
		t.Fatal("Parse() should reject unknown keys")
	}
}

func TestParseRejectsUnknownTopLevel(t *testing.T) {
	doc := `
settings:
  database_path: /tmp/x.db
extra: {}
`
	if _, err := Parse([]byte(doc)); err == nil {
		t.Fatal("Parse() should reject unknown top-level keys")
	}
}

func TestParseMissingSettings(t *testing.T) {
	if _, err := Parse([]byte("{}")); err == nil {
		t.Fatal("Parse() should require a settings block")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{"missing db path", func(s *Settings) { s.DatabasePath = "" }, "database_path"},
		{"bad dimensions", func(s *Settings) { s.Dimensions = 0 }, "dimensions"},
		{"weights not normalized", func(s *Settings) { s.SemanticWeight = 0.5; s.BM25Weight = 0.2 }, "must equal 1"},
		{"unknown provider", func(s *Settings) { s.EmbeddingProvider = "cohere" }, "embedding_provider"},
		{"openai without key", func(s *Settings) { s.EmbeddingProvider = "openai"; s.OpenAIKey = "" }, "openai_key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse([]byte(minimal))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			tt.mutate(s)
			err = s.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
