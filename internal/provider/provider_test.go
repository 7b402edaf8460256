package provider

import (
	"testing"

	"codescope/internal/errs"
)

func TestSortResults(t *testing.T) {
	results := []SearchResult{
		{ID: "1", FilePath: "b.go", StartLine: 10, Score: 0.5},
		{ID: "2", FilePath: "a.go", StartLine: 3, Score: 0.9},
		{ID: "3", FilePath: "b.go", StartLine: 2, Score: 0.5},
		{ID: "4", FilePath: "a.go", StartLine: 2, Score: 0.5},
	}
	SortResults(results)

	wantOrder := []string{"2", "4", "3", "1"}
	for i, want := range wantOrder {
		if results[i].ID != want {
			t.Errorf("results[%d].ID = %s, want %s", i, results[i].ID, want)
		}
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Error("scores must be monotonically non-increasing")
		}
	}
}

func TestFilterMatches(t *testing.T) {
	m := Metadata{FilePath: "internal/index/indexer.go", Language: "go"}
	tests := []struct {
		name   string
		filter *Filter
		want   bool
	}{
		{"nil filter", nil, true},
		{"prefix hit", &Filter{FilePathPrefix: "internal/"}, true},
		{"prefix miss", &Filter{FilePathPrefix: "cmd/"}, false},
		{"language hit", &Filter{Language: "go"}, true},
		{"language miss", &Filter{Language: "python"}, false},
		{"both", &Filter{FilePathPrefix: "internal/", Language: "go"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(m); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegistryUnknownProvider(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Embedder("nope"); !errs.IsKind(err, errs.KindNotFound) {
		t.Errorf("unknown embedder error = %v, want not_found", err)
	}
	if _, err := r.VectorStore("nope"); !errs.IsKind(err, errs.KindNotFound) {
		t.Errorf("unknown vector store error = %v, want not_found", err)
	}
	if _, err := r.Database("nope"); !errs.IsKind(err, errs.KindNotFound) {
		t.Errorf("unknown database error = %v, want not_found", err)
	}
}

func TestRegistryRoundTrip(t *testing.T) {
	r := NewRegistry()
	r.RegisterEmbedder("static", func() (Embedder, error) { return nil, nil })
	if _, err := r.Embedder("static"); err != nil {
		t.Errorf("Embedder() error = %v", err)
	}
	r.RegisterDatabase("sqlite", func() (Database, error) { return nil, nil })
	if _, err := r.Database("sqlite"); err != nil {
		t.Errorf("Database() error = %v", err)
	}
}
