package memvec

import (
	"context"
	"testing"

	"codescope/internal/errs"
	"codescope/internal/provider"
)

func TestCreateCollectionIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.CreateCollection(ctx, "main", 3); err != nil {
		t.Fatalf("CreateCollection() error = %v", err)
	}
	if err := s.CreateCollection(ctx, "main", 3); err != nil {
		t.Errorf("re-create with matching dimensions should succeed, got %v", err)
	}
	if err := s.CreateCollection(ctx, "main", 4); err == nil {
		t.Error("re-create with different dimensions should fail")
	}
}

func TestInsertDimensionValidation(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.CreateCollection(ctx, "main", 3); err != nil {
		t.Fatal(err)
	}

	_, err := s.InsertVectors(ctx, "main",
		[][]float32{{1, 2}}, []provider.Metadata{{FilePath: "a.go"}})
	if !errs.IsKind(err, errs.KindInvalidArgument) {
		t.Errorf("short vector insert error = %v, want invalid_argument", err)
	}

	_, err = s.InsertVectors(ctx, "main",
		[][]float32{{1, 2, 3}}, []provider.Metadata{})
	if !errs.IsKind(err, errs.KindInvalidArgument) {
		t.Errorf("mismatched lengths error = %v, want invalid_argument", err)
	}
}

func TestInsertEmptyIsNoOp(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.CreateCollection(ctx, "main", 3); err != nil {
		t.Fatal(err)
	}
	ids, err := s.InsertVectors(ctx, "main", nil, nil)
	if err != nil {
		t.Fatalf("empty insert error = %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("empty insert returned %d ids, want 0", len(ids))
	}
}

func TestSearchOrderingAndLimit(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.CreateCollection(ctx, "main", 2); err != nil {
		t.Fatal(err)
	}
	_, err := s.InsertVectors(ctx, "main",
		[][]float32{{1, 0}, {0, 1}, {0.9, 0.1}},
		[]provider.Metadata{
			{FilePath: "near.go", StartLine: 1, Content: "near"},
			{FilePath: "far.go", StartLine: 1, Content: "far"},
			{FilePath: "mid.go", StartLine: 1, Content: "mid"},
		})
	if err != nil {
		t.Fatal(err)
	}

	results, err := s.SearchSimilar(ctx, "main", []float32{1, 0}, 2, nil)
	if err != nil {
		t.Fatalf("SearchSimilar() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].FilePath != "near.go" || results[1].FilePath != "mid.go" {
		t.Errorf("order = [%s %s], want [near.go mid.go]", results[0].FilePath, results[1].FilePath)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Error("scores must be non-increasing")
		}
	}
	for _, r := range results {
		if r.Score < 0 || r.Score > 1 {
			t.Errorf("score %g outside [0,1]", r.Score)
		}
	}
}

func TestSearchZeroLimit(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.CreateCollection(ctx, "main", 2); err != nil {
		t.Fatal(err)
	}
	results, err := s.SearchSimilar(ctx, "main", []float32{1, 0}, 0, nil)
	if err != nil {
		t.Fatalf("SearchSimilar() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("limit 0 returned %d results, want 0", len(results))
	}
}

func TestSearchFilter(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.CreateCollection(ctx, "main", 2); err != nil {
		t.Fatal(err)
	}
	_, err := s.InsertVectors(ctx, "main",
		[][]float32{{1, 0}, {1, 0}},
		[]provider.Metadata{
			{FilePath: "internal/a.go", Language: "go"},
			{FilePath: "web/b.ts", Language: "typescript"},
		})
	if err != nil {
		t.Fatal(err)
	}
	results, err := s.SearchSimilar(ctx, "main", []float32{1, 0}, 10,
		&provider.Filter{FilePathPrefix: "internal/"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].FilePath != "internal/a.go" {
		t.Errorf("filtered results = %+v", results)
	}
}

func TestDeleteAndStats(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.CreateCollection(ctx, "main", 2); err != nil {
		t.Fatal(err)
	}
	ids, err := s.InsertVectors(ctx, "main",
		[][]float32{{1, 0}, {0, 1}},
		[]provider.Metadata{{FilePath: "a.go"}, {FilePath: "b.go"}})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteVectors(ctx, "main", ids[:1]); err != nil {
		t.Fatalf("DeleteVectors() error = %v", err)
	}
	stats, err := s.GetStats(ctx, "main")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Vectors != 1 {
		t.Errorf("Vectors = %d, want 1", stats.Vectors)
	}
}
