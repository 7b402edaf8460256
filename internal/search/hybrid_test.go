package search

import (
	"context"
	"testing"

	"codescope/internal/event"
	"codescope/internal/provider"
	"codescope/internal/provider/memvec"
	"codescope/internal/provider/static"
)

const dims = 64

func seedEngine(t *testing.T, weights [2]float64) (*Engine, *memvec.Store) {
	t.Helper()
	emb := static.New(dims)
	store := memvec.New()
	ctx := context.Background()
	if err := store.CreateCollection(ctx, "main", dims); err != nil {
		t.Fatal(err)
	}

	contents := []string{
		"fn authenticate(user)",
		"fn parse_json(bytes)",
	}
	vecs, err := emb.Embed(ctx, contents)
	if err != nil {
		t.Fatal(err)
	}
	meta := []provider.Metadata{
		{FilePath: "auth.rs", StartLine: 1, Content: contents[0], Language: "rust"},
		{FilePath: "json.rs", StartLine: 1, Content: contents[1], Language: "rust"},
	}
	ids, err := store.InsertVectors(ctx, "main", vecs, meta)
	if err != nil {
		t.Fatal(err)
	}

	eng := NewEngine(emb, store, Options{
		SemanticWeight: weights[0],
		BM25Weight:     weights[1],
	})
	sparse := eng.Sparse("main")
	for i, id := range ids {
		sparse.Add(id, contents[i])
	}
	return eng, store
}

func TestHybridRankingFollowsQuery(t *testing.T) {
	eng, _ := seedEngine(t, [2]float64{0.7, 0.3})
	ctx := context.Background()

	results, err := eng.Search(ctx, "main", "auth handler", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].FilePath != "auth.rs" {
		t.Errorf("top result = %s, want auth.rs", results[0].FilePath)
	}

	results, err = eng.Search(ctx, "main", "json bytes", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if results[0].FilePath != "json.rs" {
		t.Errorf("top result = %s, want json.rs", results[0].FilePath)
	}
}

func TestScoresMonotoneAndBounded(t *testing.T) {
	eng, _ := seedEngine(t, [2]float64{0.7, 0.3})
	results, err := eng.Search(context.Background(), "main", "auth handler", 10)
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range results {
		if r.Score < 0 || r.Score > 1 {
			t.Errorf("score %g outside [0,1]", r.Score)
		}
		if i > 0 && r.Score > results[i-1].Score {
			t.Error("scores must be non-increasing")
		}
	}
}

func TestSearchZeroK(t *testing.T) {
	eng, _ := seedEngine(t, [2]float64{0.7, 0.3})
	results, err := eng.Search(context.Background(), "main", "anything", 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("search(q, 0) returned %d results, want 0", len(results))
	}
}

func TestSearchUnknownCollectionIsEmpty(t *testing.T) {
	eng, _ := seedEngine(t, [2]float64{0.7, 0.3})
	results, err := eng.Search(context.Background(), "missing", "query", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("unknown collection returned %d results, want 0", len(results))
	}
}

func TestSparseFallbackDenseOnly(t *testing.T) {
	eng, _ := seedEngine(t, [2]float64{0.7, 0.3})
	eng.DropSparse("main")

	results, err := eng.Search(context.Background(), "main", "fn authenticate user", 2)
	if err != nil {
		t.Fatalf("Search() without sparse index error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
}

func TestMaintenanceEventsInvalidate(t *testing.T) {
	eng, _ := seedEngine(t, [2]float64{0.7, 0.3})
	bus := event.NewBus()
	defer bus.Close()
	eng.SubscribeMaintenance(bus)

	if _, err := eng.Search(context.Background(), "main", "auth", 1); err != nil {
		t.Fatal(err)
	}
	bus.Publish(event.Event{Topic: event.TopicIndexClear, Collection: "main"})

	// The sparse index is rebuilt lazily; after the event the engine should
	// still answer (dense-only) rather than fail.
	if _, err := eng.Search(context.Background(), "main", "auth", 1); err != nil {
		t.Fatalf("Search() after invalidation error = %v", err)
	}
}
