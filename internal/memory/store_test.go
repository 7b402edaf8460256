package memory

import (
	"context"
	"strings"
	"testing"
	"time"

	"codescope/internal/errs"
	"codescope/internal/provider/memvec"
	"codescope/internal/provider/static"
	"codescope/internal/search"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	emb := static.New(32)
	vectors := memvec.New()
	engine := search.NewEngine(emb, vectors, search.Options{})
	s, err := OpenInMemory(context.Background(), Deps{
		Embedder: emb,
		Vectors:  vectors,
		Engine:   engine,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreDedupBySessionAndHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.Store(ctx, StoreRequest{
		Content: "let x=1", Type: TypeCode, Meta: Meta{SessionID: "s1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if first.Deduplicated {
		t.Error("first store should not dedup")
	}

	again, err := s.Store(ctx, StoreRequest{
		Content: "let x=1", Type: TypeCode, Meta: Meta{SessionID: "s1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !again.Deduplicated || again.ID != first.ID {
		t.Errorf("duplicate store = %+v, want id %s with deduplicated", again, first.ID)
	}

	other, err := s.Store(ctx, StoreRequest{
		Content: "let x=1", Type: TypeCode, Meta: Meta{SessionID: "s2"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if other.Deduplicated || other.ID == first.ID {
		t.Errorf("different session store = %+v, want fresh id", other)
	}
}

func TestStoreNormalizedContentDedups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.Store(ctx, StoreRequest{Content: "let  x =\n1", Type: TypeCode, Meta: Meta{SessionID: "s1"}})
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Store(ctx, StoreRequest{Content: "let x = 1", Type: TypeCode, Meta: Meta{SessionID: "s1"}})
	if err != nil {
		t.Fatal(err)
	}
	if !b.Deduplicated || b.ID != a.ID {
		t.Errorf("whitespace-only variant should dedup: %+v vs %+v", a, b)
	}

	// Same content under a different type is a different observation.
	c, err := s.Store(ctx, StoreRequest{Content: "let x = 1", Type: TypeDecision, Meta: Meta{SessionID: "s1"}})
	if err != nil {
		t.Fatal(err)
	}
	if c.Deduplicated {
		t.Error("different type must not dedup")
	}
}

func TestStoreValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Store(ctx, StoreRequest{Content: "", Type: TypeCode})
	if !errs.IsKind(err, errs.KindInvalidArgument) {
		t.Errorf("empty content err = %v, want invalid argument", err)
	}

	_, err = s.Store(ctx, StoreRequest{Content: strings.Repeat("x", 10001), Type: TypeCode})
	if !errs.IsKind(err, errs.KindInvalidArgument) {
		t.Errorf("oversized content err = %v, want invalid argument", err)
	}

	_, err = s.Store(ctx, StoreRequest{Content: "ok", Type: "banana"})
	if !errs.IsKind(err, errs.KindInvalidArgument) {
		t.Errorf("unknown type err = %v, want invalid argument", err)
	}
}

func TestStoreTagsDeduplicated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res, err := s.Store(ctx, StoreRequest{
		Content: "tagged", Type: TypeContext,
		Tags: []string{"b", "a", "b", ""},
		Meta: Meta{SessionID: "s1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	obs, err := s.Get(ctx, res.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(obs.Tags) != 2 {
		t.Errorf("Tags = %v, want [b a]", obs.Tags)
	}
}

func TestGetUnknownIsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	if !errs.IsKind(err, errs.KindNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestSearchMemories(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Store(ctx, StoreRequest{
		Content: "decided to use sqlite for persistence",
		Type:    TypeDecision, Meta: Meta{SessionID: "s1"},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Store(ctx, StoreRequest{
		Content: "fixed panic in chunker overlap handling",
		Type:    TypeError, Meta: Meta{SessionID: "s2"},
	}); err != nil {
		t.Fatal(err)
	}

	results, err := s.Search(ctx, "sqlite persistence decision", nil, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) == 0 || !strings.Contains(results[0].Content, "sqlite") {
		t.Errorf("top result = %+v, want the sqlite decision", results)
	}

	// Filter narrows to the other session.
	results, err = s.Search(ctx, "sqlite persistence decision", &Filter{SessionID: "s2"}, 5)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.Meta.SessionID != "s2" {
			t.Errorf("filtered result from session %q", r.Meta.SessionID)
		}
	}
}

func TestSweepRemovesOldObservations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	s.now = func() time.Time { return base.Add(-48 * time.Hour) }
	old, err := s.Store(ctx, StoreRequest{Content: "old note", Type: TypeContext, Meta: Meta{SessionID: "s1"}})
	if err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return base }
	fresh, err := s.Store(ctx, StoreRequest{Content: "fresh note", Type: TypeContext, Meta: Meta{SessionID: "s1"}})
	if err != nil {
		t.Fatal(err)
	}

	deleted, err := s.Sweep(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if _, err := s.Get(ctx, old.ID); !errs.IsKind(err, errs.KindNotFound) {
		t.Errorf("old observation should be gone, err = %v", err)
	}
	if _, err := s.Get(ctx, fresh.ID); err != nil {
		t.Errorf("fresh observation should survive, err = %v", err)
	}
}

func TestSummarizeSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, req := range []StoreRequest{
		{Content: "wrote the parser", Type: TypeCode, Meta: Meta{SessionID: "s1", RepoID: "r1", Branch: "main"}},
		{Content: "chose yaml for rules", Type: TypeDecision, Meta: Meta{SessionID: "s1", RepoID: "r1", Branch: "main"}},
		{Content: "test run failed", Type: TypeError, Meta: Meta{SessionID: "s1", RepoID: "r1", Branch: "dev"}},
	} {
		if _, err := s.Store(ctx, req); err != nil {
			t.Fatal(err)
		}
	}

	sum, err := s.Summarize(ctx, "s1")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if sum.Observations != 3 {
		t.Errorf("Observations = %d, want 3", sum.Observations)
	}
	if sum.ByType[TypeDecision] != 1 {
		t.Errorf("ByType[decision] = %d, want 1", sum.ByType[TypeDecision])
	}
	if len(sum.Branches) != 2 {
		t.Errorf("Branches = %v, want [dev main]", sum.Branches)
	}

	if _, err := s.Summarize(ctx, "empty-session"); !errs.IsKind(err, errs.KindNotFound) {
		t.Errorf("empty session err = %v, want not found", err)
	}

	first, err := s.CreateSummaryObservation(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	obs, err := s.Get(ctx, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if obs.Type != TypeSummary || !strings.Contains(obs.Content, "Session s1") {
		t.Errorf("summary observation = %+v", obs)
	}
}
