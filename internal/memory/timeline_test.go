package memory

import (
	"context"
	"testing"
	"time"

	"codescope/internal/errs"
)

// storeAt inserts an observation with a fixed created_at.
func storeAt(t *testing.T, s *Store, content string, at int64, meta Meta) string {
	t.Helper()
	s.now = func() time.Time { return time.Unix(at, 0) }
	res, err := s.Store(context.Background(), StoreRequest{
		Content: content, Type: TypeContext, Meta: meta,
	})
	if err != nil {
		t.Fatal(err)
	}
	return res.ID
}

func TestTimelineAroundAnchor(t *testing.T) {
	s := newTestStore(t)
	meta := Meta{SessionID: "s1"}
	storeAt(t, s, "first", 100, meta)
	mid := storeAt(t, s, "second", 200, meta)
	storeAt(t, s, "third", 300, meta)

	got, err := s.Timeline(context.Background(), mid, 1, 1, nil)
	if err != nil {
		t.Fatalf("Timeline() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	want := []int64{100, 200, 300}
	for i, obs := range got {
		if obs.CreatedAt != want[i] {
			t.Errorf("timeline[%d].CreatedAt = %d, want %d", i, obs.CreatedAt, want[i])
		}
	}
	if got[1].ID != mid {
		t.Errorf("anchor not in the middle: %s", got[1].ID)
	}
}

func TestTimelineZeroDepthsReturnAnchorOnly(t *testing.T) {
	s := newTestStore(t)
	meta := Meta{SessionID: "s1"}
	storeAt(t, s, "first", 100, meta)
	mid := storeAt(t, s, "second", 200, meta)

	got, err := s.Timeline(context.Background(), mid, 0, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != mid {
		t.Errorf("timeline(anchor, 0, 0) = %v, want only the anchor", got)
	}
}

func TestTimelineDepthBeyondData(t *testing.T) {
	s := newTestStore(t)
	meta := Meta{SessionID: "s1"}
	first := storeAt(t, s, "first", 100, meta)
	storeAt(t, s, "second", 200, meta)

	got, err := s.Timeline(context.Background(), first, 10, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
	if got[0].ID != first {
		t.Errorf("anchor should come first, got %s", got[0].ID)
	}
}

func TestTimelineFilterApplies(t *testing.T) {
	s := newTestStore(t)
	storeAt(t, s, "other session", 100, Meta{SessionID: "s2"})
	storeAt(t, s, "mine early", 150, Meta{SessionID: "s1"})
	mid := storeAt(t, s, "anchor", 200, Meta{SessionID: "s1"})
	storeAt(t, s, "other late", 250, Meta{SessionID: "s2"})
	storeAt(t, s, "mine late", 300, Meta{SessionID: "s1"})

	got, err := s.Timeline(context.Background(), mid, 2, 2, &Filter{SessionID: "s1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for _, obs := range got {
		if obs.Meta.SessionID != "s1" {
			t.Errorf("filtered timeline contains session %q", obs.Meta.SessionID)
		}
	}
}

func TestTimelineTieBreakByID(t *testing.T) {
	s := newTestStore(t)
	meta := Meta{SessionID: "s1"}
	a := storeAt(t, s, "tie a", 100, meta)
	b := storeAt(t, s, "tie b", 100, meta)
	anchor, other := a, b
	if b < a {
		anchor, other = b, a
	}

	// The lexicographically smaller id comes first, so from it the other
	// tied observation is a successor.
	got, err := s.Timeline(context.Background(), anchor, 1, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != anchor || got[1].ID != other {
		t.Errorf("tie order = [%s %s], want [%s %s]", got[0].ID, got[1].ID, anchor, other)
	}
}

func TestTimelineUnknownAnchor(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Timeline(context.Background(), "missing", 1, 1, nil)
	if !errs.IsKind(err, errs.KindNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}
