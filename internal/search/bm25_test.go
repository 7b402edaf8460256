package search

import (
	"testing"
)

func TestSparseIndexScoring(t *testing.T) {
	idx := NewSparseIndex()
	idx.Add("1", "fn authenticate(user) validates credentials")
	idx.Add("2", "fn parse_json(bytes) decodes payload")
	idx.Add("3", "helper that formats timestamps")

	scores := idx.Score("authenticate user", []string{"1", "2", "3"})
	if scores["1"] <= scores["2"] {
		t.Errorf("doc 1 should outrank doc 2 for an auth query: %v", scores)
	}
	if scores["1"] <= scores["3"] {
		t.Errorf("doc 1 should outrank doc 3: %v", scores)
	}
}

func TestSparseIndexMissingCandidateScoresZero(t *testing.T) {
	idx := NewSparseIndex()
	idx.Add("1", "some content")
	scores := idx.Score("content", []string{"1", "ghost"})
	if scores["ghost"] != 0 {
		t.Errorf("missing candidate score = %g, want 0", scores["ghost"])
	}
	if scores["1"] == 0 {
		t.Error("present candidate should score non-zero")
	}
}

func TestSparseIndexRemove(t *testing.T) {
	idx := NewSparseIndex()
	idx.Add("1", "alpha beta")
	idx.Add("2", "alpha gamma")
	idx.Remove("1")
	if idx.Len() != 1 {
		t.Errorf("Len = %d, want 1", idx.Len())
	}
	scores := idx.Score("beta", []string{"2"})
	if scores["2"] != 0 {
		t.Errorf("beta should no longer match anything, got %g", scores["2"])
	}
}

func TestSparseIndexReplaceSameID(t *testing.T) {
	idx := NewSparseIndex()
	idx.Add("1", "old words here")
	idx.Add("1", "completely new text")
	if idx.Len() != 1 {
		t.Errorf("Len = %d, want 1 after replace", idx.Len())
	}
	scores := idx.Score("old", []string{"1"})
	if scores["1"] != 0 {
		t.Error("replaced content should not match old terms")
	}
}

func TestGenerationAdvances(t *testing.T) {
	idx := NewSparseIndex()
	g0 := idx.Generation()
	idx.Add("1", "x")
	if idx.Generation() == g0 {
		t.Error("generation should advance on Add")
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("Fn parse_json(bytes) -> Result<T, E>")
	want := []string{"fn", "parse_json", "bytes", "result", "t", "e"}
	if len(got) != len(want) {
		t.Fatalf("Tokenize = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMinMaxNormalize(t *testing.T) {
	in := map[string]float64{"a": 2, "b": 4, "c": 6}
	out := minMaxNormalize(in)
	if out["a"] != 0 || out["c"] != 1 {
		t.Errorf("normalize endpoints = %g, %g, want 0, 1", out["a"], out["c"])
	}
	if out["b"] != 0.5 {
		t.Errorf("midpoint = %g, want 0.5", out["b"])
	}

	flat := minMaxNormalize(map[string]float64{"a": 3, "b": 3})
	if flat["a"] != 1 || flat["b"] != 1 {
		t.Errorf("constant stream should normalize to 1, got %v", flat)
	}
}
