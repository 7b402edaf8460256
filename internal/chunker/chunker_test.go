package chunker

import (
	"context"
	"strings"
	"testing"
)

func fallbackRegistry() *Registry {
	r := NewRegistry()
	r.RegisterFallback("go", "go")
	r.RegisterFallback("markdown", "md")
	return r
}

func TestChunkUnsupportedExtensionIsSkipped(t *testing.T) {
	c := New(fallbackRegistry(), 0)
	res, err := c.Chunk(context.Background(), "image.png", []byte{0x89, 0x50})
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if !res.Skipped() || res.Skip != SkipUnsupported {
		t.Errorf("Skip = %q, want %q", res.Skip, SkipUnsupported)
	}
}

func TestChunkTooLargeIsSkipped(t *testing.T) {
	c := New(fallbackRegistry(), 10)
	res, err := c.Chunk(context.Background(), "big.go", []byte(strings.Repeat("x", 11)))
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if res.Skip != SkipTooLarge {
		t.Errorf("Skip = %q, want %q", res.Skip, SkipTooLarge)
	}
}

func TestChunkEmptyFile(t *testing.T) {
	c := New(fallbackRegistry(), 0)
	res, err := c.Chunk(context.Background(), "empty.go", nil)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if res.Skipped() {
		t.Error("empty supported file must not be classified as skipped")
	}
	if len(res.Chunks) != 0 {
		t.Errorf("empty file yielded %d chunks, want 0", len(res.Chunks))
	}
}

func TestLineChunksNoTrailingNewline(t *testing.T) {
	src := []byte("line one\nline two\nline three")
	chunks := lineChunks("notes.md", "markdown", src)
	if len(chunks) != 1 {
		t.Fatalf("len(chunks) = %d, want 1", len(chunks))
	}
	if chunks[0].StartLine != 1 || chunks[0].EndLine != 3 {
		t.Errorf("range = %d-%d, want 1-3", chunks[0].StartLine, chunks[0].EndLine)
	}
}

func TestLineChunksWindowAndOverlap(t *testing.T) {
	var b strings.Builder
	for i := 1; i <= 100; i++ {
		b.WriteString("line\n")
	}
	chunks := lineChunks("long.md", "markdown", []byte(b.String()))
	if len(chunks) < 3 {
		t.Fatalf("len(chunks) = %d, want >= 3", len(chunks))
	}
	if chunks[0].StartLine != 1 || chunks[0].EndLine != windowLines {
		t.Errorf("first window = %d-%d", chunks[0].StartLine, chunks[0].EndLine)
	}
	// Consecutive windows advance by windowLines-overlapLines.
	step := chunks[1].StartLine - chunks[0].StartLine
	if step != windowLines-overlapLines {
		t.Errorf("step = %d, want %d", step, windowLines-overlapLines)
	}
	// (FilePath, StartLine) must be unique within a snapshot.
	seen := make(map[int]bool)
	for _, c := range chunks {
		if seen[c.StartLine] {
			t.Errorf("duplicate start line %d", c.StartLine)
		}
		seen[c.StartLine] = true
	}
}

func TestLineChunksSkipBlankWindows(t *testing.T) {
	chunks := lineChunks("blank.md", "markdown", []byte("\n\n\n\n"))
	if len(chunks) != 0 {
		t.Errorf("blank content yielded %d chunks, want 0", len(chunks))
	}
}

func TestRegistryLanguageName(t *testing.T) {
	r := fallbackRegistry()
	tests := []struct {
		path string
		want string
	}{
		{"a/b/main.go", "go"},
		{"README.md", "markdown"},
		{"binary.bin", "unknown"},
	}
	for _, tt := range tests {
		if got := r.LanguageName(tt.path); got != tt.want {
			t.Errorf("LanguageName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestDedupKeepsOuterCapture(t *testing.T) {
	caps := []capture{
		{name: "inner", startByte: 10, endByte: 20},
		{name: "outer", startByte: 0, endByte: 50},
		{name: "after", startByte: 60, endByte: 80},
	}
	got := dedup(caps)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].name != "outer" || got[1].name != "after" {
		t.Errorf("kept = [%s %s], want [outer after]", got[0].name, got[1].name)
	}
}
