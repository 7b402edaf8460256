package index

import (
	"context"
	"testing"
)

func TestCatalogUpsertAndHash(t *testing.T) {
	c, err := OpenCatalogInMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	ctx := context.Background()

	hash, err := c.FileHash(ctx, "main", "a.go")
	if err != nil {
		t.Fatal(err)
	}
	if hash != "" {
		t.Errorf("hash for unknown file = %q, want empty", hash)
	}

	rec := FileRecord{Collection: "main", Path: "a.go", Hash: "h1", Language: "go", ChunkCount: 3}
	if err := c.UpsertFile(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.Hash = "h2"
	if err := c.UpsertFile(ctx, rec); err != nil {
		t.Fatal(err)
	}

	hash, err = c.FileHash(ctx, "main", "a.go")
	if err != nil {
		t.Fatal(err)
	}
	if hash != "h2" {
		t.Errorf("hash = %q, want h2 after upsert", hash)
	}
	n, err := c.FileCount(ctx, "main")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("FileCount = %d, want 1", n)
	}
}

func TestCatalogCollectionsAreIsolated(t *testing.T) {
	c, err := OpenCatalogInMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	ctx := context.Background()

	if err := c.UpsertFile(ctx, FileRecord{Collection: "a", Path: "x.go", Hash: "h"}); err != nil {
		t.Fatal(err)
	}
	if err := c.UpsertFile(ctx, FileRecord{Collection: "b", Path: "x.go", Hash: "h"}); err != nil {
		t.Fatal(err)
	}
	if err := c.SetMeta(ctx, "a", "embedding_model", "m"); err != nil {
		t.Fatal(err)
	}

	if err := c.DeleteCollection(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	hash, err := c.FileHash(ctx, "b", "x.go")
	if err != nil || hash != "h" {
		t.Errorf("collection b affected by deleting a: hash=%q err=%v", hash, err)
	}
	meta, err := c.Meta(ctx, "a", "embedding_model")
	if err != nil || meta != "" {
		t.Errorf("meta survived DeleteCollection: %q err=%v", meta, err)
	}

	cols, err := c.Collections(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cols) != 1 || cols[0] != "b" {
		t.Errorf("Collections = %v, want [b]", cols)
	}
}
