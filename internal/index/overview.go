package index

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Overview summarizes one collection from the catalog and store stats.
type Overview struct {
	Collection string
	Files      int
	Chunks     int
	Vectors    int64
	Dimensions int
	Languages  map[string]int // files per language
	Model      string
}

// CollectionOverview aggregates catalog records and vector-store stats into a
// per-collection summary.
func (idx *Indexer) CollectionOverview(ctx context.Context, collection string) (*Overview, error) {
	files, err := idx.catalog.Files(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("list catalog files: %w", err)
	}
	model, err := idx.catalog.Meta(ctx, collection, metaEmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("read collection meta: %w", err)
	}

	ov := &Overview{
		Collection: collection,
		Files:      len(files),
		Languages:  make(map[string]int),
		Model:      model,
	}
	for _, f := range files {
		ov.Chunks += f.ChunkCount
		lang := f.Language
		if lang == "" {
			lang = "unknown"
		}
		ov.Languages[lang]++
	}

	stats, err := idx.store.GetStats(ctx, collection)
	if err == nil {
		ov.Vectors = stats.Vectors
		ov.Dimensions = stats.Dimensions
	}
	return ov, nil
}

// Markdown renders the overview as a short report.
func (ov *Overview) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Collection %s\n\n", ov.Collection)
	fmt.Fprintf(&b, "- Files: %d\n- Chunks: %d\n- Vectors: %d (dim %d)\n",
		ov.Files, ov.Chunks, ov.Vectors, ov.Dimensions)
	if ov.Model != "" {
		fmt.Fprintf(&b, "- Embedding model: %s\n", ov.Model)
	}
	if len(ov.Languages) > 0 {
		b.WriteString("- Languages:\n")
		langs := make([]string, 0, len(ov.Languages))
		for l := range ov.Languages {
			langs = append(langs, l)
		}
		sort.Strings(langs)
		for _, l := range langs {
			fmt.Fprintf(&b, "  - %s: %d files\n", l, ov.Languages[l])
		}
	}
	return b.String()
}
