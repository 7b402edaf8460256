// Package chunker splits source files into embeddable chunks. Files with a
// registered tree-sitter grammar are chunked along semantic boundaries;
// other supported files fall back to a fixed line window.
package chunker

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

const maxChunkBytes = 8192

// Chunk is a contiguous slice of source text with location metadata.
// (FilePath, StartLine) uniquely identifies a chunk within one snapshot.
type Chunk struct {
	FilePath  string
	StartLine int // 1-based, inclusive
	EndLine   int
	Name      string
	Kind      string
	Content   string
	Language  string
}

// SkipReason explains why a file produced no chunks.
type SkipReason string

const (
	SkipUnsupported SkipReason = "unsupported_extension"
	SkipTooLarge    SkipReason = "too_large"
)

// Result is the outcome of chunking one file. Skipped files are not errors;
// an empty supported file yields an empty, non-skipped result.
type Result struct {
	Chunks []Chunk
	Skip   SkipReason
}

// Skipped reports whether the file was classified rather than chunked.
func (r Result) Skipped() bool { return r.Skip != "" }

// Chunker produces chunks using the registry's grammars.
type Chunker struct {
	registry    *Registry
	maxFileSize int64
}

// New creates a chunker. maxFileSize caps input size in bytes; zero means
// 1 MB.
func New(r *Registry, maxFileSize int64) *Chunker {
	if maxFileSize <= 0 {
		maxFileSize = 1 << 20
	}
	return &Chunker{registry: r, maxFileSize: maxFileSize}
}

// Chunk splits src into chunks. Unsupported extensions and oversized files
// are classified as skipped, never as errors.
func (c *Chunker) Chunk(ctx context.Context, path string, src []byte) (Result, error) {
	spec, lang := c.registry.Lookup(path)
	if lang == "" {
		return Result{Skip: SkipUnsupported}, nil
	}
	if int64(len(src)) > c.maxFileSize {
		return Result{Skip: SkipTooLarge}, nil
	}
	if len(src) == 0 {
		return Result{}, nil
	}

	if spec != nil {
		chunks, err := c.astChunks(ctx, spec, path, lang, src)
		if err == nil && len(chunks) > 0 {
			return Result{Chunks: chunks}, nil
		}
		// Parse or query failure degrades to line windows.
	}
	return Result{Chunks: lineChunks(path, lang, src)}, nil
}

func (c *Chunker) astChunks(ctx context.Context, spec *LanguageSpec, path, lang string, src []byte) ([]Chunk, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(spec.Language)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	q, err := sitter.NewQuery([]byte(spec.Query), spec.Language)
	if err != nil {
		return nil, fmt.Errorf("compile query for %s: %w", lang, err)
	}
	defer q.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, tree.RootNode())

	var captures []capture
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		var chunkNode *sitter.Node
		var nameStr string
		for _, cap := range m.Captures {
			switch q.CaptureNameForId(cap.Index) {
			case "chunk":
				chunkNode = cap.Node
			case "name":
				nameStr = cap.Node.Content(src)
			}
		}
		if chunkNode == nil {
			continue
		}
		captures = append(captures, capture{
			name:      nameStr,
			kind:      chunkNode.Type(),
			startLine: int(chunkNode.StartPoint().Row) + 1,
			endLine:   int(chunkNode.EndPoint().Row) + 1,
			startByte: chunkNode.StartByte(),
			endByte:   chunkNode.EndByte(),
		})
	}

	captures = dedup(captures)

	lines := strings.Split(string(src), "\n")
	var chunks []Chunk
	for _, cap := range captures {
		content := sliceLines(lines, cap.startLine, cap.endLine)
		if len(content) > maxChunkBytes {
			chunks = append(chunks, splitOversized(path, lang, content, cap.name, cap.kind, cap.startLine)...)
		} else {
			chunks = append(chunks, Chunk{
				FilePath:  path,
				StartLine: cap.startLine,
				EndLine:   cap.endLine,
				Name:      cap.name,
				Kind:      cap.kind,
				Content:   content,
				Language:  lang,
			})
		}
	}
	return chunks, nil
}

// dedup removes captures fully contained within a larger capture.
func dedup(caps []capture) []capture {
	if len(caps) <= 1 {
		return caps
	}
	sort.Slice(caps, func(i, j int) bool {
		if caps[i].startByte != caps[j].startByte {
			return caps[i].startByte < caps[j].startByte
		}
		return (caps[i].endByte - caps[i].startByte) > (caps[j].endByte - caps[j].startByte)
	})

	var result []capture
	var lastEnd uint32
	for _, c := range caps {
		if c.startByte >= lastEnd || lastEnd == 0 {
			result = append(result, c)
			if c.endByte > lastEnd {
				lastEnd = c.endByte
			}
		}
	}
	return result
}

// sliceLines joins the 1-based inclusive line range. Files without a trailing
// newline still report their final line.
func sliceLines(lines []string, startLine, endLine int) string {
	start := startLine - 1
	if start < 0 {
		start = 0
	}
	end := endLine
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start:end], "\n")
}

// splitOversized splits a chunk exceeding maxChunkBytes into line windows
// with overlap, preserving the original start line offsets.
func splitOversized(path, lang, content, name, kind string, baseStartLine int) []Chunk {
	lines := strings.Split(content, "\n")
	var chunks []Chunk
	for i := 0; i < len(lines); {
		end := i + windowLines
		if end > len(lines) {
			end = len(lines)
		}
		chunks = append(chunks, Chunk{
			FilePath:  path,
			StartLine: baseStartLine + i,
			EndLine:   baseStartLine + end - 1,
			Name:      name,
			Kind:      kind,
			Content:   strings.Join(lines[i:end], "\n"),
			Language:  lang,
		})
		if end >= len(lines) {
			break
		}
		i += windowLines - overlapLines
	}
	return chunks
}

type capture struct {
	name      string
	kind      string
	startLine int
	endLine   int
	startByte uint32
	endByte   uint32
}
