// Package static is a deterministic, offline Embedder. It hashes token
// features into a fixed-dimension vector, which keeps similar texts close
// enough for tests and air-gapped smoke runs without a model server.
package static

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"codescope/internal/provider"
)

// Embedder produces deterministic vectors from token hashes.
type Embedder struct {
	dimensions int
}

// New creates a static embedder with the given dimensionality.
func New(dimensions int) *Embedder {
	if dimensions < 1 {
		dimensions = 64
	}
	return &Embedder{dimensions: dimensions}
}

func (e *Embedder) Model() string   { return "static-hash" }
func (e *Embedder) Dimensions() int { return e.dimensions }

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		out[i] = e.embedOne(text)
	}
	return out, nil
}

func (e *Embedder) embedOne(text string) []float32 {
	v := make([]float32, e.dimensions)
	for _, tok := range tokenize(text) {
		// Hash every prefix of length >= 3 so lexically related tokens
		// ("auth", "authenticate") land on shared features.
		for n := 3; n <= len(tok); n++ {
			h := fnv.New32a()
			h.Write([]byte(tok[:n]))
			sum := h.Sum32()
			idx := int(sum) % e.dimensions
			if idx < 0 {
				idx += e.dimensions
			}
			sign := float32(1)
			if sum&1 == 1 {
				sign = -1
			}
			v[idx] += sign
		}
		if len(tok) < 3 {
			h := fnv.New32a()
			h.Write([]byte(tok))
			v[int(h.Sum32())%e.dimensions] += 1
		}
	}
	// L2-normalize so distances are comparable across text lengths.
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range v {
			v[i] *= inv
		}
	}
	return v
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

var _ provider.Embedder = (*Embedder)(nil)
