// Package openai implements the Embedder port on the OpenAI embeddings API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"

	"codescope/internal/errs"
	"codescope/internal/provider"
)

// Embedder wraps the OpenAI embeddings endpoint.
type Embedder struct {
	client     *goopenai.Client
	model      goopenai.EmbeddingModel
	dimensions int
}

// New creates an OpenAI embedder. An empty model selects
// text-embedding-3-small.
func New(apiKey, model string, dimensions int) (*Embedder, error) {
	if apiKey == "" {
		return nil, errs.E(errs.KindConfig, "openai", "api key is required")
	}
	m := goopenai.EmbeddingModel(model)
	if model == "" {
		m = goopenai.SmallEmbedding3
	}
	return &Embedder{
		client:     goopenai.NewClient(apiKey),
		model:      m,
		dimensions: dimensions,
	}, nil
}

func (e *Embedder) Model() string   { return string(e.model) }
func (e *Embedder) Dimensions() int { return e.dimensions }

// Embed returns one vector per input text, in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequestStrings{
		Input:      texts,
		Model:      e.model,
		Dimensions: e.dimensions,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.Wrap(errs.KindCancelled, "embed", ctx.Err())
		}
		if isRetriable(err) {
			return nil, errs.RetriableE(errs.KindEmbedding, "embed", err)
		}
		return nil, errs.Wrap(errs.KindEmbedding, "embed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, errs.E(errs.KindEmbedding, "embed",
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
	}
	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, errs.E(errs.KindEmbedding, "embed", "embedding index out of range")
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// isRetriable classifies rate limits and server-side failures as retriable;
// auth and request errors are fatal.
func isRetriable(err error) bool {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests ||
			apiErr.HTTPStatusCode >= 500
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests ||
			reqErr.HTTPStatusCode >= 500
	}
	// Transport-level failures are worth one more try.
	return true
}

var _ provider.Embedder = (*Embedder)(nil)
