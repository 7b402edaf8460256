// Package ollama implements the Embedder port against the Ollama HTTP API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"codescope/internal/errs"
	"codescope/internal/provider"
)

// Embedder calls the Ollama /api/embed endpoint.
type Embedder struct {
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
}

// New creates an embedder targeting the given Ollama instance.
func New(baseURL, model string, dimensions int, timeout time.Duration) *Embedder {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Embedder{
		baseURL:    baseURL,
		model:      model,
		dimensions: dimensions,
		client:     &http.Client{Timeout: timeout},
	}
}

func (e *Embedder) Model() string   { return e.model }
func (e *Embedder) Dimensions() int { return e.dimensions }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed sends a batch of texts to Ollama and returns their embeddings in
// input order. HTTP 429 and 5xx responses are classified retriable.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, errs.Wrap(errs.KindEmbedding, "marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(errs.KindEmbedding, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.Wrap(errs.KindCancelled, "embed", ctx.Err())
		}
		return nil, errs.RetriableE(errs.KindEmbedding, "embed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		httpErr := fmt.Errorf("ollama returned %d: %s", resp.StatusCode, string(respBody))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, errs.RetriableE(errs.KindEmbedding, "embed", httpErr)
		}
		return nil, errs.Wrap(errs.KindEmbedding, "embed", httpErr)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errs.Wrap(errs.KindEmbedding, "decode response", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, errs.E(errs.KindEmbedding, "embed",
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(result.Embeddings)))
	}
	return result.Embeddings, nil
}

var _ provider.Embedder = (*Embedder)(nil)
