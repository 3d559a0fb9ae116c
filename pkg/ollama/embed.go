// Package ollama provides Ollama-backed embedding and generation clients over
// its HTTP API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultEmbedDims = 768 // nomic-embed-text

// EmbedClient embeds text via Ollama's /api/embeddings endpoint. It satisfies
// the engine's Embedder capability.
type EmbedClient struct {
	baseURL string
	model   string
	dims    int
	client  *http.Client
}

// NewEmbedClient creates an Ollama embedding client. dims must match the
// model's output dimension; 0 falls back to the nomic-embed-text default.
func NewEmbedClient(baseURL, model string, dims int) *EmbedClient {
	if dims <= 0 {
		dims = defaultEmbedDims
	}
	return &EmbedClient{
		baseURL: baseURL,
		model:   model,
		dims:    dims,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   60 * time.Second,
		},
	}
}

type embedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResp struct {
	Embedding []float64 `json:"embedding"`
}

// Embed returns the embedding vector for text.
func (c *EmbedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	body, _ := json.Marshal(embedReq{Model: c.model, Prompt: text})
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("ollama embed: status %d", resp.StatusCode)
	}

	var result embedResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ollama embed decode: %w", err)
	}
	if len(result.Embedding) != c.dims {
		return nil, fmt.Errorf("ollama embed: got %d dims, want %d", len(result.Embedding), c.dims)
	}

	out := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (c *EmbedClient) Dimensions() int { return c.dims }

// Model returns the embedding model name.
func (c *EmbedClient) Model() string { return c.model }
