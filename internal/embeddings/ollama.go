package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var _ Embedder = (*Client)(nil)

// Client represents an Ollama embedding client
type Client struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewClient creates a new Ollama embedding client
func NewClient(baseURL, model string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// embedRequest is the request format for Ollama's /api/embed endpoint
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed generates an embedding for a single text string
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple text strings in a single request
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("texts cannot be empty")
	}

	var resp embedResponse
	if err := postJSON(ctx, c.client, "ollama", c.baseURL+"/api/embed", embedRequest{Model: c.model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}
	return resp.Embeddings, nil
}

// Health checks if the Ollama service is available and the model is pulled
func (c *Client) Health(ctx context.Context) error {
	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := getJSON(ctx, c.client, "ollama", c.baseURL+"/api/tags", &tags); err != nil {
		return err
	}

	// compare base names, ignoring tags like :latest
	wanted := stripModelTag(c.model)
	for _, model := range tags.Models {
		if stripModelTag(model.Name) == wanted {
			return nil
		}
	}
	return fmt.Errorf("model %s not found (run: ollama pull %s)", c.model, c.model)
}

func stripModelTag(name string) string {
	base, _, _ := strings.Cut(name, ":")
	return base
}
