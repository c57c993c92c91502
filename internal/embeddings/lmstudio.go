package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var _ Embedder = (*LMStudioClient)(nil)

// LMStudioClient represents an LMStudio embedding client using OpenAI-compatible API
type LMStudioClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewLMStudioClient creates a new LMStudio embedding client
func NewLMStudioClient(baseURL, model string) *LMStudioClient {
	return &LMStudioClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client: &http.Client{
			Timeout: 3 * time.Minute,
		},
	}
}

// openAIEmbedRequest is the request format for OpenAI-compatible /v1/embeddings endpoint
type openAIEmbedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// Embed generates an embedding for a single text string
func (c *LMStudioClient) Embed(ctx context.Context, text string) ([]float32, error) {
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
func (c *LMStudioClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("texts cannot be empty")
	}

	var resp openAIEmbedResponse
	if err := postJSON(ctx, c.client, "lmstudio", c.baseURL+"/v1/embeddings", openAIEmbedRequest{Input: texts, Model: c.model}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	// data may come back out of order
	result := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, fmt.Errorf("invalid embedding index: %d", data.Index)
		}
		result[data.Index] = data.Embedding
	}
	return result, nil
}

// Health checks if the LMStudio service is available with at least one model loaded.
// LMStudio may serve a model under a different id, so a missing exact match is not an error.
func (c *LMStudioClient) Health(ctx context.Context) error {
	var models struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := getJSON(ctx, c.client, "lmstudio", c.baseURL+"/v1/models", &models); err != nil {
		return err
	}
	if len(models.Data) == 0 {
		return fmt.Errorf("no models loaded in lmstudio")
	}
	return nil
}
