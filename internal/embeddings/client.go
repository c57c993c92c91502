// Package embeddings computes vectors for the local store through a local model server.
package embeddings

import (
	"context"
	"fmt"
)

// Embedder is the interface for embedding providers (Ollama, LMStudio)
type Embedder interface {
	// Embed generates an embedding for a single text string
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple text strings in a single request
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Health checks if the service is available and the model is loaded
	Health(ctx context.Context) error
}

// NewEmbedder creates a new embedding client based on the provider type.
// Empty baseURL and model fall back to the provider defaults.
func NewEmbedder(provider, baseURL, model string) (Embedder, error) {
	if baseURL == "" {
		baseURL = DefaultURL(provider)
	}
	if model == "" {
		model = DefaultModel(provider)
	}
	switch provider {
	case "ollama":
		return NewClient(baseURL, model), nil
	case "lmstudio":
		return NewLMStudioClient(baseURL, model), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (supported: ollama, lmstudio)", provider)
	}
}

// DefaultURL returns the default base URL for a given provider
func DefaultURL(provider string) string {
	switch provider {
	case "ollama":
		return "http://localhost:11434"
	case "lmstudio":
		return "http://localhost:1234"
	default:
		return ""
	}
}

// DefaultModel returns the default model name for a given provider
func DefaultModel(provider string) string {
	switch provider {
	case "ollama":
		return "nomic-embed-text"
	case "lmstudio":
		return "text-embedding-nomic-embed-text-v1.5"
	default:
		return ""
	}
}
