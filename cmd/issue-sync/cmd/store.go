package cmd

import (
	"context"
	"fmt"

	"github.com/renderinc/issue-sync/internal/config"
	"github.com/renderinc/issue-sync/internal/embeddings"
	"github.com/renderinc/issue-sync/internal/storage"
	"github.com/renderinc/issue-sync/internal/store"
	"github.com/renderinc/issue-sync/internal/store/memory"
	"github.com/renderinc/issue-sync/internal/weaviate"
)

// openStore connects to the configured backend. The caller closes it.
func openStore(ctx context.Context, c *config.Config) (store.Store, error) {
	switch c.Store {
	case config.StoreWeaviate:
		v, err := c.VectorizerKind()
		if err != nil {
			return nil, err
		}
		headers, err := v.Headers(c.Credentials)
		if err != nil {
			return nil, err
		}
		st, err := weaviate.Connect(ctx, weaviate.Config{
			URL:     c.WeaviateURL,
			APIKey:  c.WeaviateAPIKey,
			Headers: headers,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		return st, nil

	case config.StoreSQLite:
		opts := storage.Options{Logger: logger}
		if c.Embedder != "" && c.Embedder != "none" {
			emb, err := embeddings.NewEmbedder(c.Embedder, c.EmbedderURL, c.EmbedderModel)
			if err != nil {
				return nil, err
			}
			opts.Embedder = emb
		}
		db, err := storage.Open(c.DataDir, opts)
		if err != nil {
			return nil, err
		}
		return db, nil

	case config.StoreMemory:
		return memory.New(), nil
	}
	return nil, fmt.Errorf("%w: unknown store %q", config.ErrInvalidConfig, c.Store)
}
