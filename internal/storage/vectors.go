package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/renderinc/issue-sync/internal/embeddings"
	"github.com/renderinc/issue-sync/internal/store"
	"github.com/renderinc/issue-sync/internal/vectorizer"
)

type vectorRow struct {
	id        string
	name      string
	embedding []byte
}

// vectorize computes every named vector of c for objects. Objects with no text for a
// vector get none. Embedder failures degrade to storing documents without vectors.
func (d *DB) vectorize(ctx context.Context, c store.Collection, objects []store.Object) []vectorRow {
	if c.Vectorizer == vectorizer.None || len(c.Vectors) == 0 || !d.embedderReady(ctx) {
		return nil
	}

	var rows []vectorRow
	for _, v := range c.Vectors {
		sources := c.SourceProperties(v)
		var ids, texts []string
		for _, obj := range objects {
			if text := vectorText(obj, sources); text != "" {
				ids = append(ids, obj.ID)
				texts = append(texts, text)
			}
		}
		if len(texts) == 0 {
			continue
		}

		vecs, err := d.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			d.logger.Warn("embedding failed, storing without vectors", "collection", c.Name, "vector", v.Name, "error", err)
			continue
		}
		for i, vec := range vecs {
			rows = append(rows, vectorRow{id: ids[i], name: v.Name, embedding: embeddings.SerializeEmbedding(vec)})
		}
	}
	return rows
}

// embedderReady checks the embedder once per store and remembers the outcome.
func (d *DB) embedderReady(ctx context.Context) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.embedder == nil {
		return false
	}
	if d.embedChecked {
		return true
	}
	if err := d.embedder.Health(ctx); err != nil {
		d.logger.Warn("embedder unavailable, storing documents without vectors", "error", err)
		d.embedder = nil
		return false
	}
	d.embedChecked = true
	return true
}

// vectorText joins the non-empty text values of the source properties, labelled by
// property name so combined vectors keep the field boundaries.
func vectorText(obj store.Object, sources []string) string {
	var parts []string
	for _, name := range sources {
		s, ok := obj.Properties[name].(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		if len(sources) == 1 {
			return s
		}
		parts = append(parts, fmt.Sprintf("%s: %s", name, s))
	}
	return strings.Join(parts, "\n\n")
}
