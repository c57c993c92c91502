package schema

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/renderinc/issue-sync/internal/store"
	"github.com/renderinc/issue-sync/internal/vectorizer"
)

// Manager creates collections that do not exist yet. Existing collections are
// never altered or dropped.
type Manager struct {
	store  store.Store
	logger *slog.Logger
}

// NewManager creates a schema manager over s.
func NewManager(s store.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: s, logger: logger}
}

// EnsureCollection makes sure the issue collection exists. It returns true when it
// had to be created.
func (m *Manager) EnsureCollection(ctx context.Context, name string, v vectorizer.Vectorizer, settings map[string]any) (bool, error) {
	if v == vectorizer.None {
		return false, fmt.Errorf("ensure collection %s: %w: issue collection needs a vectorizer", name, vectorizer.ErrUnsupported)
	}
	return m.ensure(ctx, IssueCollection(name, v, settings))
}

// EnsureMetadataCollection makes sure the sync-state collection exists.
func (m *Manager) EnsureMetadataCollection(ctx context.Context, name string) (bool, error) {
	return m.ensure(ctx, MetadataCollection(name))
}

func (m *Manager) ensure(ctx context.Context, c store.Collection) (bool, error) {
	exists, err := m.store.CollectionExists(ctx, c.Name)
	if err != nil {
		return false, fmt.Errorf("check collection %s: %w", c.Name, err)
	}
	if exists {
		m.logger.Debug("collection exists", "collection", c.Name)
		return false, nil
	}

	if err := m.store.CreateCollection(ctx, c); err != nil {
		return false, fmt.Errorf("create collection %s: %w", c.Name, err)
	}
	m.logger.Info("created collection", "collection", c.Name, "vectorizer", c.Vectorizer.Module(), "vectors", len(c.Vectors))
	return true, nil
}
