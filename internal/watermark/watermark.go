// Package watermark keeps the last processed time of each repository in the
// sync-state collection.
package watermark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/renderinc/issue-sync/internal/document"
	"github.com/renderinc/issue-sync/internal/schema"
	"github.com/renderinc/issue-sync/internal/store"
)

const recordKind = "watermark"

// Store reads and writes watermarks. There is at most one logical record per repository.
type Store struct {
	store      store.Store
	collection string
	logger     *slog.Logger
}

// New creates a watermark store over the given sync-state collection.
func New(s store.Store, collection string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{store: s, collection: collection, logger: logger}
}

// Get returns the last processed time of repo. ok is false when the repository was
// never synced or the collection does not exist yet.
func (w *Store) Get(ctx context.Context, repo string) (ts time.Time, ok bool, err error) {
	exists, err := w.store.CollectionExists(ctx, w.collection)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("check collection %s: %w", w.collection, err)
	}
	if !exists {
		return time.Time{}, false, nil
	}

	records, err := w.find(ctx, repo)
	if err != nil {
		return time.Time{}, false, err
	}
	if len(records) == 0 {
		return time.Time{}, false, nil
	}
	if len(records) > 1 {
		w.logger.Warn("multiple watermark records, using the first", "repository", repo, "count", len(records))
	}

	ts, err = parseTime(records[0].Properties[schema.PropLastProcessedAt])
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read watermark %s: %w", repo, err)
	}
	return ts, true, nil
}

// Set records ts as the last processed time of repo, updating the existing record in
// place. With duplicate records only the first in fetch order is updated.
func (w *Store) Set(ctx context.Context, repo string, ts time.Time) error {
	records, err := w.find(ctx, repo)
	if err != nil {
		return err
	}

	props := map[string]any{
		schema.PropRepository:      repo,
		schema.PropLastProcessedAt: ts.UTC().Format(time.RFC3339Nano),
	}

	if len(records) > 0 {
		if len(records) > 1 {
			w.logger.Warn("multiple watermark records, updating the first", "repository", repo, "count", len(records), "id", records[0].ID)
		}
		if err := w.store.Update(ctx, w.collection, store.Object{ID: records[0].ID, Properties: props}); err != nil {
			return fmt.Errorf("update watermark %s: %w", repo, err)
		}
		return nil
	}

	obj := store.Object{ID: document.DeriveKeyID(recordKind, repo), Properties: props}
	err = w.store.Insert(ctx, w.collection, obj)
	if errors.Is(err, store.ErrObjectExists) {
		err = w.store.Update(ctx, w.collection, obj)
	}
	if err != nil {
		return fmt.Errorf("insert watermark %s: %w", repo, err)
	}
	return nil
}

func (w *Store) find(ctx context.Context, repo string) ([]store.Object, error) {
	records, err := w.store.FindEqual(ctx, w.collection, schema.PropRepository, repo,
		schema.PropRepository, schema.PropLastProcessedAt)
	if err != nil {
		return nil, fmt.Errorf("find watermark %s: %w", repo, err)
	}
	return records, nil
}

func parseTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return time.Parse(time.RFC3339Nano, t)
	case nil:
		return time.Time{}, errors.New("missing timestamp")
	}
	return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
}
