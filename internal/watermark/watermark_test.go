package watermark

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/renderinc/issue-sync/internal/schema"
	"github.com/renderinc/issue-sync/internal/store"
	"github.com/renderinc/issue-sync/internal/store/memory"
)

const meta = "IssuesSyncState"

func newStore(t *testing.T) (*memory.Store, *Store, *bytes.Buffer) {
	t.Helper()
	s := memory.New()
	if err := s.CreateCollection(context.Background(), schema.MetadataCollection(meta)); err != nil {
		t.Fatal(err)
	}
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	return s, New(s, meta, logger), &logs
}

func TestGetWithoutCollection(t *testing.T) {
	w := New(memory.New(), meta, nil)
	_, ok, err := w.Get(context.Background(), "octo/repo")
	if err != nil || ok {
		t.Fatalf("expected never-processed, got ok=%v err=%v", ok, err)
	}
}

func TestSetThenGet(t *testing.T) {
	ctx := context.Background()
	s, w, _ := newStore(t)

	if _, ok, _ := w.Get(ctx, "octo/repo"); ok {
		t.Fatal("expected no watermark before first set")
	}

	first := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)
	if err := w.Set(ctx, "octo/repo", first); err != nil {
		t.Fatal(err)
	}
	if err := w.Set(ctx, "octo/repo", second); err != nil {
		t.Fatal(err)
	}

	got, ok, err := w.Get(ctx, "octo/repo")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if !got.Equal(second) {
		t.Errorf("expected %v, got %v", second, got)
	}
	if n, _ := s.Count(ctx, meta); n != 1 {
		t.Errorf("expected one record, got %d", n)
	}

	if _, ok, _ := w.Get(ctx, "octo/other"); ok {
		t.Error("watermarks must be per repository")
	}
}

func TestSetWithDuplicateRecords(t *testing.T) {
	ctx := context.Background()
	s, w, logs := newStore(t)

	old := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
	for _, id := range []string{"first", "second"} {
		err := s.Insert(ctx, meta, store.Object{ID: id, Properties: map[string]any{
			schema.PropRepository:      "octo/repo",
			schema.PropLastProcessedAt: old,
		}})
		if err != nil {
			t.Fatal(err)
		}
	}

	ts := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := w.Set(ctx, "octo/repo", ts); err != nil {
		t.Fatal(err)
	}

	if n, _ := s.Count(ctx, meta); n != 2 {
		t.Errorf("record count must be unchanged, got %d", n)
	}
	objs := s.Objects(meta)
	if objs[0].Properties[schema.PropLastProcessedAt] == old {
		t.Error("first record should be updated")
	}
	if objs[1].Properties[schema.PropLastProcessedAt] != old {
		t.Error("second record should be left alone")
	}
	if !strings.Contains(logs.String(), "level=WARN") || !strings.Contains(logs.String(), "multiple watermark records") {
		t.Errorf("expected a warning, logs: %s", logs.String())
	}

	got, _, _ := w.Get(ctx, "octo/repo")
	if !got.Equal(ts) {
		t.Errorf("expected first record to be authoritative, got %v", got)
	}
}
