package search

import (
	"path/filepath"
	"testing"

	"github.com/blevesearch/bleve/v2"

	"github.com/renderinc/issue-sync/internal/store"
)

// matchField returns the ids of documents whose field matches value using the
// field's own analyzer.
func matchField(t *testing.T, idx *Index, field, value string) []string {
	t.Helper()
	q := bleve.NewMatchQuery(value)
	q.SetField(field)
	res, err := idx.index.Search(bleve.NewSearchRequestOptions(q, 10, 0, false))
	if err != nil {
		t.Fatalf("search %s: %v", field, err)
	}
	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids
}

var issues = store.Collection{
	Name: "Issues",
	Properties: []store.Property{
		{Name: "title", DataType: store.Text, Vectorize: true, Tokenization: store.TokenizeLowercase},
		{Name: "author", DataType: store.Text, Tokenization: store.TokenizeField},
		{Name: "number", DataType: store.Int},
		{Name: "createdAt", DataType: store.Date},
	},
}

func TestIndexObjects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issues.bleve")
	idx, err := Open(path, issues)
	if err != nil {
		t.Fatal(err)
	}

	objs := []store.Object{
		{ID: "1", Properties: map[string]any{"title": "Crash On Startup", "author": "Alice Smith", "number": 1, "createdAt": "2024-01-01T00:00:00Z"}},
		{ID: "2", Properties: map[string]any{"title": "Docs typo", "author": "bob", "number": 2, "createdAt": "2024-01-02T00:00:00Z"}},
	}
	if err := idx.IndexObjects(objs); err != nil {
		t.Fatal(err)
	}
	// re-indexing replaces
	if err := idx.IndexObjects(objs[:1]); err != nil {
		t.Fatal(err)
	}

	n, err := idx.Count()
	if err != nil || n != 2 {
		t.Fatalf("expected 2 documents, got %d (%v)", n, err)
	}

	// analyzed text matches case-insensitively on single words
	if ids := matchField(t, idx, "title", "startup"); len(ids) != 1 || ids[0] != "1" {
		t.Errorf("expected title match on 1, got %v", ids)
	}
	// keyword fields only match the whole value
	if ids := matchField(t, idx, "author", "Alice"); len(ids) != 0 {
		t.Errorf("keyword field should not match a partial value, got %v", ids)
	}
	if ids := matchField(t, idx, "author", "Alice Smith"); len(ids) != 1 {
		t.Errorf("keyword field should match the whole value, got %v", ids)
	}

	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path, issues)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if n, _ := reopened.Count(); n != 2 {
		t.Errorf("expected 2 documents after reopen, got %d", n)
	}
}
