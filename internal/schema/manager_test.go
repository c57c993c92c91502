package schema

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/renderinc/issue-sync/internal/store"
	"github.com/renderinc/issue-sync/internal/store/memory"
	"github.com/renderinc/issue-sync/internal/vectorizer"
)

func TestEnsureCollectionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	m := NewManager(s, nil)

	created, err := m.EnsureCollection(ctx, "GitHubIssues", vectorizer.OpenAI, map[string]any{"model": "text-embedding-3-small"})
	if err != nil || !created {
		t.Fatalf("first ensure: created=%v err=%v", created, err)
	}
	if err := s.Upsert(ctx, "GitHubIssues", []store.Object{{ID: "x"}}); err != nil {
		t.Fatal(err)
	}

	created, err = m.EnsureCollection(ctx, "GitHubIssues", vectorizer.Cohere, nil)
	if err != nil || created {
		t.Fatalf("second ensure: created=%v err=%v", created, err)
	}

	c, _ := s.Schema("GitHubIssues")
	if c.Vectorizer != vectorizer.OpenAI {
		t.Errorf("existing collection must not be altered, vectorizer is %s", c.Vectorizer)
	}
	if n, _ := s.Count(ctx, "GitHubIssues"); n != 1 {
		t.Errorf("existing objects must survive, got %d", n)
	}
}

func TestEnsureCollectionRejectsNone(t *testing.T) {
	s := memory.New()
	_, err := NewManager(s, nil).EnsureCollection(context.Background(), "Issues", vectorizer.None, nil)
	if !errors.Is(err, vectorizer.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if ok, _ := s.CollectionExists(context.Background(), "Issues"); ok {
		t.Error("nothing should be created")
	}
}

func TestEnsureMetadataCollection(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	m := NewManager(s, nil)

	for range 2 {
		if _, err := m.EnsureMetadataCollection(ctx, "GitHubIssuesSyncState"); err != nil {
			t.Fatal(err)
		}
	}
	c, ok := s.Schema("GitHubIssuesSyncState")
	if !ok {
		t.Fatal("metadata collection not created")
	}
	if c.Vectorizer != vectorizer.None || len(c.VectorizableProperties()) != 0 {
		t.Errorf("metadata collection must not be vectorised: %+v", c)
	}
}

func TestIssueCollectionLayout(t *testing.T) {
	c := IssueCollection("Issues", vectorizer.Transformers, nil)

	if got := c.VectorizableProperties(); !slices.Equal(got, []string{"title", "body", "comments"}) {
		t.Errorf("unexpected vectorised properties %v", got)
	}

	var names []string
	for _, v := range c.Vectors {
		names = append(names, v.Name)
	}
	if !slices.Equal(names, []string{VectorDefault, VectorTitle, VectorBody, VectorComments, VectorAllContent}) {
		t.Errorf("unexpected named vectors %v", names)
	}
	if got := c.SourceProperties(c.Vectors[0]); len(got) != 3 {
		t.Errorf("default vector should cover all vectorised fields, got %v", got)
	}

	for _, p := range c.Properties {
		if p.Vectorize && p.Tokenization != store.TokenizeLowercase {
			t.Errorf("%s: vectorised text should be lowercase-tokenized", p.Name)
		}
		if !p.Vectorize && p.DataType == store.Text && p.Tokenization != store.TokenizeField {
			t.Errorf("%s: inert text should be field-tokenized", p.Name)
		}
	}
}
