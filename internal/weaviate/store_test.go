package weaviate

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/weaviate/weaviate/entities/models"

	"github.com/renderinc/issue-sync/internal/schema"
	"github.com/renderinc/issue-sync/internal/store"
)

const (
	idOne = "0294eead-7929-533a-9474-dd775c75e8b0"
	idTwo = "6ba7b810-9dad-51d1-80b4-00c04fd430c8"
)

// fakeWeaviate serves the REST and GraphQL endpoints the store uses. Objects are
// keyed by "Class/id", the way the namespaced object endpoints address them.
type fakeWeaviate struct {
	mu       sync.Mutex
	classes  map[string]*models.Class
	objects  map[string]map[string]any
	failIDs  map[string]string
	queries  []string
	batchLen []int
}

func newFakeWeaviate(t *testing.T) (*fakeWeaviate, *Store) {
	t.Helper()
	f := &fakeWeaviate{
		classes: map[string]*models.Class{},
		objects: map[string]map[string]any{},
		failIDs: map[string]string{},
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	st, err := Connect(context.Background(), Config{URL: srv.URL})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return f, st
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (f *fakeWeaviate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/v1")
	switch {
	case path == "/.well-known/ready":
		w.WriteHeader(http.StatusOK)

	case path == "/meta":
		writeJSON(w, http.StatusOK, map[string]any{"version": "1.28.4"})

	case path == "/schema" && r.Method == http.MethodPost:
		var class models.Class
		json.NewDecoder(r.Body).Decode(&class)
		f.classes[class.Class] = &class
		writeJSON(w, http.StatusOK, &class)

	case strings.HasPrefix(path, "/schema/"):
		class, ok := f.classes[strings.TrimPrefix(path, "/schema/")]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{})
			return
		}
		writeJSON(w, http.StatusOK, class)

	case path == "/batch/objects":
		var body struct {
			Objects []*models.Object `json:"objects"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.batchLen = append(f.batchLen, len(body.Objects))
		results := make([]map[string]any, 0, len(body.Objects))
		for _, obj := range body.Objects {
			item := map[string]any{"class": obj.Class, "id": obj.ID}
			if msg, ok := f.failIDs[string(obj.ID)]; ok {
				item["result"] = map[string]any{"errors": map[string]any{"error": []any{map[string]any{"message": msg}}}}
			} else {
				props, _ := obj.Properties.(map[string]any)
				f.objects[obj.Class+"/"+string(obj.ID)] = props
			}
			results = append(results, item)
		}
		writeJSON(w, http.StatusOK, results)

	case path == "/objects" && r.Method == http.MethodPost:
		var obj models.Object
		json.NewDecoder(r.Body).Decode(&obj)
		props, _ := obj.Properties.(map[string]any)
		f.objects[obj.Class+"/"+string(obj.ID)] = props
		writeJSON(w, http.StatusOK, &obj)

	case strings.HasPrefix(path, "/objects/"):
		key := strings.TrimPrefix(path, "/objects/")
		props, ok := f.objects[key]
		switch r.Method {
		case http.MethodHead:
			if ok {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPatch:
			if !ok {
				writeJSON(w, http.StatusNotFound, map[string]any{"error": []any{map[string]any{"message": "not found"}}})
				return
			}
			var obj models.Object
			json.NewDecoder(r.Body).Decode(&obj)
			if update, ok := obj.Properties.(map[string]any); ok {
				maps.Copy(props, update)
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	case path == "/graphql":
		var q models.GraphQLQuery
		json.NewDecoder(r.Body).Decode(&q)
		f.queries = append(f.queries, q.Query)
		writeJSON(w, http.StatusOK, f.answer(q.Query))

	default:
		http.NotFound(w, r)
	}
}

// answer returns every stored object of the queried class. Filtering is left to the
// assertions on the recorded query text.
func (f *fakeWeaviate) answer(query string) map[string]any {
	aggregate := strings.HasPrefix(query, "{Aggregate")
	fields := strings.Fields(strings.NewReplacer("{", " ", "}", " ").Replace(query))
	class := fields[1]

	var items []any
	for key, props := range f.objects {
		cls, id, _ := strings.Cut(key, "/")
		if cls != class {
			continue
		}
		item := map[string]any{"_additional": map[string]any{"id": id}}
		maps.Copy(item, props)
		items = append(items, item)
	}

	if aggregate {
		return map[string]any{"data": map[string]any{"Aggregate": map[string]any{
			class: []any{map[string]any{"meta": map[string]any{"count": len(items)}}},
		}}}
	}
	return map[string]any{"data": map[string]any{"Get": map[string]any{class: items}}}
}

func TestUpsertAndCount(t *testing.T) {
	f, st := newFakeWeaviate(t)
	ctx := context.Background()

	objs := []store.Object{
		{ID: idOne, Properties: map[string]any{"title": "one", "number": 1}},
		{ID: idTwo, Properties: map[string]any{"title": "two", "number": 2}},
	}
	if err := st.Upsert(ctx, "Issues", objs); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if len(f.batchLen) != 1 || f.batchLen[0] != 2 {
		t.Errorf("expected one batch of 2, got %v", f.batchLen)
	}

	n, err := st.Count(ctx, "Issues")
	if err != nil || n != 2 {
		t.Fatalf("expected 2 objects, got %d (%v)", n, err)
	}
	if !strings.Contains(f.queries[0], "meta") {
		t.Errorf("expected meta count query, got %s", f.queries[0])
	}
}

func TestUpsertObjectErrorIsFatal(t *testing.T) {
	f, st := newFakeWeaviate(t)
	f.failIDs[idTwo] = "vectorizer unavailable"

	err := st.Upsert(context.Background(), "Issues", []store.Object{
		{ID: idOne, Properties: map[string]any{"title": "one"}},
		{ID: idTwo, Properties: map[string]any{"title": "two"}},
	})
	if err == nil {
		t.Fatal("expected per-object failure to fail the batch")
	}
	if !strings.Contains(err.Error(), "1 failed") || !strings.Contains(err.Error(), "vectorizer unavailable") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestInsertExistingObject(t *testing.T) {
	f, st := newFakeWeaviate(t)
	ctx := context.Background()
	obj := store.Object{ID: idOne, Properties: map[string]any{"repository": "octo/repo"}}

	if err := st.Insert(ctx, "IssuesSyncState", obj); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, ok := f.objects["IssuesSyncState/"+idOne]; !ok {
		t.Fatalf("object not created: %v", f.objects)
	}

	if err := st.Insert(ctx, "IssuesSyncState", obj); !errors.Is(err, store.ErrObjectExists) {
		t.Errorf("expected ErrObjectExists, got %v", err)
	}
}

func TestUpdate(t *testing.T) {
	f, st := newFakeWeaviate(t)
	ctx := context.Background()
	f.objects["IssuesSyncState/"+idOne] = map[string]any{"repository": "octo/repo", "lastProcessedAt": "2024-01-01T00:00:00Z"}

	err := st.Update(ctx, "IssuesSyncState", store.Object{ID: idOne, Properties: map[string]any{"lastProcessedAt": "2024-02-01T00:00:00Z"}})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	got := f.objects["IssuesSyncState/"+idOne]
	if got["lastProcessedAt"] != "2024-02-01T00:00:00Z" || got["repository"] != "octo/repo" {
		t.Errorf("expected merged properties, got %v", got)
	}

	err = st.Update(ctx, "IssuesSyncState", store.Object{ID: idTwo, Properties: map[string]any{}})
	if !errors.Is(err, store.ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestFindEqualFilters(t *testing.T) {
	f, st := newFakeWeaviate(t)
	ctx := context.Background()

	if err := st.CreateCollection(ctx, schema.MetadataCollection("IssuesSyncState")); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	f.objects["IssuesSyncState/"+idOne] = map[string]any{"repository": "octo/repo", "lastProcessedAt": "2024-01-01T00:00:00Z"}

	objs, err := st.FindEqual(ctx, "IssuesSyncState", "repository", "octo/repo", "repository", "lastProcessedAt")
	if err != nil {
		t.Fatalf("FindEqual: %v", err)
	}
	if len(objs) != 1 || objs[0].ID != idOne || objs[0].Properties["lastProcessedAt"] != "2024-01-01T00:00:00Z" {
		t.Fatalf("unexpected objects %+v", objs)
	}

	q := f.queries[len(f.queries)-1]
	for _, want := range []string{"{Get {IssuesSyncState", "operator: Equal", `path: ["repository"]`, `valueText: "octo/repo"`, "_additional{id}", "lastProcessedAt"} {
		if !strings.Contains(q, want) {
			t.Errorf("expected %q in query %s", want, q)
		}
	}
}

func TestFindEqualIntProperty(t *testing.T) {
	f, st := newFakeWeaviate(t)
	ctx := context.Background()
	// known only through the schema endpoint, not created by this store
	f.classes["Issues"] = &models.Class{Class: "Issues", Properties: []*models.Property{
		{Name: "number", DataType: []string{"int"}},
	}}

	if _, err := st.FindEqual(ctx, "Issues", "number", "42"); err != nil {
		t.Fatalf("FindEqual: %v", err)
	}
	if q := f.queries[len(f.queries)-1]; !strings.Contains(q, "valueInt: 42") {
		t.Errorf("expected int filter, got %s", q)
	}

	if _, err := st.FindEqual(ctx, "Issues", "number", "forty-two"); err == nil {
		t.Error("expected error for non-numeric int filter")
	}
}

func TestLowercaseClassNames(t *testing.T) {
	f, st := newFakeWeaviate(t)
	ctx := context.Background()

	if err := st.CreateCollection(ctx, schema.MetadataCollection("issuesSyncState")); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if _, ok := f.classes["IssuesSyncState"]; !ok {
		t.Fatalf("expected class created as IssuesSyncState, got %v", f.classes)
	}
	if ok, err := st.CollectionExists(ctx, "issuesSyncState"); err != nil || !ok {
		t.Fatalf("expected collection to exist, got %v (%v)", ok, err)
	}

	if err := st.Insert(ctx, "issuesSyncState", store.Object{ID: idOne, Properties: map[string]any{"repository": "octo/repo"}}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	objs, err := st.FindEqual(ctx, "issuesSyncState", "repository", "octo/repo")
	if err != nil || len(objs) != 1 {
		t.Fatalf("expected the record back, got %+v (%v)", objs, err)
	}
	if n, err := st.Count(ctx, "issuesSyncState"); err != nil || n != 1 {
		t.Errorf("expected count 1, got %d (%v)", n, err)
	}
}

func TestClassName(t *testing.T) {
	tests := map[string]string{
		"issues":      "Issues",
		"GitHubIssue": "GitHubIssue",
		"ärger":       "Ärger",
		"":            "",
	}
	for in, want := range tests {
		if got := className(in); got != want {
			t.Errorf("className(%q) = %q, want %q", in, got, want)
		}
	}
}
