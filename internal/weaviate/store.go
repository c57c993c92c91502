// Package weaviate stores collections in a Weaviate instance. Vectorisation happens
// in Weaviate's vectorizer modules.
package weaviate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/fault"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/renderinc/issue-sync/internal/store"
)

var _ store.Store = (*Store)(nil)

// Config holds the connection settings.
type Config struct {
	URL    string
	APIKey string
	// Headers are sent with every request, e.g. vectorizer credentials.
	Headers map[string]string
	Logger  *slog.Logger
}

// Store is a store.Store backed by Weaviate
type Store struct {
	client *weaviate.Client
	logger *slog.Logger

	mu    sync.Mutex
	types map[string]map[string]store.DataType
}

// Connect creates a client and waits for the instance to report ready.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("parse weaviate url %q: invalid", cfg.URL)
	}
	wcfg := weaviate.Config{
		Host:    u.Host,
		Scheme:  u.Scheme,
		Headers: cfg.Headers,
	}
	if cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}

	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	ready, err := client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("check weaviate readiness: %w", err)
	}
	if !ready {
		return nil, fmt.Errorf("weaviate at %s is not ready", cfg.URL)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, logger: logger, types: map[string]map[string]store.DataType{}}, nil
}

// className returns name the way Weaviate stores it: the first letter upper-cased.
// GraphQL responses are keyed by this form, whatever case the class was created with.
func className(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	name = className(name)
	ok, err := s.client.Schema().ClassExistenceChecker().WithClassName(name).Do(ctx)
	if err != nil {
		return false, fmt.Errorf("check class %s: %w", name, err)
	}
	return ok, nil
}

func (s *Store) CreateCollection(ctx context.Context, c store.Collection) error {
	c.Name = className(c.Name)
	class := classFor(c)
	if err := s.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("create class %s: %w", c.Name, err)
	}
	s.mu.Lock()
	s.types[c.Name] = propertyTypes(class)
	s.mu.Unlock()
	return nil
}

// Upsert sends objects in one batch. Objects with an existing id are replaced.
func (s *Store) Upsert(ctx context.Context, name string, objects []store.Object) error {
	name = className(name)
	batch := make([]*models.Object, 0, len(objects))
	for _, obj := range objects {
		batch = append(batch, &models.Object{
			Class:      name,
			ID:         strfmt.UUID(obj.ID),
			Properties: obj.Properties,
		})
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(batch...).Do(ctx)
	if err != nil {
		return fmt.Errorf("batch objects: %w", err)
	}

	var errs []error
	for _, r := range resp {
		if r.Result == nil || r.Result.Errors == nil {
			continue
		}
		for _, e := range r.Result.Errors.Error {
			errs = append(errs, fmt.Errorf("object %s: %s", r.ID, e.Message))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("batch objects: %d failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// FindEqual queries objects by equality on one property through GraphQL Get.
func (s *Store) FindEqual(ctx context.Context, name, property, value string, fields ...string) ([]store.Object, error) {
	name = className(name)
	where := filters.Where().WithPath([]string{property}).WithOperator(filters.Equal)
	dt, err := s.propertyType(ctx, name, property)
	if err != nil {
		return nil, err
	}
	switch dt {
	case store.Int:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", property, err)
		}
		where = where.WithValueInt(n)
	default:
		where = where.WithValueText(value)
	}

	if len(fields) == 0 {
		fields = []string{property}
	}
	selection := []graphql.Field{{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}}}
	for _, f := range fields {
		selection = append(selection, graphql.Field{Name: f})
	}

	resp, err := s.client.GraphQL().Get().
		WithClassName(name).
		WithFields(selection...).
		WithWhere(where).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	if err := graphQLError(resp); err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	return parseGet(resp, name)
}

func (s *Store) Insert(ctx context.Context, name string, obj store.Object) error {
	name = className(name)
	exists, err := s.client.Data().Checker().WithClassName(name).WithID(obj.ID).Do(ctx)
	if err != nil {
		return fmt.Errorf("check %s: %w", obj.ID, err)
	}
	if exists {
		return fmt.Errorf("insert %s: %w", obj.ID, store.ErrObjectExists)
	}

	_, err = s.client.Data().Creator().
		WithClassName(name).
		WithID(obj.ID).
		WithProperties(obj.Properties).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("insert %s: %w", obj.ID, err)
	}
	return nil
}

// Update merges properties into an existing object (PATCH).
func (s *Store) Update(ctx context.Context, name string, obj store.Object) error {
	name = className(name)
	err := s.client.Data().Updater().
		WithMerge().
		WithClassName(name).
		WithID(obj.ID).
		WithProperties(obj.Properties).
		Do(ctx)
	var clientErr *fault.WeaviateClientError
	if errors.As(err, &clientErr) && clientErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("update %s: %w", obj.ID, store.ErrObjectNotFound)
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", obj.ID, err)
	}
	return nil
}

// Count runs a GraphQL Aggregate meta count.
func (s *Store) Count(ctx context.Context, name string) (int, error) {
	name = className(name)
	resp, err := s.client.GraphQL().Aggregate().
		WithClassName(name).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("aggregate %s: %w", name, err)
	}
	if err := graphQLError(resp); err != nil {
		return 0, fmt.Errorf("aggregate %s: %w", name, err)
	}
	return parseCount(resp, name)
}

// Close releases nothing; the client holds no persistent connection beyond HTTP keep-alives.
func (s *Store) Close() error {
	return nil
}

func (s *Store) propertyType(ctx context.Context, name, property string) (store.DataType, error) {
	s.mu.Lock()
	types, ok := s.types[name]
	s.mu.Unlock()
	if !ok {
		class, err := s.client.Schema().ClassGetter().WithClassName(name).Do(ctx)
		if err != nil {
			return "", fmt.Errorf("get class %s: %w", name, err)
		}
		types = propertyTypes(class)
		s.mu.Lock()
		s.types[name] = types
		s.mu.Unlock()
	}
	return types[property], nil
}
