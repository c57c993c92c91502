// Package memory is an in-process Store used for dry runs and tests.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/renderinc/issue-sync/internal/store"
)

var _ store.Store = (*Store)(nil)

type collection struct {
	schema  store.Collection
	order   []string
	objects map[string]store.Object
}

// Store keeps collections in memory. Objects are returned in insertion order.
type Store struct {
	mu          sync.Mutex
	collections map[string]*collection
	closed      bool
}

// New creates an empty store.
func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.collections[name]
	return ok, nil
}

func (s *Store) CreateCollection(ctx context.Context, c store.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[c.Name]; ok {
		return fmt.Errorf("create collection %s: already exists", c.Name)
	}
	s.collections[c.Name] = &collection{schema: c, objects: make(map[string]store.Object)}
	return nil
}

func (s *Store) Upsert(ctx context.Context, name string, objects []store.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.get(name)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		if _, ok := c.objects[obj.ID]; !ok {
			c.order = append(c.order, obj.ID)
		}
		c.objects[obj.ID] = clone(obj)
	}
	return nil
}

func (s *Store) FindEqual(ctx context.Context, name, property, value string, fields ...string) ([]store.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.get(name)
	if err != nil {
		return nil, err
	}
	var out []store.Object
	for _, id := range c.order {
		obj := c.objects[id]
		if v, ok := obj.Properties[property]; ok && fmt.Sprint(v) == value {
			out = append(out, clone(obj))
		}
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, name string, obj store.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.get(name)
	if err != nil {
		return err
	}
	if _, ok := c.objects[obj.ID]; ok {
		return fmt.Errorf("insert %s: %w", obj.ID, store.ErrObjectExists)
	}
	c.order = append(c.order, obj.ID)
	c.objects[obj.ID] = clone(obj)
	return nil
}

func (s *Store) Update(ctx context.Context, name string, obj store.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.get(name)
	if err != nil {
		return err
	}
	existing, ok := c.objects[obj.ID]
	if !ok {
		return fmt.Errorf("update %s: %w", obj.ID, store.ErrObjectNotFound)
	}
	maps.Copy(existing.Properties, obj.Properties)
	return nil
}

func (s *Store) Count(ctx context.Context, name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.get(name)
	if err != nil {
		return 0, err
	}
	return len(c.objects), nil
}

// Close marks the store closed. The data stays readable for inspection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *Store) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Schema returns the collection definition as it was created.
func (s *Store) Schema(name string) (store.Collection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return store.Collection{}, false
	}
	return c.schema, true
}

// Objects returns a snapshot of a collection's objects in insertion order.
func (s *Store) Objects(name string) []store.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return nil
	}
	out := make([]store.Object, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, clone(c.objects[id]))
	}
	return out
}

func (s *Store) get(name string) (*collection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, store.ErrCollectionNotFound)
	}
	return c, nil
}

func clone(obj store.Object) store.Object {
	props := make(map[string]any, len(obj.Properties))
	maps.Copy(props, obj.Properties)
	return store.Object{ID: obj.ID, Properties: props}
}
