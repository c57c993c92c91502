package store

import (
	"context"
	"errors"
)

var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrObjectNotFound     = errors.New("object not found")
	ErrObjectExists       = errors.New("object already exists")
)

// Object is a stored record: an identifier plus its scalar and text properties.
// Absent values are left out of Properties rather than stored as empty strings.
type Object struct {
	ID         string
	Properties map[string]any
}

// Store is the document/vector store the sync pipeline writes into.
// Vectorisation happens inside the store; callers only hand over text.
type Store interface {
	// CollectionExists reports whether a collection with the given name exists.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// CreateCollection creates a collection with its named vectors and properties.
	CreateCollection(ctx context.Context, c Collection) error

	// Upsert inserts or fully replaces every object, keyed by Object.ID.
	Upsert(ctx context.Context, collection string, objects []Object) error

	// FindEqual returns the objects whose property equals value, in fetch order.
	// fields names the properties to load; backends that always load everything ignore it.
	FindEqual(ctx context.Context, collection, property, value string, fields ...string) ([]Object, error)

	// Insert adds a single object and fails with ErrObjectExists if the id is taken.
	Insert(ctx context.Context, collection string, obj Object) error

	// Update merges properties into an existing object.
	Update(ctx context.Context, collection string, obj Object) error

	// Count returns the number of objects in a collection.
	Count(ctx context.Context, collection string) (int, error)

	Close() error
}
