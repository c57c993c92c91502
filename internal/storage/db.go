// Package storage is the local, file-backed store: objects in SQLite, vectors from a
// local embedding server and a Bleve text index per collection.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/renderinc/issue-sync/internal/embeddings"
	"github.com/renderinc/issue-sync/internal/search"
	"github.com/renderinc/issue-sync/internal/store"
)

var _ store.Store = (*DB)(nil)

const dbFile = "issues.db"

// Options configures the local store.
type Options struct {
	// Embedder computes vectors. Nil stores documents without vectors.
	Embedder embeddings.Embedder
	Logger   *slog.Logger
}

// DB wraps SQLite database operations
type DB struct {
	db     *sql.DB
	dir    string
	logger *slog.Logger

	mu          sync.Mutex
	collections map[string]store.Collection
	indexes     map[string]*search.Index

	embedder     embeddings.Embedder
	embedChecked bool
}

// Open opens or creates the store in dir
func Open(dir string, opts Options) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, dbFile))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one connection keeps the pragmas below in effect for every statement
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	d := &DB{
		db:          db,
		dir:         dir,
		logger:      logger,
		collections: make(map[string]store.Collection),
		indexes:     make(map[string]*search.Index),
		embedder:    opts.Embedder,
	}

	if err := d.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return d, nil
}

// Close closes the text indexes and the database
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for name, idx := range d.indexes {
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close index %s: %w", name, err))
		}
	}
	d.indexes = map[string]*search.Index{}
	errs = append(errs, d.db.Close())
	return errors.Join(errs...)
}

// initSchema creates tables if they don't exist
func (d *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		definition TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS objects (
		collection TEXT NOT NULL REFERENCES collections(name),
		id TEXT NOT NULL,
		properties TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (collection, id)
	);

	CREATE TABLE IF NOT EXISTS vectors (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		embedding BLOB NOT NULL,
		PRIMARY KEY (collection, id, name),
		FOREIGN KEY (collection, id) REFERENCES objects(collection, id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_objects_updated ON objects(collection, updated_at);
	`

	_, err := d.db.Exec(schema)
	return err
}

// CollectionExists reports whether a collection was created
func (d *DB) CollectionExists(ctx context.Context, name string) (bool, error) {
	_, err := d.collection(ctx, name)
	if errors.Is(err, store.ErrCollectionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateCollection records the collection definition and creates its text index
func (d *DB) CreateCollection(ctx context.Context, c store.Collection) error {
	definition, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal collection: %w", err)
	}

	_, err = d.db.ExecContext(ctx,
		"INSERT INTO collections (name, definition, created_at) VALUES (?, ?, ?)",
		c.Name, string(definition), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert collection: %w", err)
	}

	d.mu.Lock()
	d.collections[c.Name] = c
	d.mu.Unlock()

	if _, err := d.index(c); err != nil {
		return err
	}
	return nil
}

// Collection returns the stored definition of a collection
func (d *DB) Collection(ctx context.Context, name string) (store.Collection, error) {
	return d.collection(ctx, name)
}

func (d *DB) collection(ctx context.Context, name string) (store.Collection, error) {
	d.mu.Lock()
	c, ok := d.collections[name]
	d.mu.Unlock()
	if ok {
		return c, nil
	}

	var definition string
	err := d.db.QueryRowContext(ctx, "SELECT definition FROM collections WHERE name = ?", name).Scan(&definition)
	if err == sql.ErrNoRows {
		return store.Collection{}, fmt.Errorf("%s: %w", name, store.ErrCollectionNotFound)
	}
	if err != nil {
		return store.Collection{}, fmt.Errorf("get collection %s: %w", name, err)
	}
	if err := json.Unmarshal([]byte(definition), &c); err != nil {
		return store.Collection{}, fmt.Errorf("decode collection %s: %w", name, err)
	}

	d.mu.Lock()
	d.collections[name] = c
	d.mu.Unlock()
	return c, nil
}

// index returns the open text index of c, opening or creating it on first use.
func (d *DB) index(c store.Collection) (*search.Index, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if idx, ok := d.indexes[c.Name]; ok {
		return idx, nil
	}
	idx, err := search.Open(filepath.Join(d.dir, c.Name+".bleve"), c)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", c.Name, err)
	}
	d.indexes[c.Name] = idx
	return idx, nil
}

// IndexCount returns the number of documents in a collection's text index
func (d *DB) IndexCount(ctx context.Context, name string) (uint64, error) {
	c, err := d.collection(ctx, name)
	if err != nil {
		return 0, err
	}
	idx, err := d.index(c)
	if err != nil {
		return 0, err
	}
	return idx.Count()
}
