package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/renderinc/issue-sync/internal/store"
)

// Upsert inserts or replaces objects and their vectors in one transaction, then
// mirrors them into the text index.
func (d *DB) Upsert(ctx context.Context, name string, objects []store.Object) error {
	c, err := d.collection(ctx, name)
	if err != nil {
		return err
	}
	vectors := d.vectorize(ctx, c, objects)

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, obj := range objects {
		props, err := json.Marshal(obj.Properties)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", obj.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
		INSERT INTO objects (collection, id, properties, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			properties = excluded.properties,
			updated_at = excluded.updated_at
		`, name, obj.ID, string(props), now)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", obj.ID, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM vectors WHERE collection = ? AND id = ?", name, obj.ID); err != nil {
			return fmt.Errorf("clear vectors %s: %w", obj.ID, err)
		}
	}

	for _, v := range vectors {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO vectors (collection, id, name, embedding) VALUES (?, ?, ?, ?)",
			name, v.id, v.name, v.embedding)
		if err != nil {
			return fmt.Errorf("insert vector %s/%s: %w", v.id, v.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return d.reindex(c, objects)
}

// FindEqual returns the objects whose property equals value, in insertion order
func (d *DB) FindEqual(ctx context.Context, name, property, value string, fields ...string) ([]store.Object, error) {
	if _, err := d.collection(ctx, name); err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, `
	SELECT id, properties FROM objects
	WHERE collection = ? AND CAST(json_extract(properties, '$."' || ? || '"') AS TEXT) = ?
	ORDER BY rowid
	`, name, property, value)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	defer rows.Close()

	var objects []store.Object
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}
	return objects, rows.Err()
}

// Get retrieves an object by ID
func (d *DB) Get(ctx context.Context, name, id string) (*store.Object, error) {
	row := d.db.QueryRowContext(ctx, "SELECT id, properties FROM objects WHERE collection = ? AND id = ?", name, id)
	obj, err := scanObject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &obj, nil
}

// Insert adds a single object, failing with store.ErrObjectExists if the id is taken
func (d *DB) Insert(ctx context.Context, name string, obj store.Object) error {
	c, err := d.collection(ctx, name)
	if err != nil {
		return err
	}
	props, err := json.Marshal(obj.Properties)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", obj.ID, err)
	}

	_, err = d.db.ExecContext(ctx,
		"INSERT INTO objects (collection, id, properties, updated_at) VALUES (?, ?, ?, ?)",
		name, obj.ID, string(props), time.Now().UTC())
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
		return fmt.Errorf("insert %s: %w", obj.ID, store.ErrObjectExists)
	}
	if err != nil {
		return fmt.Errorf("insert %s: %w", obj.ID, err)
	}
	return d.reindex(c, []store.Object{obj})
}

// Update merges properties into an existing object. Vectors are left as they are.
func (d *DB) Update(ctx context.Context, name string, obj store.Object) error {
	c, err := d.collection(ctx, name)
	if err != nil {
		return err
	}

	existing, err := d.Get(ctx, name, obj.ID)
	if err != nil {
		return fmt.Errorf("get %s: %w", obj.ID, err)
	}
	if existing == nil {
		return fmt.Errorf("update %s: %w", obj.ID, store.ErrObjectNotFound)
	}
	maps.Copy(existing.Properties, obj.Properties)

	props, err := json.Marshal(existing.Properties)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", obj.ID, err)
	}
	_, err = d.db.ExecContext(ctx,
		"UPDATE objects SET properties = ?, updated_at = ? WHERE collection = ? AND id = ?",
		string(props), time.Now().UTC(), name, obj.ID)
	if err != nil {
		return fmt.Errorf("update %s: %w", obj.ID, err)
	}
	return d.reindex(c, []store.Object{*existing})
}

// Count returns the number of objects in a collection
func (d *DB) Count(ctx context.Context, name string) (int, error) {
	if _, err := d.collection(ctx, name); err != nil {
		return 0, err
	}
	var count int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM objects WHERE collection = ?", name).Scan(&count)
	return count, err
}

// VectorCount returns the number of stored vectors with the given name
func (d *DB) VectorCount(ctx context.Context, name, vector string) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM vectors WHERE collection = ? AND name = ?", name, vector).Scan(&count)
	return count, err
}

func (d *DB) reindex(c store.Collection, objects []store.Object) error {
	idx, err := d.index(c)
	if err != nil {
		return err
	}
	if err := idx.IndexObjects(objects); err != nil {
		return fmt.Errorf("index %s: %w", c.Name, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanObject(row scanner) (store.Object, error) {
	var (
		obj   store.Object
		props string
	)
	if err := row.Scan(&obj.ID, &props); err != nil {
		return store.Object{}, err
	}
	if err := json.Unmarshal([]byte(props), &obj.Properties); err != nil {
		return store.Object{}, fmt.Errorf("decode %s: %w", obj.ID, err)
	}
	return obj, nil
}
