// Package search keeps a full-text index of a collection next to the local store.
package search

import (
	"errors"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/renderinc/issue-sync/internal/store"
)

// Index wraps a Bleve index over one collection
type Index struct {
	index bleve.Index
}

// Open opens or creates the index at path. A new index gets a mapping derived from c.
func Open(path string, c store.Collection) (*Index, error) {
	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(path, BuildMapping(c))
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	return &Index{index: idx}, nil
}

// BuildMapping maps each property of c onto a field: vectorised text is analyzed
// (lowercased and split into words), inert text is kept whole, ints are numeric and
// dates are datetimes.
func BuildMapping(c store.Collection) mapping.IndexMapping {
	doc := bleve.NewDocumentStaticMapping()
	for _, p := range c.Properties {
		doc.AddFieldMappingsAt(p.Name, fieldMapping(p))
	}

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = standard.Name
	return m
}

func fieldMapping(p store.Property) *mapping.FieldMapping {
	switch p.DataType {
	case store.Int:
		return bleve.NewNumericFieldMapping()
	case store.Date:
		return bleve.NewDateTimeFieldMapping()
	}

	fm := bleve.NewTextFieldMapping()
	if p.Tokenization == store.TokenizeField {
		fm.Analyzer = keyword.Name
	} else {
		fm.Analyzer = standard.Name
	}
	return fm
}

// Close closes the index
func (i *Index) Close() error {
	return i.index.Close()
}

// IndexObjects adds or replaces objects in one batch
func (i *Index) IndexObjects(objects []store.Object) error {
	batch := i.index.NewBatch()
	for _, obj := range objects {
		if err := batch.Index(obj.ID, obj.Properties); err != nil {
			return fmt.Errorf("batch index %s: %w", obj.ID, err)
		}
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Count returns the number of documents in the index
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}
