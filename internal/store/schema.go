package store

import "github.com/renderinc/issue-sync/internal/vectorizer"

// DataType is the storage type of a property.
type DataType string

const (
	Text      DataType = "text"
	TextArray DataType = "text[]"
	Int       DataType = "int"
	Date      DataType = "date"
)

// Tokenization modes for text properties.
const (
	TokenizeLowercase = "lowercase"
	TokenizeField     = "field"
)

// Property declares one field of a collection. Only Vectorize fields feed vectors;
// the rest are inert metadata.
type Property struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	DataType     DataType `json:"dataType"`
	Vectorize    bool     `json:"vectorize"`
	Tokenization string   `json:"tokenization,omitempty"`
}

// NamedVector is an independently queryable projection over a subset of the
// vectorizable properties. An empty Properties list means all of them.
type NamedVector struct {
	Name       string   `json:"name"`
	Properties []string `json:"properties,omitempty"`
}

// Collection describes the structure of a collection. It is created once and never altered.
type Collection struct {
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Vectorizer  vectorizer.Vectorizer `json:"vectorizer"`
	// Settings are passed through to the vectorizer module (model, endpoint).
	Settings   map[string]any `json:"settings,omitempty"`
	Properties []Property     `json:"properties"`
	Vectors    []NamedVector  `json:"vectors,omitempty"`
}

// Property looks up a property by name.
func (c Collection) Property(name string) (Property, bool) {
	for _, p := range c.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// VectorizableProperties returns the names of the properties that feed vectors, in declaration order.
func (c Collection) VectorizableProperties() []string {
	var names []string
	for _, p := range c.Properties {
		if p.Vectorize {
			names = append(names, p.Name)
		}
	}
	return names
}

// SourceProperties resolves the properties a named vector is computed from.
func (c Collection) SourceProperties(v NamedVector) []string {
	if len(v.Properties) == 0 {
		return c.VectorizableProperties()
	}
	return v.Properties
}
