package weaviate

import (
	"maps"

	"github.com/weaviate/weaviate/entities/models"

	"github.com/renderinc/issue-sync/internal/store"
	"github.com/renderinc/issue-sync/internal/vectorizer"
)

// classFor translates a collection into a Weaviate class. Each named vector is its own
// vector config over its source properties; inert properties are skipped by the
// vectorizer module.
func classFor(c store.Collection) *models.Class {
	module := c.Vectorizer.Module()
	class := &models.Class{
		Class:       c.Name,
		Description: c.Description,
	}

	for _, p := range c.Properties {
		prop := &models.Property{
			Name:         p.Name,
			Description:  p.Description,
			DataType:     []string{string(p.DataType)},
			Tokenization: p.Tokenization,
		}
		if c.Vectorizer != vectorizer.None && !p.Vectorize {
			prop.ModuleConfig = map[string]any{
				module: map[string]any{"skip": true},
			}
		}
		class.Properties = append(class.Properties, prop)
	}

	if c.Vectorizer == vectorizer.None || len(c.Vectors) == 0 {
		class.Vectorizer = vectorizer.None.Module()
		return class
	}

	class.VectorConfig = make(map[string]models.VectorConfig, len(c.Vectors))
	for _, v := range c.Vectors {
		settings := map[string]any{
			"properties":         c.SourceProperties(v),
			"vectorizeClassName": false,
		}
		maps.Copy(settings, c.Settings)
		class.VectorConfig[v.Name] = models.VectorConfig{
			Vectorizer:      map[string]any{module: settings},
			VectorIndexType: "hnsw",
		}
	}
	return class
}

// propertyTypes maps property names of a class to their data type.
func propertyTypes(class *models.Class) map[string]store.DataType {
	types := make(map[string]store.DataType, len(class.Properties))
	for _, p := range class.Properties {
		if len(p.DataType) > 0 {
			types[p.Name] = store.DataType(p.DataType[0])
		}
	}
	return types
}
