// Package schema defines the issue and sync-state collections and creates them on demand.
package schema

import (
	"github.com/renderinc/issue-sync/internal/document"
	"github.com/renderinc/issue-sync/internal/store"
	"github.com/renderinc/issue-sync/internal/vectorizer"
)

// Named vectors of the issue collection.
const (
	VectorDefault    = "default"
	VectorTitle      = "title"
	VectorBody       = "body"
	VectorComments   = "comments"
	VectorAllContent = "all_content"
)

// Properties of the sync-state collection.
const (
	PropRepository      = "repository"
	PropLastProcessedAt = "lastProcessedAt"
)

// MetadataSuffix is appended to the issue collection name to form the default
// sync-state collection name.
const MetadataSuffix = "SyncState"

// IssueCollection describes the issue collection: vectorised title/body/comments
// plus inert metadata, with one named vector per text granularity.
func IssueCollection(name string, v vectorizer.Vectorizer, settings map[string]any) store.Collection {
	text := func(n, desc string) store.Property {
		return store.Property{Name: n, Description: desc, DataType: store.Text, Vectorize: true, Tokenization: store.TokenizeLowercase}
	}
	field := func(n, desc string, dt store.DataType) store.Property {
		p := store.Property{Name: n, Description: desc, DataType: dt}
		if dt == store.Text || dt == store.TextArray {
			p.Tokenization = store.TokenizeField
		}
		return p
	}

	return store.Collection{
		Name:        name,
		Description: "GitHub issues with their comments",
		Vectorizer:  v,
		Settings:    settings,
		Properties: []store.Property{
			text(document.PropTitle, "Issue title"),
			text(document.PropBody, "Issue body"),
			text(document.PropComments, "Issue comments as [author]: text blocks"),
			field(document.PropURL, "Issue URL", store.Text),
			field(document.PropNumber, "Issue number", store.Int),
			field(document.PropState, "open or closed", store.Text),
			field(document.PropCreatedAt, "Creation time", store.Date),
			field(document.PropUpdatedAt, "Last update time", store.Date),
			field(document.PropClosedAt, "Closing time", store.Date),
			field(document.PropLabels, "Label names", store.TextArray),
			field(document.PropAuthor, "Login of the issue author", store.Text),
			field(document.PropRepository, "owner/name", store.Text),
			field(document.PropCommentCount, "Number of comments fetched", store.Int),
		},
		Vectors: []store.NamedVector{
			{Name: VectorDefault},
			{Name: VectorTitle, Properties: []string{document.PropTitle}},
			{Name: VectorBody, Properties: []string{document.PropBody}},
			{Name: VectorComments, Properties: []string{document.PropComments}},
			{Name: VectorAllContent, Properties: []string{document.PropTitle, document.PropBody, document.PropComments}},
		},
	}
}

// MetadataCollection describes the sync-state collection holding one watermark per repository.
func MetadataCollection(name string) store.Collection {
	return store.Collection{
		Name:        name,
		Description: "Last processed time per repository",
		Vectorizer:  vectorizer.None,
		Properties: []store.Property{
			{Name: PropRepository, Description: "owner/name", DataType: store.Text, Tokenization: store.TokenizeField},
			{Name: PropLastProcessedAt, Description: "Start of the last successful sync", DataType: store.Date},
		},
	}
}
