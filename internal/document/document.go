// Package document turns GitHub issues into the documents stored in the issue collection.
package document

import "time"

// Property names of the issue collection.
const (
	PropTitle        = "title"
	PropBody         = "body"
	PropComments     = "comments"
	PropURL          = "url"
	PropNumber       = "number"
	PropState        = "state"
	PropCreatedAt    = "createdAt"
	PropUpdatedAt    = "updatedAt"
	PropClosedAt     = "closedAt"
	PropLabels       = "labels"
	PropAuthor       = "author"
	PropRepository   = "repository"
	PropCommentCount = "commentCount"
)

// IssueDocument is the normalized form of an issue. Pointer and slice fields are nil
// when the value is absent upstream.
type IssueDocument struct {
	ID           string
	Title        string
	Body         *string
	Comments     *string
	URL          string
	Number       int
	State        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ClosedAt     *time.Time
	Labels       []string
	Author       *string
	Repository   string
	CommentCount int
}

// Properties returns the stored property map. Absent values are left out rather than
// written as empty strings, and dates are RFC 3339 in UTC.
func (d *IssueDocument) Properties() map[string]any {
	props := map[string]any{
		PropTitle:        d.Title,
		PropURL:          d.URL,
		PropNumber:       d.Number,
		PropState:        d.State,
		PropCreatedAt:    formatTime(d.CreatedAt),
		PropUpdatedAt:    formatTime(d.UpdatedAt),
		PropRepository:   d.Repository,
		PropCommentCount: d.CommentCount,
	}
	if d.Body != nil {
		props[PropBody] = *d.Body
	}
	if d.Comments != nil {
		props[PropComments] = *d.Comments
	}
	if d.ClosedAt != nil {
		props[PropClosedAt] = formatTime(*d.ClosedAt)
	}
	if len(d.Labels) > 0 {
		props[PropLabels] = d.Labels
	}
	if d.Author != nil {
		props[PropAuthor] = *d.Author
	}
	return props
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
