package document

import (
	"errors"
	"fmt"
	"strings"

	"github.com/renderinc/issue-sync/internal/github"
	"github.com/renderinc/issue-sync/internal/store"
)

// ErrMalformed marks an issue record that cannot be turned into a document.
var ErrMalformed = errors.New("malformed issue")

// GhostAuthor stands in for comment authors whose account no longer exists.
const GhostAuthor = "ghost"

// IsPullRequest reports whether a listing entry is a pull request. The issues
// listing returns both; pull requests carry a pull_request key. Any value counts,
// including null, since the raw message keeps a decoded null as "null".
func IsPullRequest(issue *github.Issue) bool {
	return len(issue.PullRequest) > 0
}

// Assemble builds the document for an issue of owner/name. comments are the fetched
// comments in source order; they are only folded into the document when includeComments
// is set, but CommentCount always reflects how many were fetched.
func Assemble(owner, name string, issue *github.Issue, comments []github.Comment, includeComments bool) (*IssueDocument, error) {
	if issue.Number <= 0 {
		return nil, fmt.Errorf("%w: number %d", ErrMalformed, issue.Number)
	}
	if issue.CreatedAt.IsZero() {
		return nil, fmt.Errorf("%w: #%d has no creation time", ErrMalformed, issue.Number)
	}

	doc := &IssueDocument{
		ID:           DeriveID(owner, name, issue.Number),
		Title:        issue.Title,
		Body:         nonEmpty(issue.Body),
		URL:          issue.HTMLURL,
		Number:       issue.Number,
		State:        issue.State,
		CreatedAt:    issue.CreatedAt,
		UpdatedAt:    issue.UpdatedAt,
		ClosedAt:     issue.ClosedAt,
		Repository:   owner + "/" + name,
		CommentCount: len(comments),
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}
	for _, l := range issue.Labels {
		if l.Name != "" {
			doc.Labels = append(doc.Labels, l.Name)
		}
	}
	if issue.User != nil && issue.User.Login != "" {
		login := issue.User.Login
		doc.Author = &login
	}
	if includeComments {
		doc.Comments = CombineComments(comments)
	}
	return doc, nil
}

// CombineComments joins comment bodies as "[author]: body" blocks separated by a blank
// line, keeping source order. Comments without text are skipped; nil means none had any.
func CombineComments(comments []github.Comment) *string {
	var blocks []string
	for _, c := range comments {
		if c.Body == nil || strings.TrimSpace(*c.Body) == "" {
			continue
		}
		author := GhostAuthor
		if c.User != nil && c.User.Login != "" {
			author = c.User.Login
		}
		blocks = append(blocks, fmt.Sprintf("[%s]: %s", author, *c.Body))
	}
	if len(blocks) == 0 {
		return nil
	}
	combined := strings.Join(blocks, "\n\n")
	return &combined
}

// Object converts the document into a store object keyed by its identity.
func (d *IssueDocument) Object() store.Object {
	return store.Object{ID: d.ID, Properties: d.Properties()}
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
