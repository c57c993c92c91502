package github

import (
	"encoding/json"
	"time"
)

// Issue is an entry of the repository issues listing. The listing also returns
// pull requests; those carry a pull_request object.
type Issue struct {
	Number      int             `json:"number"`
	Title       string          `json:"title"`
	Body        *string         `json:"body"`
	HTMLURL     string          `json:"html_url"`
	State       string          `json:"state"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	ClosedAt    *time.Time      `json:"closed_at"`   // nil while open
	Labels      []Label         `json:"labels"`
	User        *User           `json:"user"`        // nil for deleted accounts
	Comments    int             `json:"comments"`    // count reported by GitHub
	PullRequest json.RawMessage `json:"pull_request,omitempty"`
}

// Label is an issue label
type Label struct {
	Name string `json:"name"`
}

// User is a GitHub account
type User struct {
	Login string `json:"login"`
}

// Comment is an issue comment
type Comment struct {
	ID        int64     `json:"id"`
	Body      *string   `json:"body"`
	User      *User     `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

// ListOptions filters the issues listing.
type ListOptions struct {
	State string     // all, open or closed
	Since *time.Time // only issues updated at or after this time
}
