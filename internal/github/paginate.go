package github

import (
	"context"
	"fmt"
)

// MaxPerPage is the largest page size the GitHub REST API accepts.
const MaxPerPage = 100

// PageFunc fetches one page (1-based) of at most perPage records.
type PageFunc[T any] func(ctx context.Context, page, perPage int) ([]T, error)

// FetchAll walks pages until one comes back empty or short. Any page error
// aborts the walk and nothing fetched so far is returned.
func FetchAll[T any](ctx context.Context, perPage int, fetch PageFunc[T]) ([]T, error) {
	if perPage <= 0 || perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	var all []T
	for page := 1; ; page++ {
		records, err := fetch(ctx, page, perPage)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		if len(records) == 0 {
			break
		}
		all = append(all, records...)
		if len(records) < perPage {
			break
		}
	}
	return all, nil
}
