package jira

import (
	"context"
	"errors"
	"fmt"
)

// DefaultPageSize matches the page size the search endpoints accept without complaint.
const DefaultPageSize = 50

// Page is one server page of a paginated listing.
type Page[T any] struct {
	Total int
	Items []T
}

// PageFunc fetches the page starting at startAt holding at most maxResults items.
type PageFunc[T any] func(ctx context.Context, startAt, maxResults int) (Page[T], error)

// ListAll walks a paginated endpoint until the merged item count reaches the
// total the server declared. Pages are appended in request order. Any failed
// page aborts the listing; no partial result is returned.
func ListAll[T any](ctx context.Context, pageSize int, fetch PageFunc[T]) ([]T, error) {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	var items []T
	startAt := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := fetch(ctx, startAt, pageSize)
		if err != nil {
			if errors.Is(err, ErrSourceUnavailable) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: fetching page at %d: %w", ErrSourceUnavailable, startAt, err)
		}

		items = append(items, page.Items...)
		if len(items) >= page.Total {
			return items, nil
		}
		if len(page.Items) == 0 {
			// The server promised more but sent nothing; asking again would loop forever.
			return nil, fmt.Errorf("%w: empty page at %d with %d of %d items listed", ErrSourceUnavailable, startAt, len(items), page.Total)
		}

		// The server may cap maxResults below pageSize; continue after what it sent.
		startAt += len(page.Items)
	}
}
