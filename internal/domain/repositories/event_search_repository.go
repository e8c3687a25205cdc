package repositories

import (
	"context"

	"github.com/swingfinder/festival-finder/internal/domain/search"
)

// EventSearchRepository executes event searches
type EventSearchRepository interface {
	// SearchWithCount returns one page of events matching q together with
	// the total number of matches. rows never exceed q.Limit.
	SearchWithCount(ctx context.Context, q search.Query) (*search.Page, error)

	// Ping verifies the backing store is reachable
	Ping(ctx context.Context) error
}
