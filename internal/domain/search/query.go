package search

import (
	"fmt"

	"github.com/swingfinder/festival-finder/internal/domain/entities"
)

// Query is a fully resolved search handed to an executor
type Query struct {
	Criteria  Criteria
	Predicate Predicate
	Ordering  Ordering
	Limit     int
	Offset    int
}

// NewQuery builds the predicate for c and bundles it with ordering and
// page bounds.
func NewQuery(c Criteria, ordering Ordering, limit, offset int) Query {
	c = c.Normalize()
	return Query{
		Criteria:  c,
		Predicate: BuildPredicate(c),
		Ordering:  ordering,
		Limit:     limit,
		Offset:    offset,
	}
}

// Fingerprint identifies the query for caching. Two queries with equal
// fingerprints return equal pages against unchanged data.
func (q Query) Fingerprint() string {
	return fmt.Sprintf("q=%q|city=%q|country=%q|by=%s|order=%s|ranked=%t|limit=%d|offset=%d",
		q.Criteria.Query, q.Criteria.City, q.Criteria.Country,
		q.Ordering.SortBy, q.Ordering.SortOrder, q.Ordering.Ranked,
		q.Limit, q.Offset)
}

// Page is one page of search results with the total match count
type Page struct {
	Total int64                        `json:"total"`
	Rows  []entities.EventSearchResult `json:"rows"`
}
