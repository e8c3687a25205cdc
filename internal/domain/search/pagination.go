package search

import "math"

// Paging limits applied when a request does not set its own
const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// PageBounds clamps page and limit and returns the row offset. Invalid
// values are normalized, never rejected: page < 1 becomes 1, limit < 1
// becomes defaultLimit, and limit is capped at maxLimit. page is capped
// so that offset+limit fits in an int; such a page is past any real
// result set and comes back empty.
func PageBounds(page, limit, defaultLimit, maxLimit int) (normPage, normLimit, offset int) {
	if defaultLimit < 1 {
		defaultLimit = DefaultLimit
	}
	if maxLimit < 1 {
		maxLimit = MaxLimit
	}
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if maxPage := (math.MaxInt-limit)/limit + 1; page > maxPage {
		page = maxPage
	}
	return page, limit, (page - 1) * limit
}

// Pagination describes where a page sits in the full result set
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// NewPagination computes pagination metadata. limit must be positive.
func NewPagination(page, limit int, total int64) Pagination {
	totalPages := 0
	if total > 0 && limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}
