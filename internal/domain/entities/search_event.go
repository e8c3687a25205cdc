package entities

import (
	"time"
)

// SearchEvent represents a single search interaction for analytics.
type SearchEvent struct {
	ID          string    `json:"id" db:"id"`
	Query       string    `json:"query" db:"query"`
	City        string    `json:"city,omitempty" db:"city"`
	Country     string    `json:"country,omitempty" db:"country"`
	SortBy      string    `json:"sort_by" db:"sort_by"`
	Page        int       `json:"page" db:"page"`
	ResultCount int64     `json:"result_count" db:"result_count"`
	LatencyMs   int64     `json:"latency_ms" db:"latency_ms"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
