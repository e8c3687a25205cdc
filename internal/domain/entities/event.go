package entities

import (
	"time"
)

// Event represents a dance festival listing. Rows are written by the
// ingestion pipeline; this service only reads them.
type Event struct {
	ID                int64     `json:"id" db:"id"`
	Name              string    `json:"name" db:"name"`
	Description       *string   `json:"description,omitempty" db:"description"`
	FromDate          time.Time `json:"from_date" db:"from_date"`
	ToDate            time.Time `json:"to_date" db:"to_date"`
	City              *string   `json:"city,omitempty" db:"city"`
	Country           *string   `json:"country,omitempty" db:"country"`
	Website           *string   `json:"website,omitempty" db:"website"`
	Style             *string   `json:"style,omitempty" db:"style"`
	ImageURL          *string   `json:"image_url,omitempty" db:"image_url"`
	QualityScore      *float64  `json:"quality_score,omitempty" db:"quality_score"`
	CompletenessScore *float64  `json:"completeness_score,omitempty" db:"completeness_score"`
	ExtractionMethod  *string   `json:"extraction_method,omitempty" db:"extraction_method"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// EventSearchResult is an Event projected by a search. TotalCount is the
// number of rows matching the filter, repeated on every row.
type EventSearchResult struct {
	Event
	TotalCount int64   `json:"total_count" db:"total_count"`
	SearchRank float64 `json:"search_rank" db:"search_rank"`
}

// EventColumn names a column of the events table
type EventColumn string

const (
	EventColumnID                EventColumn = "id"
	EventColumnName              EventColumn = "name"
	EventColumnDescription       EventColumn = "description"
	EventColumnFromDate          EventColumn = "from_date"
	EventColumnToDate            EventColumn = "to_date"
	EventColumnCity              EventColumn = "city"
	EventColumnCountry           EventColumn = "country"
	EventColumnWebsite           EventColumn = "website"
	EventColumnStyle             EventColumn = "style"
	EventColumnImageURL          EventColumn = "image_url"
	EventColumnQualityScore      EventColumn = "quality_score"
	EventColumnCompletenessScore EventColumn = "completeness_score"
	EventColumnExtractionMethod  EventColumn = "extraction_method"
	EventColumnCreatedAt         EventColumn = "created_at"
	EventColumnUpdatedAt         EventColumn = "updated_at"
)

// EventsTable is the name of the events relation
const EventsTable = "events"

// EventColumns returns every events column in scan order
func EventColumns() []EventColumn {
	return []EventColumn{
		EventColumnID,
		EventColumnName,
		EventColumnDescription,
		EventColumnFromDate,
		EventColumnToDate,
		EventColumnCity,
		EventColumnCountry,
		EventColumnWebsite,
		EventColumnStyle,
		EventColumnImageURL,
		EventColumnQualityScore,
		EventColumnCompletenessScore,
		EventColumnExtractionMethod,
		EventColumnCreatedAt,
		EventColumnUpdatedAt,
	}
}

// TextField returns the value of a nullable text column, and whether it
// is set. Only the searchable text columns are supported.
func (e *Event) TextField(col EventColumn) (string, bool) {
	switch col {
	case EventColumnName:
		return e.Name, true
	case EventColumnDescription:
		return deref(e.Description)
	case EventColumnCity:
		return deref(e.City)
	case EventColumnCountry:
		return deref(e.Country)
	case EventColumnStyle:
		return deref(e.Style)
	}
	return "", false
}

func deref(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	return *s, true
}
