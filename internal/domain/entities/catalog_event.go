package entities

import (
	"time"

	"github.com/google/uuid"
)

// CatalogEventType represents the kind of catalog change
type CatalogEventType string

const (
	// CatalogEventEventsUpdated is published after event rows are written
	CatalogEventEventsUpdated CatalogEventType = "events_updated"
	// CatalogEventCacheFlush asks every instance to drop cached results
	CatalogEventCacheFlush CatalogEventType = "cache_flush"
)

// CatalogEvent announces a change to the searchable event catalog
type CatalogEvent struct {
	ID        string           `json:"id"`
	Type      CatalogEventType `json:"type"`
	Source    string           `json:"source"`
	Count     int              `json:"count,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewCatalogEvent creates a new catalog event
func NewCatalogEvent(eventType CatalogEventType, source string, count int) *CatalogEvent {
	return &CatalogEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Count:     count,
		Timestamp: time.Now(),
	}
}
