package providers

import (
	"context"

	"github.com/swingfinder/festival-finder/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.CatalogEvent) error

	// Subscribe subscribes to events on a channel until ctx is done
	Subscribe(ctx context.Context, channel string) (<-chan *entities.CatalogEvent, error)

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannelCatalogUpdates carries every CatalogEvent
const EventChannelCatalogUpdates = "catalog:updates"
