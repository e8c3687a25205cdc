package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/swingfinder/festival-finder/internal/domain/entities"
	"github.com/swingfinder/festival-finder/internal/domain/providers"
)

const invalidationTimeout = 5 * time.Second

// CacheInvalidationService drops cached search pages when the catalog
// changes. Each API instance runs one so in-process caches are flushed
// along with the shared one.
type CacheInvalidationService struct {
	cache    providers.CacheProvider
	eventBus providers.EventBus
	prefix   string

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewCacheInvalidationService creates a service that removes every key
// under prefix whenever a catalog event arrives
func NewCacheInvalidationService(cache providers.CacheProvider, eventBus providers.EventBus, prefix string) *CacheInvalidationService {
	return &CacheInvalidationService{
		cache:    cache,
		eventBus: eventBus,
		prefix:   prefix,
		done:     make(chan struct{}),
	}
}

// Start begins listening for catalog events
func (s *CacheInvalidationService) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	eventChan, err := s.eventBus.Subscribe(ctx, providers.EventChannelCatalogUpdates)
	if err != nil {
		s.cancel()
		return fmt.Errorf("failed to subscribe to catalog updates: %w", err)
	}

	go s.processEvents(ctx, eventChan)
	log.Info().Str("prefix", s.prefix).Msg("Cache invalidation service started")
	return nil
}

// Stop stops the service and waits for the event loop to exit
func (s *CacheInvalidationService) Stop() {
	s.once.Do(func() {
		if s.cancel == nil {
			close(s.done)
			return
		}
		s.cancel()
		<-s.done
		log.Info().Msg("Cache invalidation service stopped")
	})
}

func (s *CacheInvalidationService) processEvents(ctx context.Context, eventChan <-chan *entities.CatalogEvent) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event != nil {
				s.handleEvent(event)
			}
		}
	}
}

func (s *CacheInvalidationService) handleEvent(event *entities.CatalogEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), invalidationTimeout)
	defer cancel()

	removed, err := s.cache.DeletePrefix(ctx, s.prefix)
	if err != nil {
		log.Warn().Err(err).Str("event_id", event.ID).Msg("Failed to invalidate search cache")
		return
	}
	log.Info().
		Str("event_id", event.ID).
		Str("type", string(event.Type)).
		Str("source", event.Source).
		Int("removed", removed).
		Msg("Invalidated search cache")
}

// NotifyCatalogChange publishes a catalog event. Publishing is best
// effort: callers log the error and carry on, since cached pages still
// expire on their own.
func NotifyCatalogChange(ctx context.Context, bus providers.EventBus, eventType entities.CatalogEventType, source string, count int) error {
	return bus.Publish(ctx, providers.EventChannelCatalogUpdates, entities.NewCatalogEvent(eventType, source, count))
}
