//go:build integration

package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swingfinder/festival-finder/internal/adapters/cache"
	"github.com/swingfinder/festival-finder/internal/adapters/database"
	"github.com/swingfinder/festival-finder/internal/adapters/events"
	"github.com/swingfinder/festival-finder/internal/application/services"
	"github.com/swingfinder/festival-finder/internal/domain/entities"
	"github.com/swingfinder/festival-finder/internal/domain/providers"
)

func waitForCatalogEvent(t *testing.T, ch <-chan *entities.CatalogEvent) *entities.CatalogEvent {
	t.Helper()
	select {
	case event, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for catalog event")
		return nil
	}
}

func TestRedisEventBusFanoutIntegration(t *testing.T) {
	if os.Getenv("TEST_REDIS_HOST") == "" {
		t.Skip("Skipping integration test: TEST_REDIS_HOST not set")
	}

	client := newTestRedisClient(t)
	defer client.Close()

	bus := events.NewRedisEventBus(client, testRedisConfig().KeyPrefix)
	defer bus.Close()

	ctx1, cancel1 := context.WithCancel(context.Background())
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel1()
	defer cancel2()

	sub1, err := bus.Subscribe(ctx1, providers.EventChannelCatalogUpdates)
	require.NoError(t, err)
	sub2, err := bus.Subscribe(ctx2, providers.EventChannelCatalogUpdates)
	require.NoError(t, err)

	event := entities.NewCatalogEvent(entities.CatalogEventEventsUpdated, "integration", 3)
	require.NoError(t, bus.Publish(context.Background(), providers.EventChannelCatalogUpdates, event))

	got1 := waitForCatalogEvent(t, sub1)
	got2 := waitForCatalogEvent(t, sub2)
	assert.Equal(t, event.ID, got1.ID)
	assert.Equal(t, event.ID, got2.ID)
	assert.Equal(t, 3, got1.Count)

	// canceling a subscriber closes only its channel
	cancel1()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-sub1:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestCacheInvalidationOverRedisIntegration(t *testing.T) {
	if os.Getenv("TEST_REDIS_HOST") == "" {
		t.Skip("Skipping integration test: TEST_REDIS_HOST not set")
	}

	client := newTestRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	prefix := testRedisConfig().KeyPrefix

	// An instance running on the in-process cache
	local := cache.NewMemoryAdapter(time.Minute, time.Minute)
	require.NoError(t, local.Set(ctx, database.SearchCacheNamespace+":page", []byte("{}"), 0))

	instanceBus := events.NewRedisEventBus(client, prefix)
	defer instanceBus.Close()
	svc := services.NewCacheInvalidationService(local, instanceBus, database.SearchCacheNamespace+":")
	require.NoError(t, svc.Start(ctx))
	defer svc.Stop()

	// A separate publisher, as festivalctl would be
	publisher := events.NewRedisEventBus(client, prefix)
	defer publisher.Close()
	require.NoError(t, services.NotifyCatalogChange(ctx, publisher, entities.CatalogEventCacheFlush, "integration", 0))

	assert.Eventually(t, func() bool { return local.Count() == 0 }, 2*time.Second, 20*time.Millisecond)
}
