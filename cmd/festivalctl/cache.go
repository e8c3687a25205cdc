package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/swingfinder/festival-finder/internal/adapters/cache"
	"github.com/swingfinder/festival-finder/internal/adapters/database"
	"github.com/swingfinder/festival-finder/internal/adapters/events"
	"github.com/swingfinder/festival-finder/internal/application/services"
	"github.com/swingfinder/festival-finder/internal/domain/entities"
	"github.com/swingfinder/festival-finder/internal/infrastructure/clients/redis"
	"github.com/swingfinder/festival-finder/pkg/config"
)

func cacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the search result cache",
		Commands: []*cli.Command{
			{
				Name:  "flush",
				Usage: "Drop every cached search page on every API instance",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig(ctx)
					if err != nil {
						return err
					}
					if !cfg.Redis.Enabled {
						return fmt.Errorf("cache flush: REDIS_ENABLED is false; in-process caches expire on their own")
					}

					client, err := redis.NewClient(&cfg.Redis)
					if err != nil {
						return err
					}
					defer client.Close()

					n, err := cache.NewRedisAdapter(client, cfg.Redis.KeyPrefix).
						DeletePrefix(ctx, database.SearchCacheNamespace+":")
					if err != nil {
						return err
					}

					bus := events.NewRedisEventBus(client, cfg.Redis.KeyPrefix)
					defer bus.Close()
					if err := services.NotifyCatalogChange(ctx, bus, entities.CatalogEventCacheFlush, "festivalctl", 0); err != nil {
						log.Warn().Err(err).Msg("Failed to notify API instances")
					}

					fmt.Fprintf(c.Root().Writer, "Removed %d cached search pages\n", n)
					return nil
				},
			},
		},
	}
}

// notifyCatalogChange tells running API instances that events changed.
// It is a no-op when Redis is disabled.
func notifyCatalogChange(ctx context.Context, cfg *config.Config, count int) {
	if !cfg.Redis.Enabled {
		return
	}
	client, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, cached search pages will expire on their own")
		return
	}
	defer client.Close()

	bus := events.NewRedisEventBus(client, cfg.Redis.KeyPrefix)
	defer bus.Close()
	if err := services.NotifyCatalogChange(ctx, bus, entities.CatalogEventEventsUpdated, "festivalctl seed", count); err != nil {
		log.Warn().Err(err).Msg("Failed to notify API instances")
	}
}
