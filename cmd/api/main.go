package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/swingfinder/festival-finder/internal/adapters/cache"
	"github.com/swingfinder/festival-finder/internal/adapters/database"
	"github.com/swingfinder/festival-finder/internal/adapters/events"
	"github.com/swingfinder/festival-finder/internal/api/handlers"
	"github.com/swingfinder/festival-finder/internal/api/middleware"
	"github.com/swingfinder/festival-finder/internal/api/routes"
	"github.com/swingfinder/festival-finder/internal/application/services"
	"github.com/swingfinder/festival-finder/internal/domain/providers"
	"github.com/swingfinder/festival-finder/internal/domain/search"
	"github.com/swingfinder/festival-finder/internal/infrastructure/clients/postgres"
	"github.com/swingfinder/festival-finder/internal/infrastructure/clients/redis"
	"github.com/swingfinder/festival-finder/internal/infrastructure/observability"
	"github.com/swingfinder/festival-finder/pkg/config"
	"github.com/swingfinder/festival-finder/pkg/secrets"
)

func main() {
	if _, err := secrets.LoadFromEnv(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load secrets from Vault: %v\n", err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			observability.EnableOTelLogs(cfg.OTEL.ServiceName)
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	// Adapters
	searchOpts := []database.EventSearchOption{database.WithSearchMetrics(metrics)}
	if cfg.Search.SnapshotReads {
		level, ok := search.ParseIsolationLevel(cfg.Search.SnapshotIsolation)
		if !ok {
			log.Fatal().Str("level", cfg.Search.SnapshotIsolation).Msg("Unknown SEARCH_SNAPSHOT_ISOLATION")
		}
		searchOpts = append(searchOpts, database.WithSnapshotReads(level))
		log.Info().Str("isolation", cfg.Search.SnapshotIsolation).Msg("Search reads count and page from one snapshot")
	}
	// Redis is optional: it backs the shared result cache and carries
	// catalog change notifications between instances
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, using in-process search cache")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	eventSearchRepo := database.NewEventSearchAdapter(pgClient, searchOpts...)
	if cfg.Search.CacheTTL > 0 {
		var cacheProvider providers.CacheProvider
		if redisClient != nil {
			cacheProvider = cache.NewRedisAdapter(redisClient, cfg.Redis.KeyPrefix)
		} else {
			cacheProvider = cache.NewMemoryAdapter(cfg.Search.CacheTTL, 2*cfg.Search.CacheTTL)
		}
		eventSearchRepo = database.NewCachedEventSearchAdapter(eventSearchRepo, cacheProvider, cfg.Search.CacheTTL, metrics)

		if redisClient != nil {
			eventBus := events.NewRedisEventBus(redisClient, cfg.Redis.KeyPrefix)
			defer eventBus.Close()

			invalidation := services.NewCacheInvalidationService(cacheProvider, eventBus, database.SearchCacheNamespace+":")
			if err := invalidation.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("Failed to start cache invalidation service")
			} else {
				defer invalidation.Stop()
			}
		}
	} else {
		log.Info().Msg("Search result cache disabled")
	}
	analyticsRepo := database.NewSearchAnalyticsAdapter(pgClient)

	// Services
	analyticsService := services.NewSearchAnalyticsService(analyticsRepo)
	searchService := services.NewEventSearchService(eventSearchRepo, analyticsService, services.EventSearchConfig{
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxLimit:     cfg.Search.MaxLimit,
		Metrics:      metrics,
	})

	// Handlers and routes
	routeOpts := routes.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		SearchMaxAge:   cfg.Search.CacheTTL,
		Metrics:        metrics,
	}
	if cfg.RateLimit.Enabled {
		routeOpts.RateLimiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}
	router := routes.NewRouter(
		handlers.NewEventSearchHandler(searchService, cfg.Storage.PublicBaseURL),
		handlers.NewAnalyticsHandler(analyticsService),
		handlers.NewHealthHandler(searchService),
		routeOpts,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	// Let in-flight analytics writes land before the pool closes
	analyticsService.Wait()

	log.Info().Msg("Server stopped")
}
