//go:build integration

package integration

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swingfinder/festival-finder/internal/domain/entities"
	"github.com/swingfinder/festival-finder/internal/infrastructure/clients/postgres"
	"github.com/swingfinder/festival-finder/internal/infrastructure/clients/redis"
	"github.com/swingfinder/festival-finder/pkg/config"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func testRedisConfig() *config.RedisConfig {
	return &config.RedisConfig{
		Enabled:   true,
		Host:      getEnv("TEST_REDIS_HOST", "localhost"),
		Port:      getEnvAsInt("TEST_REDIS_PORT", 6379),
		Password:  getEnv("TEST_REDIS_PASSWORD", ""),
		DB:        getEnvAsInt("TEST_REDIS_DB", 0),
		KeyPrefix: "festival-finder-test:",
	}
}

func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	client, err := redis.NewClient(testRedisConfig())
	require.NoError(t, err, "Failed to create redis client")
	return client
}

// newTestPostgresClient connects to the test database and applies the
// embedded migrations
func newTestPostgresClient(t *testing.T) *postgres.Client {
	t.Helper()

	cfg := &config.DatabaseConfig{
		URL:             getEnv("TEST_DATABASE_URL", ""),
		Host:            getEnv("TEST_DB_HOST", "localhost"),
		Port:            getEnvAsInt("TEST_DB_PORT", 5432),
		User:            getEnv("TEST_DB_USER", "postgres"),
		Password:        getEnv("TEST_DB_PASSWORD", "postgres"),
		Database:        getEnv("TEST_DB_NAME", "festival_finder_test"),
		SSLMode:         getEnv("TEST_DB_SSLMODE", "disable"),
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
		QueryTimeout:    5 * time.Second,
	}

	client, err := postgres.NewClient(cfg)
	require.NoError(t, err, "Failed to create postgres client")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, err = postgres.NewMigrationManager(client).ApplyPending(ctx)
	require.NoError(t, err, "Failed to apply migrations")

	return client
}

func skipWithoutPostgres(t *testing.T) {
	t.Helper()
	if os.Getenv("TEST_DB_HOST") == "" && os.Getenv("TEST_DATABASE_URL") == "" {
		t.Skip("Skipping integration test: TEST_DB_HOST not set")
	}
}

func strPtr(s string) *string { return &s }

var baseDate = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func testEvent(id int64, name string, days int) entities.Event {
	return entities.Event{
		ID:       id,
		Name:     name,
		FromDate: baseDate.AddDate(0, 0, days),
		ToDate:   baseDate.AddDate(0, 0, days+2),
	}
}
