//go:build integration

package integration

import (
	"context"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/labtrack/lims/internal/adapters/database"
	"github.com/labtrack/lims/internal/infrastructure/clients/postgres"
	"github.com/labtrack/lims/internal/infrastructure/clients/redis"
	"github.com/labtrack/lims/internal/infrastructure/clients/typesense"
	"github.com/labtrack/lims/pkg/config"
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

func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	if os.Getenv("TEST_REDIS_HOST") == "" {
		t.Skip("Skipping integration test: TEST_REDIS_HOST not set")
	}

	cfg := &config.RedisConfig{
		Host:     getEnv("TEST_REDIS_HOST", "localhost"),
		Port:     getEnvAsInt("TEST_REDIS_PORT", 6379),
		Password: getEnv("TEST_REDIS_PASSWORD", ""),
		DB:       getEnvAsInt("TEST_REDIS_DB", 0),
	}

	client, err := redis.NewClient(context.Background(), cfg)
	require.NoError(t, err, "Failed to create redis client")
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// newTestPostgresClient connects, applies the migrations and empties the LIMS tables
func newTestPostgresClient(t *testing.T) *postgres.Client {
	t.Helper()
	if os.Getenv("TEST_DB_HOST") == "" {
		t.Skip("Skipping integration test: TEST_DB_HOST not set")
	}

	cfg := &config.DatabaseConfig{
		Host:     getEnv("TEST_DB_HOST", "localhost"),
		Port:     getEnvAsInt("TEST_DB_PORT", 5432),
		User:     getEnv("TEST_DB_USER", "postgres"),
		Password: getEnv("TEST_DB_PASSWORD", "postgres"),
		Database: getEnv("TEST_DB_NAME", "lims_test"),
		SSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}

	ctx := context.Background()
	client, err := postgres.NewClient(ctx, cfg)
	require.NoError(t, err, "Failed to create postgres client")
	t.Cleanup(func() { _ = client.Close() })

	_, err = database.NewMigrator(client).Up(ctx)
	require.NoError(t, err)
	_, err = client.DB().ExecContext(ctx, `TRUNCATE audit_logs, billing, test_results, patients, users`)
	require.NoError(t, err)
	return client
}

func newTestTypesenseClient(t *testing.T) *typesense.Client {
	t.Helper()
	if os.Getenv("TEST_TYPESENSE_URL") == "" {
		t.Skip("Skipping integration test: TEST_TYPESENSE_URL not set")
	}

	client, err := typesense.NewClient(context.Background(), &config.TypesenseConfig{
		URL:    getEnv("TEST_TYPESENSE_URL", "http://localhost:8108"),
		APIKey: getEnv("TEST_TYPESENSE_API_KEY", "xyz"),
	})
	require.NoError(t, err)
	require.NoError(t, client.InitSchema(context.Background()))
	return client
}
