package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreBackendMemory, cfg.Store.Backend)
	assert.Equal(t, EventBusMemory, cfg.Store.EventBus)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 12*time.Hour, cfg.Auth.SessionTTL)
	assert.Empty(t, cfg.Typesense.URL)
	assert.Equal(t, "host=localhost port=5432 user=postgres password= dbname=lims sslmode=disable", cfg.Database.DatabaseDSN())
}

func TestLoad_PostgresBackendFromEnv(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("EVENT_BUS", "redis")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000, https://lab.example.org")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreBackendPostgres, cfg.Store.Backend)
	assert.Equal(t, EventBusRedis, cfg.Store.EventBus)
	assert.Equal(t, "localhost:6380", cfg.Redis.RedisAddr())
	assert.Equal(t, []string{"http://localhost:3000", "https://lab.example.org"}, cfg.Server.AllowedOrigins)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "sqlite")

	_, err := Load()
	assert.ErrorContains(t, err, "STORE_BACKEND")
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_JWT_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "AUTH_JWT_SECRET")
}
