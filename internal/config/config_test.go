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

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

	assert.False(t, cfg.Auth.Enabled)
	assert.Contains(t, cfg.Auth.SkipPaths, "/track/")

	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 500.0, cfg.RateLimit.RPS)
	assert.Equal(t, time.Second, cfg.RateLimit.Window)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BEACON_HTTP_ADDR", ":9090")
	t.Setenv("BEACON_ENV", "production")
	t.Setenv("BEACON_DB_PORT", "5433")
	t.Setenv("BEACON_RATE_LIMIT_ENABLED", "false")
	t.Setenv("BEACON_SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("BEACON_AUTH_SKIP_PATHS", "/health, /metrics")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, []string{"/health", "/metrics"}, cfg.Auth.SkipPaths)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("BEACON_DB_PORT", "not-a-number")
	t.Setenv("BEACON_SHUTDOWN_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
}

func TestValidate_AuthRequiresMasterKey(t *testing.T) {
	t.Setenv("BEACON_AUTH_ENABLED", "true")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("BEACON_API_KEY_MASTER", "secret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.Auth.MasterKey)
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "beacon",
		Password: "pw",
		DBName:   "tracking",
		SSLMode:  "require",
	}
	assert.Equal(t, "postgres://beacon:pw@db.internal:5433/tracking?sslmode=require", d.DSN())
}
