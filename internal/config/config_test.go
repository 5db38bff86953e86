package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MosinFAM/graphql-channels/internal/graph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":4000", cfg.Addr)
	assert.Equal(t, StorageMemory, cfg.StorageType)
	assert.Equal(t, BusMemory, cfg.BusType)
	assert.Equal(t, graph.DefaultDateLayout, cfg.DateLayout)
	assert.Equal(t, 0, cfg.SubscriberMaxPending)
	assert.Equal(t, 10*time.Second, cfg.KeepAlive)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("ADDR", ":8080")
	t.Setenv("BUS_TYPE", BusRedis)
	t.Setenv("SUBSCRIBER_MAX_PENDING", "10000")
	t.Setenv("KEEP_ALIVE", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, BusRedis, cfg.BusType)
	assert.Equal(t, 10000, cfg.SubscriberMaxPending)
	assert.Equal(t, 30*time.Second, cfg.KeepAlive)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":9000\"\nlog_level: debug\n"), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	// окружение важнее файла
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("Unknown storage", func(t *testing.T) {
		t.Setenv("STORAGE_TYPE", "mongo")
		_, err := Load()
		assert.ErrorContains(t, err, "STORAGE_TYPE")
	})

	t.Run("Postgres without DSN", func(t *testing.T) {
		t.Setenv("BUS_TYPE", BusPostgres)
		_, err := Load()
		assert.ErrorContains(t, err, "DATABASE_URL")
	})

	t.Run("Negative max pending", func(t *testing.T) {
		t.Setenv("SUBSCRIBER_MAX_PENDING", "-1")
		_, err := Load()
		assert.ErrorContains(t, err, "SUBSCRIBER_MAX_PENDING")
	})

	t.Run("Missing config file", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestLoadEnv(t *testing.T) {
	t.Run("Missing file is ignored", func(t *testing.T) {
		assert.NoError(t, LoadEnv(filepath.Join(t.TempDir(), ".env")))
	})

	t.Run("Values are exported", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("DATE_LAYOUT=2006-01-02\n"), 0o600))
		t.Setenv("DATE_LAYOUT", "")
		os.Unsetenv("DATE_LAYOUT")

		require.NoError(t, LoadEnv(path))
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "2006-01-02", cfg.DateLayout)
	})
}
