package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadDefaultsAndFile(t *testing.T) {
	path := writeConfigFile(t, `
mode = "replicate"
log_level = "debug"

[polymarket]
ws_host = "wss://example.test"
asset_ids = ["111", "222"]

[book]
history_cap = 128

[sampler]
enabled = true
interval = "10s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "replicate", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "wss://example.test", cfg.Polymarket.WsHost)
	assert.Equal(t, []string{"111", "222"}, cfg.Polymarket.AssetIDs)
	assert.Equal(t, 128, cfg.Book.HistoryCap)
	assert.Equal(t, 10*time.Second, cfg.Sampler.Interval.Duration)

	// Untouched fields keep their defaults.
	assert.Equal(t, 256, cfg.Book.LaneBuffer)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
mode = "full"

[polymarket]
asset_ids = ["111"]
`)

	t.Setenv("BOOKKEEPER_MODE", "server")
	t.Setenv("BOOKKEEPER_SERVER_PORT", "9090")
	t.Setenv("BOOKKEEPER_POLYMARKET_ASSET_IDS", "333, 444")
	t.Setenv("BOOKKEEPER_REDIS_ENABLED", "true")
	t.Setenv("BOOKKEEPER_SAMPLER_INTERVAL", "2s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "server", cfg.Mode)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"333", "444"}, cfg.Polymarket.AssetIDs)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Sampler.Interval.Duration)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Run("defaults need a subscription", func(t *testing.T) {
		cfg := Defaults()
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "asset_ids or tokens_file")
	})

	t.Run("valid replicate", func(t *testing.T) {
		cfg := Defaults()
		cfg.Mode = "replicate"
		cfg.Polymarket.AssetIDs = []string{"111"}
		require.NoError(t, cfg.Validate())
	})

	t.Run("server mode skips feed checks", func(t *testing.T) {
		cfg := Defaults()
		cfg.Mode = "server"
		require.NoError(t, cfg.Validate())
	})

	t.Run("bad mode", func(t *testing.T) {
		cfg := Defaults()
		cfg.Mode = "turbo"
		cfg.Polymarket.AssetIDs = []string{"111"}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown mode")
	})

	t.Run("rate limit requires redis", func(t *testing.T) {
		cfg := Defaults()
		cfg.Mode = "server"
		cfg.Server.RateLimit = 10
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rate_limit requires redis")
	})

	t.Run("archive needs bucket", func(t *testing.T) {
		cfg := Defaults()
		cfg.Mode = "server"
		cfg.Archive.Enabled = true
		cfg.Archive.Bucket = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket")
	})
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "hunter2"
	cfg.Redis.Password = "hunter2"
	cfg.Archive.SecretKey = "hunter2"

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Redis.Password)
	assert.Equal(t, "***", red.Archive.SecretKey)

	// Original untouched.
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
}
