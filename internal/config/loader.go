package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BOOKKEEPER_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BOOKKEEPER_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.WsHost, "BOOKKEEPER_POLYMARKET_WS_HOST")
	setStringSlice(&cfg.Polymarket.AssetIDs, "BOOKKEEPER_POLYMARKET_ASSET_IDS")
	setStr(&cfg.Polymarket.TokensFile, "BOOKKEEPER_POLYMARKET_TOKENS_FILE")

	// ── Book ──
	setInt(&cfg.Book.HistoryCap, "BOOKKEEPER_BOOK_HISTORY_CAP")
	setInt(&cfg.Book.LaneBuffer, "BOOKKEEPER_BOOK_LANE_BUFFER")

	// ── Sampler ──
	setBool(&cfg.Sampler.Enabled, "BOOKKEEPER_SAMPLER_ENABLED")
	setDuration(&cfg.Sampler.Interval, "BOOKKEEPER_SAMPLER_INTERVAL")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "BOOKKEEPER_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "BOOKKEEPER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "BOOKKEEPER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "BOOKKEEPER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "BOOKKEEPER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "BOOKKEEPER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "BOOKKEEPER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "BOOKKEEPER_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "BOOKKEEPER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "BOOKKEEPER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "BOOKKEEPER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "BOOKKEEPER_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "BOOKKEEPER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BOOKKEEPER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BOOKKEEPER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BOOKKEEPER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BOOKKEEPER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BOOKKEEPER_REDIS_TLS_ENABLED")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "BOOKKEEPER_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Endpoint, "BOOKKEEPER_ARCHIVE_ENDPOINT")
	setStr(&cfg.Archive.Region, "BOOKKEEPER_ARCHIVE_REGION")
	setStr(&cfg.Archive.Bucket, "BOOKKEEPER_ARCHIVE_BUCKET")
	setStr(&cfg.Archive.AccessKey, "BOOKKEEPER_ARCHIVE_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "BOOKKEEPER_ARCHIVE_SECRET_KEY")
	setBool(&cfg.Archive.UseSSL, "BOOKKEEPER_ARCHIVE_USE_SSL")
	setBool(&cfg.Archive.ForcePathStyle, "BOOKKEEPER_ARCHIVE_FORCE_PATH_STYLE")
	setInt(&cfg.Archive.FlushFrames, "BOOKKEEPER_ARCHIVE_FLUSH_FRAMES")
	setDuration(&cfg.Archive.FlushInterval, "BOOKKEEPER_ARCHIVE_FLUSH_INTERVAL")

	// ── Server ──
	setInt(&cfg.Server.Port, "BOOKKEEPER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "BOOKKEEPER_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "BOOKKEEPER_SERVER_RATE_LIMIT")
	setInt(&cfg.Server.RateWindowSeconds, "BOOKKEEPER_SERVER_RATE_WINDOW_SECONDS")

	// ── Top-level ──
	setStr(&cfg.Mode, "BOOKKEEPER_MODE")
	setStr(&cfg.LogLevel, "BOOKKEEPER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
