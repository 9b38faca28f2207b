// Package config defines the top-level configuration for bookkeeper and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by BOOKKEEPER_* environment
// variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Book       BookConfig       `toml:"book"`
	Sampler    SamplerConfig    `toml:"sampler"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	Archive    ArchiveConfig    `toml:"archive"`
	Server     ServerConfig     `toml:"server"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig holds the market feed endpoint and subscriptions.
type PolymarketConfig struct {
	// WsHost is the WebSocket subscriptions host.
	WsHost string `toml:"ws_host"`

	// AssetIDs lists token IDs to subscribe. TokensFile, when set, is loaded
	// instead.
	AssetIDs []string `toml:"asset_ids"`

	// TokensFile points to a JSON token list; entries matching TokenFilters
	// are subscribed.
	TokensFile   string            `toml:"tokens_file"`
	TokenFilters map[string]string `toml:"token_filters"`
}

// BookConfig holds the replication engine parameters.
type BookConfig struct {
	// HistoryCap bounds each book's in-memory best-price history.
	HistoryCap int `toml:"history_cap"`

	// LaneBuffer is the per-asset event queue depth.
	LaneBuffer int `toml:"lane_buffer"`
}

// SamplerConfig holds the best-price sampling parameters.
type SamplerConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval duration `toml:"interval"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// ArchiveConfig holds S3-compatible storage parameters for the raw frame
// archive.
type ArchiveConfig struct {
	Enabled        bool     `toml:"enabled"`
	Endpoint       string   `toml:"endpoint"`
	Region         string   `toml:"region"`
	Bucket         string   `toml:"bucket"`
	AccessKey      string   `toml:"access_key"`
	SecretKey      string   `toml:"secret_key"`
	UseSSL         bool     `toml:"use_ssl"`
	ForcePathStyle bool     `toml:"force_path_style"`
	FlushFrames    int      `toml:"flush_frames"`
	FlushInterval  duration `toml:"flush_interval"`
}

// ServerConfig holds HTTP query API parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`

	// RateLimit caps requests per client IP per RateWindowSeconds; zero
	// disables limiting.
	RateLimit         int `toml:"rate_limit"`
	RateWindowSeconds int `toml:"rate_window_seconds"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			WsHost: "wss://ws-subscriptions-clob.polymarket.com/ws/market",
		},
		Book: BookConfig{
			HistoryCap: 4096,
			LaneBuffer: 256,
		},
		Sampler: SamplerConfig{
			Enabled:  true,
			Interval: duration{5 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		Archive: ArchiveConfig{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "bookkeeper-data",
			ForcePathStyle: true,
			FlushFrames:    500,
			FlushInterval:  duration{30 * time.Second},
		},
		Server: ServerConfig{
			Port:              8080,
			RateLimit:         0,
			RateWindowSeconds: 1,
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"replicate": true,
	"server":    true,
	"full":      true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration for inconsistencies and returns one
// error describing all of them.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: replicate, server, full)", c.Mode))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	needsFeed := c.Mode == "replicate" || c.Mode == "full"
	if needsFeed {
		if c.Polymarket.WsHost == "" {
			errs = append(errs, "polymarket: ws_host must be set for mode "+c.Mode)
		}
		if len(c.Polymarket.AssetIDs) == 0 && c.Polymarket.TokensFile == "" {
			errs = append(errs, "polymarket: either asset_ids or tokens_file must be set for mode "+c.Mode)
		}
	}

	if c.Mode == "server" || c.Mode == "full" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: invalid port %d", c.Server.Port))
		}
	}

	if c.Book.HistoryCap < 0 {
		errs = append(errs, "book: history_cap must not be negative")
	}
	if c.Book.LaneBuffer < 0 {
		errs = append(errs, "book: lane_buffer must not be negative")
	}

	if c.Sampler.Enabled && c.Sampler.Interval.Duration <= 0 {
		errs = append(errs, "sampler: interval must be positive when enabled")
	}

	if c.Postgres.Enabled && c.Postgres.DSN == "" && c.Postgres.Host == "" {
		errs = append(errs, "postgres: dsn or host must be set when enabled")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must be set when enabled")
	}

	if c.Archive.Enabled {
		if c.Archive.Bucket == "" {
			errs = append(errs, "archive: bucket must be set when enabled")
		}
		if c.Archive.Region == "" {
			errs = append(errs, "archive: region must be set when enabled")
		}
	}

	if c.Server.RateLimit > 0 && !c.Redis.Enabled {
		errs = append(errs, "server: rate_limit requires redis to be enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
