// Package config defines the top-level configuration for the fingent
// detection service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by FINGENT_* environment variables.
type Config struct {
	Arb        ArbConfig        `toml:"arb"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Finnhub    FinnhubConfig    `toml:"finnhub"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Pipeline   PipelineConfig   `toml:"pipeline"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// ArbConfig holds the detection core parameters.
type ArbConfig struct {
	Enabled         bool                `toml:"enabled"`
	TriggerKeywords []string            `toml:"trigger_keywords"` // case-insensitive regexes
	TermStructure   TermStructureConfig `toml:"term_structure"`
	Risk            RiskConfig          `toml:"risk"`
}

// TermStructureConfig holds strategy thresholds and the liquidity
// normalization constants used by the confidence score.
type TermStructureConfig struct {
	DeltaThreshold       float64 `toml:"delta_threshold"`
	TriggerWindowMinutes float64 `toml:"trigger_window_minutes"`
	MaxMarketsPerEvent   int     `toml:"max_markets_per_event"`
	MinVolume24h         float64 `toml:"min_volume_24h"`
	MinMarketsPerEvent   int     `toml:"min_markets_per_event"`

	// Cost and confidence tuning. The defaults are tuned heuristics, not a
	// calibrated model.
	DepthFloorUSD float64 `toml:"depth_floor_usd"`
	VolumeNormUSD float64 `toml:"volume_norm_usd"`
	DepthNormUSD  float64 `toml:"depth_norm_usd"`
	SpreadNormBps float64 `toml:"spread_norm_bps"`
}

// RiskConfig holds the risk manager's gating thresholds.
type RiskConfig struct {
	MinVolume24h         float64 `toml:"min_volume_24h"`
	MaxSpreadBps         float64 `toml:"max_spread_bps"`
	MinDepthUSD          float64 `toml:"min_depth_usd"`
	MinTimeToSettleHours float64 `toml:"min_time_to_settle_hours"`
	CooldownSeconds      float64 `toml:"cooldown_seconds"`
}

// PolymarketConfig holds Polymarket API endpoints.
type PolymarketConfig struct {
	GammaHost      string   `toml:"gamma_host"`
	ClobHost       string   `toml:"clob_host"`
	RequestTimeout duration `toml:"request_timeout"`
	SearchLimit    int      `toml:"search_limit"`
	RateLimitPerS  int      `toml:"rate_limit_per_s"`
}

// FinnhubConfig holds Finnhub news API parameters.
type FinnhubConfig struct {
	BaseURL          string   `toml:"base_url"`
	APIKey           string   `toml:"api_key"`
	EncryptedKeyPath string   `toml:"encrypted_key_path"`
	KeyPassword      string   `toml:"key_password"`
	Category         string   `toml:"category"`
	RequestTimeout   duration `toml:"request_timeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// PipelineConfig holds the scheduled scan loop parameters.
type PipelineConfig struct {
	ScanInterval        duration `toml:"scan_interval"`
	UseNewsTrigger      bool     `toml:"use_news_trigger"`
	SnapshotMaxAgeHours float64  `toml:"snapshot_max_age_hours"`
	ArchiveRuns         bool     `toml:"archive_runs"`
	PersistRuns         bool     `toml:"persist_runs"`
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

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`

	// APIRateLimit caps requests per client IP per window. Zero disables
	// HTTP rate limiting.
	APIRateLimit    int      `toml:"api_rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Arb: ArbConfig{
			Enabled: true,
			TriggerKeywords: []string{
				`\bfed\b`, `\brate (hike|cut)\b`, `\binflation\b`, `\bcpi\b`,
				`\belection\b`, `\bshutdown\b`,
			},
			TermStructure: TermStructureConfig{
				DeltaThreshold:       0.05,
				TriggerWindowMinutes: 30,
				MaxMarketsPerEvent:   4,
				MinVolume24h:         1_000,
				MinMarketsPerEvent:   2,
				DepthFloorUSD:        500,
				VolumeNormUSD:        10_000,
				DepthNormUSD:         2_000,
				SpreadNormBps:        300,
			},
			Risk: RiskConfig{
				MinVolume24h:         5_000,
				MaxSpreadBps:         200,
				MinDepthUSD:          1_000,
				MinTimeToSettleHours: 12,
				CooldownSeconds:      900,
			},
		},
		Polymarket: PolymarketConfig{
			GammaHost:      "https://gamma-api.polymarket.com",
			ClobHost:       "https://clob.polymarket.com",
			RequestTimeout: duration{10 * time.Second},
			SearchLimit:    100,
			RateLimitPerS:  10,
		},
		Finnhub: FinnhubConfig{
			BaseURL:        "https://finnhub.io/api/v1",
			Category:       "general",
			RequestTimeout: duration{10 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "fingent",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "fingent-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Pipeline: PipelineConfig{
			ScanInterval:        duration{5 * time.Minute},
			UseNewsTrigger:      true,
			SnapshotMaxAgeHours: 24,
			ArchiveRuns:         false,
			PersistRuns:         true,
		},
		Server: ServerConfig{
			Enabled:         true,
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			APIRateLimit:    20,
			RateLimitWindow: duration{time.Second},
		},
		Notify: NotifyConfig{
			Events: []string{"opportunity_confirmed", "pipeline_error"},
		},
		Mode:     "daemon",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":   true,
	"daemon": true,
	"server": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, daemon, server)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Detection thresholds
	if c.Arb.TermStructure.DeltaThreshold <= 0 {
		errs = append(errs, "arb.term_structure: delta_threshold must be > 0")
	}
	if c.Arb.TermStructure.TriggerWindowMinutes <= 0 {
		errs = append(errs, "arb.term_structure: trigger_window_minutes must be > 0")
	}
	if c.Arb.TermStructure.MaxMarketsPerEvent < 2 {
		errs = append(errs, "arb.term_structure: max_markets_per_event must be >= 2")
	}
	if c.Arb.TermStructure.MinMarketsPerEvent < 2 {
		errs = append(errs, "arb.term_structure: min_markets_per_event must be >= 2")
	}
	if c.Arb.Risk.CooldownSeconds < 0 {
		errs = append(errs, "arb.risk: cooldown_seconds must be >= 0")
	}
	if c.Arb.Risk.MaxSpreadBps <= 0 {
		errs = append(errs, "arb.risk: max_spread_bps must be > 0")
	}

	// Polymarket endpoints
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.SearchLimit < 1 {
		errs = append(errs, "polymarket: search_limit must be >= 1")
	}

	// Finnhub: a key source is required whenever the news trigger is on.
	if c.Pipeline.UseNewsTrigger {
		if c.Finnhub.APIKey == "" && c.Finnhub.EncryptedKeyPath == "" {
			errs = append(errs, "finnhub: either api_key or encrypted_key_path must be set when pipeline.use_news_trigger is true")
		}
		if c.Finnhub.EncryptedKeyPath != "" && c.Finnhub.KeyPassword == "" {
			errs = append(errs, "finnhub: key_password is required when encrypted_key_path is set")
		}
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Pipeline
	if c.Pipeline.ScanInterval.Duration <= 0 {
		errs = append(errs, "pipeline: scan_interval must be > 0")
	}
	if c.Pipeline.SnapshotMaxAgeHours <= 0 {
		errs = append(errs, "pipeline: snapshot_max_age_hours must be > 0")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.APIRateLimit < 0 {
			errs = append(errs, "server: api_rate_limit must be >= 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
