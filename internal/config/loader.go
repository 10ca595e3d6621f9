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
// built-in defaults, applies FINGENT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
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

// applyEnvOverrides reads well-known FINGENT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Arb ──
	setBool(&cfg.Arb.Enabled, "FINGENT_ARB_ENABLED")
	setStringSlice(&cfg.Arb.TriggerKeywords, "FINGENT_ARB_TRIGGER_KEYWORDS")
	setFloat64(&cfg.Arb.TermStructure.DeltaThreshold, "FINGENT_ARB_DELTA_THRESHOLD")
	setFloat64(&cfg.Arb.TermStructure.TriggerWindowMinutes, "FINGENT_ARB_TRIGGER_WINDOW_MINUTES")
	setInt(&cfg.Arb.TermStructure.MaxMarketsPerEvent, "FINGENT_ARB_MAX_MARKETS_PER_EVENT")
	setFloat64(&cfg.Arb.TermStructure.MinVolume24h, "FINGENT_ARB_MIN_VOLUME_24H")
	setInt(&cfg.Arb.TermStructure.MinMarketsPerEvent, "FINGENT_ARB_MIN_MARKETS_PER_EVENT")
	setFloat64(&cfg.Arb.Risk.MinVolume24h, "FINGENT_RISK_MIN_VOLUME_24H")
	setFloat64(&cfg.Arb.Risk.MaxSpreadBps, "FINGENT_RISK_MAX_SPREAD_BPS")
	setFloat64(&cfg.Arb.Risk.MinDepthUSD, "FINGENT_RISK_MIN_DEPTH_USD")
	setFloat64(&cfg.Arb.Risk.MinTimeToSettleHours, "FINGENT_RISK_MIN_TIME_TO_SETTLE_HOURS")
	setFloat64(&cfg.Arb.Risk.CooldownSeconds, "FINGENT_RISK_COOLDOWN_SECONDS")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.GammaHost, "FINGENT_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.ClobHost, "FINGENT_POLYMARKET_CLOB_HOST")
	setDuration(&cfg.Polymarket.RequestTimeout, "FINGENT_POLYMARKET_REQUEST_TIMEOUT")
	setInt(&cfg.Polymarket.SearchLimit, "FINGENT_POLYMARKET_SEARCH_LIMIT")
	setInt(&cfg.Polymarket.RateLimitPerS, "FINGENT_POLYMARKET_RATE_LIMIT_PER_S")

	// ── Finnhub ──
	setStr(&cfg.Finnhub.BaseURL, "FINGENT_FINNHUB_BASE_URL")
	setStr(&cfg.Finnhub.APIKey, "FINGENT_FINNHUB_API_KEY")
	setStr(&cfg.Finnhub.EncryptedKeyPath, "FINGENT_FINNHUB_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Finnhub.KeyPassword, "FINGENT_FINNHUB_KEY_PASSWORD")
	setStr(&cfg.Finnhub.Category, "FINGENT_FINNHUB_CATEGORY")
	setDuration(&cfg.Finnhub.RequestTimeout, "FINGENT_FINNHUB_REQUEST_TIMEOUT")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "FINGENT_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "FINGENT_DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "FINGENT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "FINGENT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "FINGENT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "FINGENT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "FINGENT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "FINGENT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "FINGENT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "FINGENT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "FINGENT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "FINGENT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "FINGENT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "FINGENT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "FINGENT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "FINGENT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "FINGENT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "FINGENT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "FINGENT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "FINGENT_S3_REGION")
	setStr(&cfg.S3.Bucket, "FINGENT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "FINGENT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "FINGENT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "FINGENT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "FINGENT_S3_FORCE_PATH_STYLE")

	// ── Pipeline ──
	setDuration(&cfg.Pipeline.ScanInterval, "FINGENT_PIPELINE_SCAN_INTERVAL")
	setBool(&cfg.Pipeline.UseNewsTrigger, "FINGENT_PIPELINE_USE_NEWS_TRIGGER")
	setFloat64(&cfg.Pipeline.SnapshotMaxAgeHours, "FINGENT_PIPELINE_SNAPSHOT_MAX_AGE_HOURS")
	setBool(&cfg.Pipeline.ArchiveRuns, "FINGENT_PIPELINE_ARCHIVE_RUNS")
	setBool(&cfg.Pipeline.PersistRuns, "FINGENT_PIPELINE_PERSIST_RUNS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "FINGENT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "FINGENT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "FINGENT_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.APIRateLimit, "FINGENT_SERVER_API_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "FINGENT_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "FINGENT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "FINGENT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "FINGENT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "FINGENT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "FINGENT_MODE")
	setStr(&cfg.LogLevel, "FINGENT_LOG_LEVEL")
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
