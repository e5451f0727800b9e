package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ARBSCAN_"

// Load merges the TOML file at path (skipped when path is empty) over the
// defaults, loads .env if present, then applies ARBSCAN_* overrides. The
// result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// A missing .env is normal.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Scanner.Keyword, "SCANNER_KEYWORD")
	setInt(&cfg.Scanner.Limit, "SCANNER_LIMIT")
	setFloat64(&cfg.Scanner.Capital, "SCANNER_CAPITAL")
	setStr(&cfg.Scanner.Pairer, "SCANNER_PAIRER")
	setFloat64(&cfg.Scanner.MinSimilarity, "SCANNER_MIN_SIMILARITY")
	setDuration(&cfg.Scanner.Timeout, "SCANNER_TIMEOUT")

	setStr(&cfg.Kalshi.BaseURL, "KALSHI_BASE_URL")
	setStr(&cfg.Kalshi.APIKeyID, "KALSHI_API_KEY_ID")
	setStr(&cfg.Kalshi.PrivateKey, "KALSHI_PRIVATE_KEY")
	setStr(&cfg.Kalshi.PrivateKeyPath, "KALSHI_PRIVATE_KEY_PATH")
	setStr(&cfg.Kalshi.EncryptedKeyPath, "KALSHI_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Kalshi.KeyPassword, "KALSHI_KEY_PASSWORD")
	setInt(&cfg.Kalshi.MaxConcurrentRequests, "KALSHI_MAX_CONCURRENT_REQUESTS")
	setInt(&cfg.Kalshi.MaxRetries, "KALSHI_MAX_RETRIES")

	setStr(&cfg.Polymarket.BaseURL, "POLYMARKET_BASE_URL")
	setInt(&cfg.Polymarket.MaxConcurrentRequests, "POLYMARKET_MAX_CONCURRENT_REQUESTS")
	setInt(&cfg.Polymarket.MaxRetries, "POLYMARKET_MAX_RETRIES")
	setInt(&cfg.Polymarket.PriceChunkSize, "POLYMARKET_PRICE_CHUNK_SIZE")

	setStr(&cfg.Network.Source, "NETWORK_SOURCE")
	setBool(&cfg.Network.Ready, "NETWORK_READY")
	setStr(&cfg.Network.Endpoint, "NETWORK_ENDPOINT")
	setStr(&cfg.Network.ProbeURL, "NETWORK_PROBE_URL")

	setFloat64(&cfg.Detector.MinSpread, "DETECTOR_MIN_SPREAD")
	setFloat64(&cfg.Detector.MinProfitPct, "DETECTOR_MIN_PROFIT_PCT")
	setFloat64(&cfg.Detector.CostRate, "DETECTOR_COST_RATE")
	setFloat64(&cfg.Detector.Notional, "DETECTOR_NOTIONAL")

	setBool(&cfg.Postgres.Enabled, "POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POSTGRES_SSL_MODE")
	setBool(&cfg.Postgres.RunMigrations, "POSTGRES_RUN_MIGRATIONS")

	setBool(&cfg.Redis.Enabled, "REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "REDIS_ADDR")
	setStr(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "REDIS_KEY_PREFIX")

	setBool(&cfg.S3.Enabled, "S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "S3_ENDPOINT")
	setStr(&cfg.S3.Region, "S3_REGION")
	setStr(&cfg.S3.Bucket, "S3_BUCKET")
	setStr(&cfg.S3.Prefix, "S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "S3_FORCE_PATH_STYLE")

	setStr(&cfg.Report.ArchiveDir, "REPORT_ARCHIVE_DIR")

	setBool(&cfg.Server.Enabled, "SERVER_ENABLED")
	setStr(&cfg.Server.Addr, "SERVER_ADDR")
	setStr(&cfg.Server.APIKey, "SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "SERVER_CORS_ORIGINS")

	setStr(&cfg.Notify.TelegramToken, "NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "NOTIFY_EVENTS")
	setFloat64(&cfg.Notify.MinProfitPct, "NOTIFY_MIN_PROFIT_PCT")

	setStr(&cfg.Watch.Schedule, "WATCH_SCHEDULE")
	setStringSlice(&cfg.Watch.Keywords, "WATCH_KEYWORDS")

	setStr(&cfg.Mode, "MODE")
	setStr(&cfg.LogLevel, "LOG_LEVEL")
}

// Each setter changes dst only when the variable is set and parses.

func lookup(key string) (string, bool) {
	v := os.Getenv(EnvPrefix + key)
	return v, v != ""
}

func setStr(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v, ok := lookup(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v, ok := lookup(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}
