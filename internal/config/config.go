// Package config defines the scanner configuration: TOML on top of built-in
// defaults, with ARBSCAN_* environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Config is the root configuration.
type Config struct {
	Scanner    ScannerConfig    `toml:"scanner"`
	Kalshi     KalshiConfig     `toml:"kalshi"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Network    NetworkConfig    `toml:"network"`
	Detector   DetectorConfig   `toml:"detector"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Report     ReportConfig     `toml:"report"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Watch      WatchConfig      `toml:"watch"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// ScannerConfig holds the per-scan defaults.
type ScannerConfig struct {
	Keyword       string   `toml:"keyword"`
	Limit         int      `toml:"limit"`
	Capital       float64  `toml:"capital"`
	Pairer        string   `toml:"pairer"` // "cross" or "similarity"
	MinSimilarity float64  `toml:"min_similarity"`
	Timeout       duration `toml:"timeout"`
	LockTTL       duration `toml:"lock_ttl"`
}

// KalshiConfig holds the Kalshi API settings. The private key may be given
// inline, as a PEM file or as a password-encrypted file.
type KalshiConfig struct {
	BaseURL               string   `toml:"base_url"`
	APIKeyID              string   `toml:"api_key_id"`
	PrivateKey            string   `toml:"private_key"`
	PrivateKeyPath        string   `toml:"private_key_path"`
	EncryptedKeyPath      string   `toml:"encrypted_key_path"`
	KeyPassword           string   `toml:"key_password"`
	MaxConcurrentRequests int      `toml:"max_concurrent_requests"`
	MaxRetries            int      `toml:"max_retries"`
	Backoff               duration `toml:"backoff"`
	Timeout               duration `toml:"timeout"`
	PageLimit             int      `toml:"page_limit"`
	MaxPages              int      `toml:"max_pages"`
}

// PolymarketConfig holds the Polymarket CLOB settings.
type PolymarketConfig struct {
	BaseURL               string   `toml:"base_url"`
	MaxConcurrentRequests int      `toml:"max_concurrent_requests"`
	MaxRetries            int      `toml:"max_retries"`
	Backoff               duration `toml:"backoff"`
	Timeout               duration `toml:"timeout"`
	MaxPages              int      `toml:"max_pages"`
	PriceChunkSize        int      `toml:"price_chunk_size"`
	ChunkDelay            duration `toml:"chunk_delay"`
}

// NetworkConfig selects where network readiness comes from:
// "static" (fixed flag), "probe" (HTTP reachability) or "redis" (keys
// written by an external VPN manager).
type NetworkConfig struct {
	Source   string   `toml:"source"`
	Ready    bool     `toml:"ready"`
	Endpoint string   `toml:"endpoint"`
	ProbeURL string   `toml:"probe_url"`
	Timeout  duration `toml:"timeout"`
	CacheTTL duration `toml:"cache_ttl"`
}

// DetectorConfig holds detection thresholds and sizing parameters.
type DetectorConfig struct {
	MinSpread           float64 `toml:"min_spread"`
	MinProfitPct        float64 `toml:"min_profit_pct"`
	CostRate            float64 `toml:"cost_rate"`
	Notional            float64 `toml:"notional"`
	DefaultSimilarity   float64 `toml:"default_similarity"`
	ConservativeFactor  float64 `toml:"conservative_factor"`
	MaxPositionFraction float64 `toml:"max_position_fraction"`
}

type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	MaxConns      int    `toml:"max_conns"`
	MinConns      int    `toml:"min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig enables the shared throttle, scan lock, pub/sub bus and API
// rate limit.
type RedisConfig struct {
	Enabled        bool     `toml:"enabled"`
	Addr           string   `toml:"addr"`
	Password       string   `toml:"password"`
	DB             int      `toml:"db"`
	PoolSize       int      `toml:"pool_size"`
	MaxRetries     int      `toml:"max_retries"`
	TLSEnabled     bool     `toml:"tls_enabled"`
	KeyPrefix      string   `toml:"key_prefix"`
	ThrottleLimit  int      `toml:"throttle_limit"`
	ThrottleWindow duration `toml:"throttle_window"`
	ScanLock       bool     `toml:"scan_lock"`
}

type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ReportConfig controls console output and the local archive directory,
// used when S3 is disabled.
type ReportConfig struct {
	Console            bool   `toml:"console"`
	ShowSpreads        bool   `toml:"show_spreads"`
	ArchiveDir         string `toml:"archive_dir"`
	MultipartThreshold int    `toml:"multipart_threshold"`
	PartSize           int64  `toml:"part_size"`
}

type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Addr        string   `toml:"addr"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	MinProfitPct      float64  `toml:"min_profit_pct"`
}

// WatchConfig schedules repeated scans. Schedule is a six-field cron
// expression (seconds first).
type WatchConfig struct {
	Schedule string   `toml:"schedule"`
	Keywords []string `toml:"keywords"`
}

// duration wraps time.Duration so TOML strings like "30s" decode.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Scanner: ScannerConfig{
			Keyword:       "Biden",
			Limit:         50,
			Capital:       10_000,
			Pairer:        "cross",
			MinSimilarity: 0.3,
			Timeout:       duration{2 * time.Minute},
			LockTTL:       duration{5 * time.Minute},
		},
		Kalshi: KalshiConfig{
			BaseURL:               "https://api.elections.kalshi.com/trade-api/v2",
			MaxConcurrentRequests: 5,
			MaxRetries:            3,
			Backoff:               duration{2 * time.Second},
			Timeout:               duration{30 * time.Second},
			PageLimit:             200,
		},
		Polymarket: PolymarketConfig{
			BaseURL:               "https://clob.polymarket.com",
			MaxConcurrentRequests: 5,
			MaxRetries:            3,
			Backoff:               duration{2 * time.Second},
			Timeout:               duration{30 * time.Second},
			PriceChunkSize:        10,
			ChunkDelay:            duration{100 * time.Millisecond},
		},
		Network: NetworkConfig{
			Source:   "static",
			Ready:    true,
			ProbeURL: "https://clob.polymarket.com",
			Timeout:  duration{5 * time.Second},
			CacheTTL: duration{30 * time.Second},
		},
		Detector: DetectorConfig{
			MinSpread:           0.03,
			MinProfitPct:        2,
			CostRate:            0.01,
			Notional:            1000,
			DefaultSimilarity:   0.5,
			ConservativeFactor:  0.5,
			MaxPositionFraction: 0.1,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "arbscan",
			User:          "postgres",
			SSLMode:       "disable",
			MaxConns:      5,
			MinConns:      1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:           "localhost:6379",
			PoolSize:       10,
			MaxRetries:     3,
			KeyPrefix:      "arbscan",
			ThrottleLimit:  10,
			ThrottleWindow: duration{time.Second},
			ScanLock:       true,
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "arbscan-reports",
			Prefix:         "reports",
			ForcePathStyle: true,
		},
		Report: ReportConfig{
			Console:            true,
			ShowSpreads:        true,
			MultipartThreshold: 8 << 20,
			PartSize:           8 << 20,
		},
		Server: ServerConfig{
			Addr:       ":8080",
			RateLimit:  60,
			RateWindow: duration{time.Minute},
		},
		Notify: NotifyConfig{
			MinProfitPct: 5,
		},
		Watch: WatchConfig{
			Schedule: "0 */5 * * * *",
		},
		Mode:     "scan",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{"scan": true, "watch": true, "server": true}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

var validNetworkSources = map[string]bool{"static": true, "probe": true, "redis": true}

var validPairers = map[string]bool{"cross": true, "similarity": true}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) { errs = append(errs, fmt.Sprintf(format, args...)) }

	if !validModes[strings.ToLower(c.Mode)] {
		add("unknown mode %q (valid: scan, watch, server)", c.Mode)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	if strings.TrimSpace(c.Scanner.Keyword) == "" && len(c.Watch.Keywords) == 0 {
		add("scanner: keyword must not be empty")
	}
	if c.Scanner.Limit < 0 {
		add("scanner: limit must be >= 0")
	}
	if c.Scanner.Capital < 0 {
		add("scanner: capital must be >= 0")
	}
	if !validPairers[c.Scanner.Pairer] {
		add("scanner: unknown pairer %q (valid: cross, similarity)", c.Scanner.Pairer)
	}
	if c.Scanner.MinSimilarity < 0 || c.Scanner.MinSimilarity > 1 {
		add("scanner: min_similarity must be within [0,1]")
	}

	if c.Kalshi.BaseURL == "" {
		add("kalshi: base_url must not be empty")
	}
	if c.Kalshi.EncryptedKeyPath != "" && c.Kalshi.KeyPassword == "" {
		add("kalshi: key_password is required when encrypted_key_path is set")
	}
	if c.Kalshi.MaxRetries < 1 || c.Polymarket.MaxRetries < 1 {
		add("kalshi/polymarket: max_retries must be >= 1")
	}
	if c.Polymarket.BaseURL == "" {
		add("polymarket: base_url must not be empty")
	}

	if !validNetworkSources[c.Network.Source] {
		add("network: unknown source %q (valid: static, probe, redis)", c.Network.Source)
	}
	if c.Network.Source == "probe" && c.Network.ProbeURL == "" {
		add("network: probe_url is required for source probe")
	}
	if c.Network.Source == "redis" && !c.Redis.Enabled {
		add("network: source redis requires redis.enabled")
	}

	d := c.Detector
	if d.MinSpread < 0 || d.MinSpread > 1 {
		add("detector: min_spread must be within [0,1]")
	}
	if d.CostRate < 0 {
		add("detector: cost_rate must be >= 0")
	}
	if d.Notional <= 0 {
		add("detector: notional must be > 0")
	}
	if d.DefaultSimilarity < 0 || d.DefaultSimilarity > 1 {
		add("detector: default_similarity must be within [0,1]")
	}
	if d.ConservativeFactor <= 0 || d.ConservativeFactor > 1 {
		add("detector: conservative_factor must be within (0,1]")
	}
	if d.MaxPositionFraction <= 0 || d.MaxPositionFraction > 1 {
		add("detector: max_position_fraction must be within (0,1]")
	}

	if c.Postgres.Enabled && strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			add("postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			add("postgres: port must be 1-65535, got %d", c.Postgres.Port)
		}
		if c.Postgres.Database == "" {
			add("postgres: database must not be empty")
		}
	}
	if c.Postgres.Enabled && c.Postgres.MinConns > c.Postgres.MaxConns {
		add("postgres: min_conns must not exceed max_conns")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		add("redis: addr must not be empty")
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			add("s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			add("s3: region must not be empty")
		}
	}

	if c.Server.Enabled || c.Mode == "server" {
		if c.Server.Addr == "" {
			add("server: addr must not be empty")
		}
	}

	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		add("notify: telegram_token and telegram_chat_id must be set together")
	}

	if c.Mode == "watch" {
		if _, err := cron.NewParser(cronSpec).Parse(c.Watch.Schedule); err != nil {
			add("watch: invalid schedule %q: %v", c.Watch.Schedule, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// cronSpec matches cron.WithSeconds(): six fields plus descriptors.
const cronSpec = cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor

// WatchKeywords returns the keywords scanned in watch mode.
func (c *Config) WatchKeywords() []string {
	if len(c.Watch.Keywords) > 0 {
		return c.Watch.Keywords
	}
	return []string{c.Scanner.Keyword}
}
