package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.Detector.MinSpread != 0.03 || cfg.Scanner.Limit != 50 || cfg.Scanner.Keyword != "Biden" {
		t.Fatalf("unexpected defaults: %+v %+v", cfg.Detector, cfg.Scanner)
	}
}

func TestValidateAggregatesErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.LogLevel = "loud"
	cfg.Detector.Notional = 0
	cfg.Scanner.Pairer = "magic"
	cfg.Network.Source = "redis"
	cfg.Notify.TelegramToken = "t"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{
		"config validation failed:",
		`unknown mode "trade"`,
		`unknown log_level "loud"`,
		"detector: notional must be > 0",
		`scanner: unknown pairer "magic"`,
		"network: source redis requires redis.enabled",
		"notify: telegram_token and telegram_chat_id must be set together",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error missing %q:\n%s", want, msg)
		}
	}
}

func TestValidateWatchSchedule(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "watch"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default schedule rejected: %v", err)
	}
	cfg.Watch.Schedule = "*/5 * * * *"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "watch: invalid schedule") {
		t.Fatalf("five-field schedule accepted: %v", err)
	}
	cfg.Watch.Schedule = "@every 30s"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("descriptor rejected: %v", err)
	}
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arbscan.toml")
	body := `
mode = "watch"

[scanner]
keyword = "Trump"
limit = 25

[kalshi]
timeout = "10s"

[watch]
keywords = ["Trump", "Fed"]
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ARBSCAN_SCANNER_LIMIT", "7")
	t.Setenv("ARBSCAN_DETECTOR_MIN_SPREAD", "0.05")
	t.Setenv("ARBSCAN_SERVER_CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("ARBSCAN_REDIS_ENABLED", "not-a-bool")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "watch" || cfg.Scanner.Keyword != "Trump" {
		t.Errorf("file values not applied: %+v", cfg.Scanner)
	}
	if cfg.Scanner.Limit != 7 || cfg.Detector.MinSpread != 0.05 {
		t.Errorf("env overrides not applied: limit=%d spread=%v", cfg.Scanner.Limit, cfg.Detector.MinSpread)
	}
	if cfg.Kalshi.Timeout.Duration != 10*time.Second {
		t.Errorf("timeout = %v", cfg.Kalshi.Timeout.Duration)
	}
	if cfg.Kalshi.MaxRetries != 3 {
		t.Errorf("default lost: max_retries = %d", cfg.Kalshi.MaxRetries)
	}
	if got := strings.Join(cfg.Server.CORSOrigins, "|"); got != "https://a.example|https://b.example" {
		t.Errorf("cors = %q", got)
	}
	if cfg.Redis.Enabled {
		t.Error("unparsable bool override applied")
	}
	if got := cfg.WatchKeywords(); len(got) != 2 || got[1] != "Fed" {
		t.Errorf("watch keywords = %v", got)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Mode != "scan" {
		t.Fatalf("mode = %q", cfg.Mode)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Kalshi.PrivateKey = "-----BEGIN"
	cfg.Postgres.Password = "pw"
	cfg.Server.APIKey = "key"
	cfg.Server.CORSOrigins = []string{"https://a"}

	out := RedactedConfig(&cfg)
	if out.Kalshi.PrivateKey != "***" || out.Postgres.Password != "***" || out.Server.APIKey != "***" {
		t.Fatalf("secrets not redacted: %+v", out)
	}
	if out.Redis.Password != "" {
		t.Errorf("empty secret became %q", out.Redis.Password)
	}
	if cfg.Kalshi.PrivateKey != "-----BEGIN" {
		t.Error("original modified")
	}
	out.Server.CORSOrigins[0] = "changed"
	if cfg.Server.CORSOrigins[0] != "https://a" {
		t.Error("slices shared with original")
	}
}
