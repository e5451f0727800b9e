package config

const redacted = "***"

// RedactedConfig returns a copy of cfg with credentials masked, for logging.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Kalshi.APIKeyID)
	redact(&out.Kalshi.PrivateKey)
	redact(&out.Kalshi.KeyPassword)

	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Server.APIKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)
	out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	out.Watch.Keywords = append([]string(nil), cfg.Watch.Keywords...)
	return out
}

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
