package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/arbscanner/internal/arbitrage"
	s3blob "github.com/alanyoungcy/arbscanner/internal/blob/s3"
	"github.com/alanyoungcy/arbscanner/internal/cache/redis"
	"github.com/alanyoungcy/arbscanner/internal/config"
	"github.com/alanyoungcy/arbscanner/internal/crypto"
	"github.com/alanyoungcy/arbscanner/internal/domain"
	"github.com/alanyoungcy/arbscanner/internal/network"
	"github.com/alanyoungcy/arbscanner/internal/notify"
	"github.com/alanyoungcy/arbscanner/internal/platform/kalshi"
	"github.com/alanyoungcy/arbscanner/internal/platform/polymarket"
	"github.com/alanyoungcy/arbscanner/internal/platform/rest"
	"github.com/alanyoungcy/arbscanner/internal/report"
	"github.com/alanyoungcy/arbscanner/internal/service"
	"github.com/alanyoungcy/arbscanner/internal/store/postgres"
)

// Dependencies bundles what the run modes need. Optional backends are nil
// when disabled.
type Dependencies struct {
	Kalshi     *kalshi.Client
	Polymarket *polymarket.Client
	Gate       domain.NetworkGate

	Markets *service.MarketService
	Scanner *service.ScanService

	RateLimiter domain.RateLimiter
	SignalBus   domain.SignalBus
	Notifier    *notify.Notifier
}

// Wire builds every dependency from cfg. The returned cleanup releases them
// in reverse order and must be called even when Run fails later.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{}
	scanDeps := service.ScanDeps{}

	// --- Redis ---
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		c, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = c.Close() })
		redisClient = c

		limiter := redis.NewRateLimiter(c)
		bus := redis.NewSignalBus(c)
		deps.RateLimiter = limiter
		deps.SignalBus = bus
		scanDeps.Bus = bus
		if cfg.Redis.ScanLock {
			scanDeps.Locks = redis.NewLockManager(c)
		}
	}

	// --- Network gate ---
	gate, err := newGate(cfg.Network, redisClient, logger)
	if err != nil {
		return fail(err)
	}
	deps.Gate = gate
	scanDeps.Gate = gate

	// --- Exchange clients ---
	pemBytes, err := crypto.LoadKey(crypto.KeyConfig{
		PEM:           cfg.Kalshi.PrivateKey,
		PEMPath:       cfg.Kalshi.PrivateKeyPath,
		EncryptedPath: cfg.Kalshi.EncryptedKeyPath,
		Password:      cfg.Kalshi.KeyPassword,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: kalshi key: %w", err))
	}

	var kalshiOpts, polyOpts []rest.Option
	if deps.RateLimiter != nil && cfg.Redis.ThrottleLimit > 0 {
		window := cfg.Redis.ThrottleWindow.Duration
		kalshiOpts = append(kalshiOpts, rest.WithSharedLimiter(deps.RateLimiter, "throttle:kalshi", cfg.Redis.ThrottleLimit, window))
		polyOpts = append(polyOpts, rest.WithSharedLimiter(deps.RateLimiter, "throttle:polymarket", cfg.Redis.ThrottleLimit, window))
	}

	kc, err := kalshi.NewClient(kalshi.Config{
		BaseURL:               cfg.Kalshi.BaseURL,
		APIKeyID:              cfg.Kalshi.APIKeyID,
		PrivateKeyPEM:         pemBytes,
		MaxConcurrentRequests: cfg.Kalshi.MaxConcurrentRequests,
		MaxRetries:            cfg.Kalshi.MaxRetries,
		Backoff:               cfg.Kalshi.Backoff.Duration,
		Timeout:               cfg.Kalshi.Timeout.Duration,
		PageLimit:             cfg.Kalshi.PageLimit,
		MaxPages:              cfg.Kalshi.MaxPages,
	}, logger, kalshiOpts...)
	if err != nil {
		return fail(fmt.Errorf("wire: kalshi: %w", err))
	}
	deps.Kalshi = kc

	pc, err := polymarket.NewClient(polymarket.Config{
		BaseURL:               cfg.Polymarket.BaseURL,
		MaxConcurrentRequests: cfg.Polymarket.MaxConcurrentRequests,
		MaxRetries:            cfg.Polymarket.MaxRetries,
		Backoff:               cfg.Polymarket.Backoff.Duration,
		Timeout:               cfg.Polymarket.Timeout.Duration,
		MaxPages:              cfg.Polymarket.MaxPages,
		PriceChunkSize:        cfg.Polymarket.PriceChunkSize,
		ChunkDelay:            cfg.Polymarket.ChunkDelay.Duration,
	}, gate, logger, polyOpts...)
	if err != nil {
		return fail(fmt.Errorf("wire: polymarket: %w", err))
	}
	deps.Polymarket = pc

	deps.Markets = service.NewMarketService(logger, kc, pc)
	scanDeps.Kalshi = kc
	scanDeps.Polymarket = pc

	// --- Detection ---
	pairer, err := arbitrage.NewPairer(cfg.Scanner.Pairer, cfg.Scanner.MinSimilarity)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	scanDeps.Pairer = pairer
	scanDeps.Detector = arbitrage.NewDetector(arbitrage.Config{
		MinSpread:         cfg.Detector.MinSpread,
		MinProfitPct:      cfg.Detector.MinProfitPct,
		CostRate:          cfg.Detector.CostRate,
		Notional:          cfg.Detector.Notional,
		DefaultSimilarity: cfg.Detector.DefaultSimilarity,
	}, arbitrage.WithLogger(logger))
	scanDeps.Sizing = arbitrage.SizingConfig{
		ConservativeFactor:  cfg.Detector.ConservativeFactor,
		MaxPositionFraction: cfg.Detector.MaxPositionFraction,
	}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.MaxConns,
			MinConns: cfg.Postgres.MinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pg.Close)

		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		scanDeps.Opportunities = postgres.NewOpportunityStore(pg.Pool())
		scanDeps.Sessions = postgres.NewSessionStore(pg.Pool())
	}

	// --- Report archive: S3 when enabled, else a local directory ---
	var blobs domain.BlobWriter
	prefix := ""
	switch {
	case cfg.S3.Enabled:
		s3c, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			Prefix:         cfg.S3.Prefix,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		blobs = s3blob.NewWriter(s3c)
	case cfg.Report.ArchiveDir != "":
		blobs = report.NewDirWriter(cfg.Report.ArchiveDir)
		prefix = "sessions"
	}
	if blobs != nil {
		scanDeps.Archive = report.NewArchiver(blobs, prefix,
			report.WithMultipart(cfg.Report.MultipartThreshold, cfg.Report.PartSize))
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender("", cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID, nil))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL, nil))
	}
	deps.Notifier = notify.NewNotifier(senders, notify.Config{
		Events:       cfg.Notify.Events,
		MinProfitPct: cfg.Notify.MinProfitPct,
	}, logger)
	if deps.Notifier.Enabled() {
		scanDeps.Alerts = deps.Notifier
	}

	scanner, err := service.NewScanService(scanDeps, service.ScanConfig{
		Keyword: cfg.Scanner.Keyword,
		Limit:   cfg.Scanner.Limit,
		Capital: cfg.Scanner.Capital,
		LockTTL: cfg.Scanner.LockTTL.Duration,
	}, logger)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	deps.Scanner = scanner

	return deps, cleanup, nil
}

// newGate picks the network readiness source.
func newGate(cfg config.NetworkConfig, rc *redis.Client, logger *slog.Logger) (domain.NetworkGate, error) {
	switch cfg.Source {
	case "", "static":
		return network.Static{Ready: cfg.Ready, Endpoint: cfg.Endpoint}, nil
	case "probe":
		return network.NewProbe(network.ProbeConfig{
			URL:      cfg.ProbeURL,
			Label:    cfg.Endpoint,
			Timeout:  cfg.Timeout.Duration,
			CacheTTL: cfg.CacheTTL.Duration,
		}, logger), nil
	case "redis":
		if rc == nil {
			return nil, fmt.Errorf("wire: network source redis needs redis.enabled")
		}
		return redis.NewNetworkGate(rc, logger), nil
	default:
		return nil, fmt.Errorf("wire: unknown network source %q", cfg.Source)
	}
}
