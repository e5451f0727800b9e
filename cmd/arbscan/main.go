// Command arbscan scans Kalshi and Polymarket for cross-exchange price gaps
// on a keyword. It runs one scan by default; --mode watch schedules scans and
// --mode server serves the API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/arbscanner/internal/app"
	"github.com/alanyoungcy/arbscanner/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file (optional)")
	keyword := flag.String("keyword", "", "keyword to search on both exchanges")
	minSpread := flag.Float64("min-spread", -1, "minimum YES price gap, 0-1")
	limit := flag.Int("limit", -1, "maximum markets kept per exchange (0 = no limit)")
	capital := flag.Float64("capital", -1, "capital used for position sizing")
	mode := flag.String("mode", "", "scan, watch or server")
	flag.Parse()

	// Logs go to stderr so the console report on stdout stays readable.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	if *keyword != "" {
		cfg.Scanner.Keyword = *keyword
	}
	if *minSpread >= 0 {
		cfg.Detector.MinSpread = *minSpread
	}
	if *limit >= 0 {
		cfg.Scanner.Limit = *limit
	}
	if *capital >= 0 {
		cfg.Scanner.Capital = *capital
	}
	if *mode != "" {
		cfg.Mode = *mode
	}

	logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: app.ParseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Debug("configuration loaded", slog.Any("config", config.RedactedConfig(cfg)))

	application := app.New(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err = application.Run(ctx)
	application.Close()
	stop()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("arbscan exited with error", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
