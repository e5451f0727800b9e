package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbscanner/internal/report"
	"github.com/alanyoungcy/arbscanner/internal/server"
	"github.com/alanyoungcy/arbscanner/internal/server/handler"
	"github.com/alanyoungcy/arbscanner/internal/server/ws"
	"github.com/alanyoungcy/arbscanner/internal/service"
)

// ScanMode runs one scan, prints the report and returns. Finding nothing is
// not an error.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	scanCtx := ctx
	if t := a.cfg.Scanner.Timeout.Duration; t > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	res, err := deps.Scanner.Scan(scanCtx, service.ScanRequest{})
	if err != nil {
		return fmt.Errorf("scan mode: %w", err)
	}
	if a.cfg.Report.Console {
		a.printReport(res)
	}
	return nil
}

func (a *App) printReport(res service.ScanResult) {
	p := report.NewPrinter(a.out)
	p.Summary(res.Session)
	p.Opportunities(res.Session.Opportunities)
	if a.cfg.Report.ShowSpreads {
		p.Spreads(res.Session.Spreads, a.cfg.Detector.MinSpread)
	}
}

// WatchMode scans every configured keyword on the cron schedule and serves
// the API alongside when server.enabled is set.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	keywords := a.cfg.WatchKeywords()
	a.logger.InfoContext(ctx, "app: watch mode",
		slog.String("schedule", a.cfg.Watch.Schedule),
		slog.Any("keywords", keywords),
	)

	g, ctx := errgroup.WithContext(ctx)

	c := cron.New(cron.WithSeconds())
	_, err := c.AddFunc(a.cfg.Watch.Schedule, func() {
		a.scanKeywords(ctx, deps, keywords)
	})
	if err != nil {
		return fmt.Errorf("watch mode: schedule %q: %w", a.cfg.Watch.Schedule, err)
	}

	g.Go(func() error {
		c.Start()
		<-ctx.Done()
		// Wait for a scan in flight before the deferred cleanup closes stores.
		<-c.Stop().Done()
		return ctx.Err()
	})

	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps)
	}
	return g.Wait()
}

func (a *App) scanKeywords(ctx context.Context, deps *Dependencies, keywords []string) {
	for _, kw := range keywords {
		if ctx.Err() != nil {
			return
		}
		scanCtx, cancel := ctx, context.CancelFunc(func() {})
		if t := a.cfg.Scanner.Timeout.Duration; t > 0 {
			scanCtx, cancel = context.WithTimeout(ctx, t)
		}
		res, err := deps.Scanner.Scan(scanCtx, service.ScanRequest{Keyword: kw})
		cancel()
		if err != nil {
			a.logger.WarnContext(ctx, "app: scheduled scan skipped",
				slog.String("keyword", kw),
				slog.String("error", err.Error()),
			)
			continue
		}
		a.logger.InfoContext(ctx, "app: scheduled scan done",
			slog.String("keyword", kw),
			slog.Int("opportunities", res.Session.OpportunitiesFound),
			slog.Int("errors", len(res.Session.Errors)),
		)
	}
}

// ServerMode serves the API; scans run on demand via POST /api/scan.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)
	return g.Wait()
}

// startServer runs the HTTP server and the WebSocket hub in g until ctx is
// done.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	startedAt := time.Now().UTC()

	hubCfg := ws.Config{Mode: a.cfg.Mode, StartedAt: startedAt}
	if deps.SignalBus != nil {
		// Sessions from every scanner process arrive over the bus.
		hubCfg.Channel = service.ChannelSessions
	}
	hub := ws.NewHub(deps.SignalBus, hubCfg, a.logger)
	if hubCfg.Channel == "" {
		deps.Scanner.OnSession(hub.PublishSession)
	}

	srv := server.NewServer(server.Config{
		Addr:        a.cfg.Server.Addr,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, server.Handlers{
		Health:  handler.NewHealthHandler(deps.Markets, deps.Gate, a.logger),
		Status:  handler.NewStatusHandler(a.cfg.Mode, startedAt, deps.Scanner),
		Arb:     handler.NewArbHandler(deps.Scanner, a.logger),
		Markets: handler.NewMarketHandler(deps.Markets, a.logger),
	}, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		err := hub.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
