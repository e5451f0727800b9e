package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbscanner/internal/arbitrage"
	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// ChannelSessions is the bus channel completed scan sessions are published on.
const ChannelSessions = "scan:sessions"

// Alerter announces scan results.
type Alerter interface {
	Opportunities(ctx context.Context, opps []domain.SizedOpportunity) (int, error)
	ScanFailed(ctx context.Context, sess domain.ScanSession) error
}

// ReportArchiver persists the artifacts of a finished scan.
type ReportArchiver interface {
	Archive(ctx context.Context, sess domain.ScanSession, markets map[domain.Platform][]domain.Market) ([]string, error)
}

// ScanConfig holds the scan defaults.
type ScanConfig struct {
	Keyword string
	Limit   int
	Capital float64
	// LockTTL bounds how long one scan holds the cross-process scan lock.
	LockTTL time.Duration
}

// ScanRequest overrides the defaults for one scan. Zero values fall back to
// ScanConfig.
type ScanRequest struct {
	Keyword string
	Limit   int
	Capital float64
}

// ScanResult is a finished scan with the markets it compared.
type ScanResult struct {
	Session domain.ScanSession
	Markets map[domain.Platform][]domain.Market
}

// ScanDeps are the collaborators of a ScanService. Only the exchanges, the
// detector and the pairer are required.
type ScanDeps struct {
	Kalshi     MarketSource
	Polymarket MarketSource
	Gate       domain.NetworkGate
	Pairer     arbitrage.Pairer
	Detector   *arbitrage.Detector
	Sizing     arbitrage.SizingConfig

	Opportunities domain.OpportunityStore
	Sessions      domain.SessionStore
	Bus           domain.SignalBus
	Locks         domain.LockManager
	Alerts        Alerter
	Archive       ReportArchiver
}

// ScanService runs scan cycles: fetch both exchanges concurrently, pair,
// detect, size and record.
type ScanService struct {
	deps   ScanDeps
	cfg    ScanConfig
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	last      *ScanResult
	listeners []func(domain.ScanSession)
}

func NewScanService(deps ScanDeps, cfg ScanConfig, logger *slog.Logger) (*ScanService, error) {
	if deps.Kalshi == nil || deps.Polymarket == nil {
		return nil, errors.New("scan_service: both exchange sources are required")
	}
	if deps.Detector == nil {
		return nil, errors.New("scan_service: detector is required")
	}
	if deps.Pairer == nil {
		deps.Pairer = &arbitrage.CrossPairer{}
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScanService{deps: deps, cfg: cfg, logger: logger, now: time.Now}, nil
}

// OnSession registers fn to be called with every completed session.
func (s *ScanService) OnSession(fn func(domain.ScanSession)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Last returns the most recent completed scan, if any.
func (s *ScanService) Last() (ScanResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return ScanResult{}, false
	}
	return *s.last, true
}

// Scan runs one cycle. Exchange, storage and notification failures are
// recorded on the session rather than returned; the error is non-nil only
// when the scan could not start (scan lock held or context done).
func (s *ScanService) Scan(ctx context.Context, req ScanRequest) (ScanResult, error) {
	req = s.withDefaults(req)

	if s.deps.Locks != nil {
		unlock, err := s.deps.Locks.Acquire(ctx, "scan:"+req.Keyword, s.cfg.LockTTL)
		if err != nil {
			return ScanResult{}, fmt.Errorf("scan_service: acquire lock: %w", err)
		}
		defer unlock()
	}
	if err := ctx.Err(); err != nil {
		return ScanResult{}, err
	}

	sess := domain.ScanSession{
		ID:        uuid.NewString(),
		Keyword:   req.Keyword,
		StartedAt: s.now().UTC(),
		Errors:    []string{},
		Warnings:  []string{},
	}
	s.checkNetwork(ctx, &sess)

	kalshiMarkets, polyMarkets := s.fetch(ctx, req.Keyword, &sess)
	kalshiMarkets = truncate(kalshiMarkets, req.Limit)
	polyMarkets = truncate(polyMarkets, req.Limit)
	sess.KalshiCount = len(kalshiMarkets)
	sess.PolymarketCount = len(polyMarkets)

	s.logger.InfoContext(ctx, "scan_service: markets fetched",
		slog.String("session", sess.ID),
		slog.String("keyword", req.Keyword),
		slog.Int("kalshi", sess.KalshiCount),
		slog.Int("polymarket", sess.PolymarketCount),
	)

	pairs := s.deps.Pairer.Pair(kalshiMarkets, polyMarkets)
	opps := s.deps.Detector.DetectPairs(pairs)
	sess.Opportunities = s.deps.Sizing.SizeAll(opps, req.Capital)
	sess.Spreads = s.deps.Detector.Spreads(kalshiMarkets, polyMarkets)
	sess.OpportunitiesFound = len(sess.Opportunities)
	completed := s.now().UTC()
	sess.CompletedAt = &completed

	result := ScanResult{
		Session: sess,
		Markets: map[domain.Platform][]domain.Market{
			domain.PlatformKalshi:     kalshiMarkets,
			domain.PlatformPolymarket: polyMarkets,
		},
	}
	s.record(ctx, &result)

	s.logger.InfoContext(ctx, "scan_service: scan complete",
		slog.String("session", sess.ID),
		slog.Int("pairs", len(pairs)),
		slog.Int("opportunities", result.Session.OpportunitiesFound),
		slog.Int("spreads", len(result.Session.Spreads)),
		slog.Int("errors", len(result.Session.Errors)),
	)

	s.mu.Lock()
	s.last = &result
	listeners := append([]func(domain.ScanSession){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(result.Session)
	}
	return result, nil
}

func (s *ScanService) withDefaults(req ScanRequest) ScanRequest {
	if req.Keyword == "" {
		req.Keyword = s.cfg.Keyword
	}
	if req.Limit <= 0 {
		req.Limit = s.cfg.Limit
	}
	if req.Capital <= 0 {
		req.Capital = s.cfg.Capital
	}
	return req
}

func (s *ScanService) checkNetwork(ctx context.Context, sess *domain.ScanSession) {
	if s.deps.Gate == nil {
		sess.NetworkReady = true
		return
	}
	sess.NetworkReady = s.deps.Gate.IsNetworkReady(ctx)
	if label, ok := s.deps.Gate.CurrentEndpointLabel(ctx); ok {
		sess.NetworkEndpoint = label
	}
	if !sess.NetworkReady {
		sess.AddWarning("network not ready: polymarket requests will be refused")
	}
}

// fetch queries both exchanges concurrently. A failing exchange contributes
// no markets and an error on the session; it never cancels the other.
func (s *ScanService) fetch(ctx context.Context, keyword string, sess *domain.ScanSession) ([]domain.Market, []domain.Market) {
	var (
		g                  errgroup.Group
		kalshi, polymarket []domain.Market
		kErr, pErr         error
	)
	g.Go(func() error {
		kalshi, kErr = s.deps.Kalshi.SearchMarkets(ctx, keyword)
		return nil
	})
	g.Go(func() error {
		polymarket, pErr = s.deps.Polymarket.SearchMarkets(ctx, keyword)
		return nil
	})
	_ = g.Wait()

	if kErr != nil {
		s.logger.ErrorContext(ctx, "scan_service: kalshi fetch failed", slog.String("error", kErr.Error()))
		sess.AddError(fmt.Errorf("kalshi: %w", kErr))
		kalshi = nil
	}
	if pErr != nil {
		s.logger.ErrorContext(ctx, "scan_service: polymarket fetch failed", slog.String("error", pErr.Error()))
		sess.AddError(fmt.Errorf("polymarket: %w", pErr))
		polymarket = nil
	}
	return kalshi, polymarket
}

// record fans the result out to every configured sink. Sink failures become
// session warnings.
func (s *ScanService) record(ctx context.Context, res *ScanResult) {
	sess := &res.Session

	if s.deps.Alerts != nil {
		if sent, err := s.deps.Alerts.Opportunities(ctx, sess.Opportunities); err != nil {
			sess.AddWarning("notify: " + err.Error())
		} else if sent > 0 {
			s.logger.InfoContext(ctx, "scan_service: alerts sent", slog.Int("count", sent))
		}
		if err := s.deps.Alerts.ScanFailed(ctx, *sess); err != nil {
			sess.AddWarning("notify: " + err.Error())
		}
	}

	if s.deps.Archive != nil {
		if paths, err := s.deps.Archive.Archive(ctx, *sess, res.Markets); err != nil {
			sess.AddWarning("archive: " + err.Error())
		} else {
			s.logger.DebugContext(ctx, "scan_service: archived", slog.Any("paths", paths))
		}
	}

	// Session row first: opportunities reference it.
	if s.deps.Sessions != nil {
		if err := s.deps.Sessions.Save(ctx, *sess); err != nil {
			sess.AddWarning("store: " + err.Error())
		}
	}
	if s.deps.Opportunities != nil {
		for _, o := range sess.Opportunities {
			if err := s.deps.Opportunities.Insert(ctx, sess.ID, o); err != nil {
				sess.AddWarning("store: " + err.Error())
				break
			}
		}
	}

	if s.deps.Bus != nil {
		payload, err := json.Marshal(sess)
		if err == nil {
			err = s.deps.Bus.Publish(ctx, ChannelSessions, payload)
		}
		if err != nil {
			sess.AddWarning("bus: " + err.Error())
		}
	}
}

// RecentOpportunities returns stored opportunities, or the last scan's when
// no store is configured.
func (s *ScanService) RecentOpportunities(ctx context.Context, opts domain.ListOpts) ([]domain.SizedOpportunity, error) {
	if s.deps.Opportunities != nil {
		opps, err := s.deps.Opportunities.ListRecent(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("scan_service: list opportunities: %w", err)
		}
		return opps, nil
	}
	last, ok := s.Last()
	if !ok {
		return []domain.SizedOpportunity{}, nil
	}
	return truncate(last.Session.Opportunities, opts.Limit), nil
}

// RecentSessions returns stored sessions, or the last one when no store is
// configured.
func (s *ScanService) RecentSessions(ctx context.Context, limit int) ([]domain.ScanSession, error) {
	if s.deps.Sessions != nil {
		sessions, err := s.deps.Sessions.ListRecent(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("scan_service: list sessions: %w", err)
		}
		return sessions, nil
	}
	last, ok := s.Last()
	if !ok {
		return []domain.ScanSession{}, nil
	}
	return []domain.ScanSession{last.Session}, nil
}

// truncate keeps the first n items; n <= 0 keeps everything.
func truncate[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
