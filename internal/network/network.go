// Package network provides the readiness gates consulted before requests to
// geo-restricted exchanges.
package network

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// Static is a gate with a fixed answer, used when no VPN management is in
// play.
type Static struct {
	Ready    bool
	Endpoint string
}

// IsNetworkReady returns s.Ready.
func (s Static) IsNetworkReady(context.Context) bool { return s.Ready }

// CurrentEndpointLabel returns s.Endpoint when set.
func (s Static) CurrentEndpointLabel(context.Context) (string, bool) {
	return s.Endpoint, s.Endpoint != ""
}

// ProbeConfig configures a Probe.
type ProbeConfig struct {
	URL      string        // endpoint that must answer for the network to count as ready
	Label    string        // reported by CurrentEndpointLabel
	Timeout  time.Duration // per-probe timeout
	CacheTTL time.Duration // how long a result is reused
}

// Probe is a gate that reports ready when URL answers any HTTP response
// below 500. Results are cached for CacheTTL so the per-request check stays
// cheap.
type Probe struct {
	cfg    ProbeConfig
	client *http.Client
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	checked time.Time
	ready   bool
}

// NewProbe creates a Probe.
func NewProbe(cfg ProbeConfig, logger *slog.Logger) *Probe {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Probe{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		now:    time.Now,
	}
}

// IsNetworkReady returns the cached probe result, refreshing it when stale.
// Concurrent callers share a single in-flight probe.
func (p *Probe) IsNetworkReady(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.checked.IsZero() && p.now().Sub(p.checked) < p.cfg.CacheTTL {
		return p.ready
	}
	ready := p.probe(ctx)
	if ready != p.ready || p.checked.IsZero() {
		p.logger.InfoContext(ctx, "network: readiness changed",
			slog.String("url", p.cfg.URL),
			slog.Bool("ready", ready),
		)
	}
	p.ready = ready
	p.checked = p.now()
	return ready
}

// CurrentEndpointLabel returns the configured label while the network is
// ready.
func (p *Probe) CurrentEndpointLabel(ctx context.Context) (string, bool) {
	if p.cfg.Label == "" || !p.IsNetworkReady(ctx) {
		return "", false
	}
	return p.cfg.Label, true
}

func (p *Probe) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.cfg.URL, nil)
	if err != nil {
		p.logger.WarnContext(ctx, "network: bad probe url", slog.String("error", err.Error()))
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.DebugContext(ctx, "network: probe failed", slog.String("error", err.Error()))
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

var (
	_ domain.NetworkGate = Static{}
	_ domain.NetworkGate = (*Probe)(nil)
)
