// Package server exposes scan results over HTTP and websocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/arbscanner/internal/domain"
	"github.com/alanyoungcy/arbscanner/internal/server/handler"
	"github.com/alanyoungcy/arbscanner/internal/server/middleware"
	"github.com/alanyoungcy/arbscanner/internal/server/ws"
)

// Config holds the HTTP server settings.
type Config struct {
	Addr        string
	CORSOrigins []string
	// APIKey protects every route except health; empty disables auth.
	APIKey string
	// RateLimit requests per RateWindow per client IP; zero disables it.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers groups the route handlers.
type Handlers struct {
	Health  *handler.HealthHandler
	Status  *handler.StatusHandler
	Arb     *handler.ArbHandler
	Markets *handler.MarketHandler
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers the routes and wraps them in the middleware chain.
// hub and limiter may be nil.
func NewServer(cfg Config, h Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      newHandler(cfg, h, hub, limiter, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 2 * time.Minute, // POST /api/scan runs a full scan
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

func newHandler(cfg Config, h Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.Health.HealthCheck)
	if h.Status != nil {
		mux.HandleFunc("GET /api/status", h.Status.GetStatus)
	}
	mux.HandleFunc("GET /api/opportunities", h.Arb.ListOpportunities)
	mux.HandleFunc("GET /api/sessions", h.Arb.ListSessions)
	mux.HandleFunc("POST /api/scan", h.Arb.TriggerScan)
	if h.Markets != nil {
		mux.HandleFunc("GET /api/markets/{platform}/{id}", h.Markets.GetMarket)
	}
	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	var handler http.Handler = mux
	handler = middleware.Auth(cfg.APIKey, "/api/health")(handler)
	if limiter != nil && cfg.RateLimit > 0 && cfg.RateWindow > 0 {
		handler = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow, logger)(handler)
	}
	handler = middleware.Logging(logger)(handler)
	handler = middleware.CORS(cfg.CORSOrigins)(handler)
	return handler
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start blocks serving requests until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("server: listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
