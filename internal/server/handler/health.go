package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// ExchangeHealth runs the exchange health checks.
type ExchangeHealth interface {
	Health(ctx context.Context) map[domain.Platform]bool
}

// HealthHandler serves GET /api/health. Exchange checks hit the upstream
// APIs, so they only run with ?deep=true.
type HealthHandler struct {
	exchanges ExchangeHealth
	gate      domain.NetworkGate
	now       func() time.Time
	logger    *slog.Logger
}

func NewHealthHandler(exchanges ExchangeHealth, gate domain.NetworkGate, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{exchanges: exchanges, gate: gate, now: time.Now, logger: logger}
}

type healthResponse struct {
	Status          string                   `json:"status"`
	Timestamp       string                   `json:"timestamp"`
	NetworkReady    *bool                    `json:"network_ready,omitempty"`
	NetworkEndpoint string                   `json:"network_endpoint,omitempty"`
	Exchanges       map[domain.Platform]bool `json:"exchanges,omitempty"`
}

func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := healthResponse{Status: "ok", Timestamp: h.now().UTC().Format(time.RFC3339)}

	if h.gate != nil {
		ready := h.gate.IsNetworkReady(ctx)
		resp.NetworkReady = &ready
		if label, ok := h.gate.CurrentEndpointLabel(ctx); ok {
			resp.NetworkEndpoint = label
		}
	}

	if r.URL.Query().Get("deep") == "true" && h.exchanges != nil {
		resp.Exchanges = h.exchanges.Health(ctx)
		for p, ok := range resp.Exchanges {
			if !ok {
				resp.Status = "degraded"
				h.logger.WarnContext(ctx, "handler: exchange unhealthy", slog.String("platform", string(p)))
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
