package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// MarketLookup fetches a single canonical market from an exchange.
type MarketLookup interface {
	Market(ctx context.Context, platform domain.Platform, id string) (domain.Market, error)
}

type MarketHandler struct {
	markets MarketLookup
	logger  *slog.Logger
}

func NewMarketHandler(markets MarketLookup, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{markets: markets, logger: logger}
}

// GetMarket returns one live market normalized to the canonical schema.
// GET /api/markets/{platform}/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	platform := domain.Platform(r.PathValue("platform"))
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "market id is required")
		return
	}

	m, err := h.markets.Market(r.Context(), platform, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "market not found")
	case errors.Is(err, domain.ErrNetworkUnavailable):
		writeError(w, http.StatusServiceUnavailable, "network unavailable")
	case err != nil:
		h.logger.ErrorContext(r.Context(), "handler: get market failed",
			slog.String("platform", string(platform)),
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "upstream request failed")
	default:
		writeJSON(w, http.StatusOK, m)
	}
}
