package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/arbscanner/internal/domain"
	"github.com/alanyoungcy/arbscanner/internal/service"
)

// Scanner is the scan service as used by the API.
type Scanner interface {
	Scan(ctx context.Context, req service.ScanRequest) (service.ScanResult, error)
	RecentOpportunities(ctx context.Context, opts domain.ListOpts) ([]domain.SizedOpportunity, error)
	RecentSessions(ctx context.Context, limit int) ([]domain.ScanSession, error)
}

// ArbHandler serves opportunities, sessions and on-demand scans.
type ArbHandler struct {
	scanner Scanner
	logger  *slog.Logger
}

func NewArbHandler(scanner Scanner, logger *slog.Logger) *ArbHandler {
	return &ArbHandler{scanner: scanner, logger: logger}
}

type listOpportunitiesResponse struct {
	Opportunities []domain.SizedOpportunity `json:"opportunities"`
	Limit         int                       `json:"limit"`
	Offset        int                       `json:"offset"`
}

// ListOpportunities returns recent opportunities.
// GET /api/opportunities?limit=50&offset=0&since=2024-01-01T00:00:00Z
func (h *ArbHandler) ListOpportunities(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
		return
	}
	opps, err := h.scanner.RecentOpportunities(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list opportunities failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	if opps == nil {
		opps = []domain.SizedOpportunity{}
	}
	writeJSON(w, http.StatusOK, listOpportunitiesResponse{Opportunities: opps, Limit: opts.Limit, Offset: opts.Offset})
}

// ListSessions returns recent scan sessions.
// GET /api/sessions?limit=20
func (h *ArbHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.scanner.RecentSessions(r.Context(), parseLimit(r, 20))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list sessions failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []domain.ScanSession{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

type scanRequest struct {
	Keyword string  `json:"keyword"`
	Limit   int     `json:"limit"`
	Capital float64 `json:"capital"`
}

// TriggerScan runs a scan synchronously and returns its session.
// POST /api/scan {"keyword":"Biden","limit":50}
func (h *ArbHandler) TriggerScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Limit < 0 || req.Capital < 0 {
		writeError(w, http.StatusBadRequest, "limit and capital must not be negative")
		return
	}

	res, err := h.scanner.Scan(r.Context(), service.ScanRequest{
		Keyword: strings.TrimSpace(req.Keyword),
		Limit:   req.Limit,
		Capital: req.Capital,
	})
	switch {
	case errors.Is(err, domain.ErrLockHeld):
		writeError(w, http.StatusConflict, "a scan for this keyword is already running")
		return
	case err != nil:
		h.logger.ErrorContext(r.Context(), "handler: scan failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "scan failed")
		return
	}
	writeJSON(w, http.StatusOK, res.Session)
}
