package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/arbscanner/internal/service"
)

// LastScan exposes the most recent completed scan.
type LastScan interface {
	Last() (service.ScanResult, bool)
}

// StatusHandler reports the run mode and the last scan summary.
type StatusHandler struct {
	mode      string
	startedAt time.Time
	scans     LastScan
}

func NewStatusHandler(mode string, startedAt time.Time, scans LastScan) *StatusHandler {
	return &StatusHandler{mode: mode, startedAt: startedAt, scans: scans}
}

// GetStatus handles GET /api/status.
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"mode":       h.mode,
		"started_at": h.startedAt.UTC().Format(time.RFC3339),
	}
	if h.scans != nil {
		if last, ok := h.scans.Last(); ok {
			s := last.Session
			s.Opportunities = nil
			s.Spreads = nil
			resp["last_scan"] = s
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
