package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/arbscanner/internal/domain"
	"github.com/alanyoungcy/arbscanner/internal/server/handler"
	"github.com/alanyoungcy/arbscanner/internal/service"
)

type fakeScanner struct {
	opps     []domain.SizedOpportunity
	sessions []domain.ScanSession
	scanErr  error
	lastReq  service.ScanRequest
	gotOpts  domain.ListOpts
}

func (f *fakeScanner) Scan(_ context.Context, req service.ScanRequest) (service.ScanResult, error) {
	f.lastReq = req
	if f.scanErr != nil {
		return service.ScanResult{}, f.scanErr
	}
	return service.ScanResult{Session: domain.ScanSession{ID: "s1", Keyword: req.Keyword}}, nil
}

func (f *fakeScanner) RecentOpportunities(_ context.Context, opts domain.ListOpts) ([]domain.SizedOpportunity, error) {
	f.gotOpts = opts
	return f.opps, nil
}

func (f *fakeScanner) RecentSessions(context.Context, int) ([]domain.ScanSession, error) {
	return f.sessions, nil
}

func (f *fakeScanner) Last() (service.ScanResult, bool) {
	if len(f.sessions) == 0 {
		return service.ScanResult{}, false
	}
	return service.ScanResult{Session: f.sessions[0]}, true
}

type fakeMarkets struct{}

func (fakeMarkets) Market(_ context.Context, platform domain.Platform, id string) (domain.Market, error) {
	switch id {
	case "K-1":
		return domain.Market{ID: id, Platform: platform}, nil
	case "offline":
		return domain.Market{}, domain.ErrNetworkUnavailable
	case "broken":
		return domain.Market{}, errors.New("boom")
	}
	return domain.Market{}, domain.ErrNotFound
}

func (fakeMarkets) Health(context.Context) map[domain.Platform]bool {
	return map[domain.Platform]bool{domain.PlatformKalshi: true, domain.PlatformPolymarket: false}
}

type readyGate struct{}

func (readyGate) IsNetworkReady(context.Context) bool                 { return true }
func (readyGate) CurrentEndpointLabel(context.Context) (string, bool) { return "nyc", true }

func newTestHandler(scanner *fakeScanner, apiKey string) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newHandler(Config{APIKey: apiKey}, Handlers{
		Health:  handler.NewHealthHandler(fakeMarkets{}, readyGate{}, logger),
		Status:  handler.NewStatusHandler("watch", time.Unix(0, 0), scanner),
		Arb:     handler.NewArbHandler(scanner, logger),
		Markets: handler.NewMarketHandler(fakeMarkets{}, logger),
	}, nil, nil, logger)
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, r))
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestHandler(&fakeScanner{}, "key")

	rec := do(h, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "ok" || body["network_ready"] != true || body["network_endpoint"] != "nyc" {
		t.Fatalf("body = %v", body)
	}
	if _, ok := body["exchanges"]; ok {
		t.Fatal("shallow health ran exchange checks")
	}

	rec = do(h, http.MethodGet, "/api/health?deep=true", "")
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "degraded" {
		t.Fatalf("deep body = %v", body)
	}
}

func TestOpportunitiesEndpoint(t *testing.T) {
	scanner := &fakeScanner{}
	h := newTestHandler(scanner, "")

	rec := do(h, http.MethodGet, "/api/opportunities?limit=9999&offset=5&since=2024-01-01T00:00:00Z", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"opportunities":[]`) {
		t.Errorf("body = %s", rec.Body)
	}
	if scanner.gotOpts.Limit != 500 || scanner.gotOpts.Offset != 5 || scanner.gotOpts.Since == nil {
		t.Errorf("opts = %+v", scanner.gotOpts)
	}

	if rec := do(h, http.MethodGet, "/api/opportunities?since=yesterday", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad since status = %d", rec.Code)
	}
}

func TestScanEndpoint(t *testing.T) {
	scanner := &fakeScanner{}
	h := newTestHandler(scanner, "")

	rec := do(h, http.MethodPost, "/api/scan", `{"keyword":" Trump ","limit":10}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	if scanner.lastReq.Keyword != "Trump" || scanner.lastReq.Limit != 10 {
		t.Errorf("request = %+v", scanner.lastReq)
	}

	if rec := do(h, http.MethodPost, "/api/scan", ""); rec.Code != http.StatusOK {
		t.Errorf("empty body status = %d", rec.Code)
	}
	if rec := do(h, http.MethodPost, "/api/scan", `{"limit":-1}`); rec.Code != http.StatusBadRequest {
		t.Errorf("negative limit status = %d", rec.Code)
	}
	if rec := do(h, http.MethodPost, "/api/scan", `{`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad json status = %d", rec.Code)
	}

	scanner.scanErr = domain.ErrLockHeld
	if rec := do(h, http.MethodPost, "/api/scan", `{}`); rec.Code != http.StatusConflict {
		t.Errorf("lock held status = %d", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/api/scan", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET scan status = %d", rec.Code)
	}
}

func TestMarketEndpoint(t *testing.T) {
	h := newTestHandler(&fakeScanner{}, "")
	tests := []struct {
		id   string
		want int
	}{
		{"K-1", http.StatusOK},
		{"missing", http.StatusNotFound},
		{"offline", http.StatusServiceUnavailable},
		{"broken", http.StatusBadGateway},
	}
	for _, tt := range tests {
		if rec := do(h, http.MethodGet, "/api/markets/kalshi/"+tt.id, ""); rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.id, rec.Code, tt.want)
		}
	}
}

func TestSessionsAndStatus(t *testing.T) {
	scanner := &fakeScanner{sessions: []domain.ScanSession{{ID: "s9", Keyword: "k"}}}
	h := newTestHandler(scanner, "")

	rec := do(h, http.MethodGet, "/api/sessions", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"id":"s9"`) {
		t.Fatalf("sessions = %d %s", rec.Code, rec.Body)
	}
	rec = do(h, http.MethodGet, "/api/status", "")
	if !strings.Contains(rec.Body.String(), `"mode":"watch"`) || !strings.Contains(rec.Body.String(), `"last_scan"`) {
		t.Fatalf("status body = %s", rec.Body)
	}
}

func TestAuthGuardsAPI(t *testing.T) {
	h := newTestHandler(&fakeScanner{}, "key")
	if rec := do(h, http.MethodGet, "/api/opportunities", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}
