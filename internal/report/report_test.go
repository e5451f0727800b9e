package report

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

func sampleOpp(id string, pct float64) domain.SizedOpportunity {
	return domain.SizedOpportunity{
		Opportunity: domain.Opportunity{
			ID:                 id,
			MarketA:            domain.Market{ID: "K-1", Platform: domain.PlatformKalshi, Title: "Kalshi market", SourceURL: "https://kalshi.com/markets/k/k-1"},
			MarketB:            domain.Market{ID: "0xabc", Platform: domain.PlatformPolymarket, Title: "Poly market", SourceURL: "https://polymarket.com/event/p"},
			Buy:                domain.Leg{Platform: domain.PlatformKalshi, MarketID: "K-1", Price: 0.4},
			Sell:               domain.Leg{Platform: domain.PlatformPolymarket, MarketID: "0xabc", Price: 0.55},
			Spread:             0.15,
			ProfitPerUnit:      0.15,
			ProfitPercentage:   pct,
			RequiredInvestment: 1000,
			PotentialProfit:    365,
			DiscoveredAt:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		},
		Sizing: domain.Sizing{Investment: 100, KellyFraction: 0.5, CapitalFraction: 0.1, ExpectedProfit: 36.5, MaxLoss: 100},
	}
}

func TestOpportunitiesEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).Opportunities(nil)
	if got := buf.String(); got != "No arbitrage opportunities found.\n" {
		t.Fatalf("output = %q", got)
	}
}

func TestOpportunitiesRankedByProfit(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).Opportunities([]domain.SizedOpportunity{sampleOpp("low", 5), sampleOpp("high", 36.5)})
	out := buf.String()

	for _, want := range []string{
		"ARBITRAGE OPPORTUNITIES FOUND: 2",
		"Buy on: Kalshi at 0.400",
		"Sell on: Polymarket at 0.550",
		"Spread: 0.150 (36.50%)",
		"Potential profit: $365.00 on $1000.00",
		"Invest: $100.00 (kelly 0.500, 10.00% of capital)",
		"Polymarket: https://polymarket.com/event/p",
		"Detected at: 2024-05-01T12:00:00Z",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	first := strings.Index(out, "(36.50%)")
	second := strings.Index(out, "(5.00%)")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("opportunities not ranked by profit:\n%s", out)
	}
}

func TestSpreads(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.Spreads(nil, 0.03)
	if !strings.Contains(buf.String(), "No candidates at the chosen threshold") {
		t.Fatalf("empty spreads output = %q", buf.String())
	}

	buf.Reset()
	p.Spreads([]domain.Spread{{
		MarketA: domain.Market{ID: "K-1", Platform: domain.PlatformKalshi, Title: strings.Repeat("x", 100)},
		MarketB: domain.Market{ID: "0x1", Platform: domain.PlatformPolymarket, Title: "short"},
		PriceA:  0.4, PriceB: 0.5, Spread: 0.1,
	}}, 0.03)
	out := buf.String()
	if !strings.Contains(out, "[001] spread=0.100 | K=0.400 vs P=0.500") {
		t.Errorf("missing spread header in %q", out)
	}
	if !strings.Contains(out, strings.Repeat("x", 79)+"…") {
		t.Errorf("long title not truncated in %q", out)
	}
}

func TestSummaryListsProblems(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).Summary(domain.ScanSession{
		ID: "s1", Keyword: "Biden", KalshiCount: 2,
		Errors: []string{"kalshi: boom"}, Warnings: []string{"polymarket: slow"},
	})
	out := buf.String()
	for _, want := range []string{`Scan s1 for "Biden": kalshi=2`, "Network not ready", "error: kalshi: boom", "warning: polymarket: slow"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q in %q", want, out)
		}
	}
}

type putCall struct {
	path      string
	multipart bool
	body      []byte
}

type recordingWriter struct {
	calls []putCall
}

func (r *recordingWriter) Put(_ context.Context, p string, data io.Reader, _ string) error {
	b, _ := io.ReadAll(data)
	r.calls = append(r.calls, putCall{path: p, body: b})
	return nil
}

func (r *recordingWriter) PutMultipart(_ context.Context, p string, data io.Reader, _ int64) error {
	b, _ := io.ReadAll(data)
	r.calls = append(r.calls, putCall{path: p, multipart: true, body: b})
	return nil
}

func TestArchiveWritesSessionArtifacts(t *testing.T) {
	rec := &recordingWriter{}
	a := NewArchiver(rec, "reports")
	sess := domain.ScanSession{
		ID:            "sess-1",
		StartedAt:     time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC),
		Opportunities: []domain.SizedOpportunity{sampleOpp("a", 10), sampleOpp("b", 5)},
	}
	markets := map[domain.Platform][]domain.Market{
		domain.PlatformPolymarket: {{ID: "0x1"}},
	}

	paths, err := a.Archive(context.Background(), sess, markets)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	want := []string{
		"reports/2024/05/01/sess-1/session.json",
		"reports/2024/05/01/sess-1/opportunities.jsonl",
		"reports/2024/05/01/sess-1/markets-polymarket.jsonl",
	}
	if !reflect.DeepEqual(paths, want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}

	var summary domain.ScanSession
	if err := json.Unmarshal(rec.calls[0].body, &summary); err != nil {
		t.Fatal(err)
	}
	if summary.ID != "sess-1" || len(summary.Opportunities) != 0 {
		t.Errorf("session summary = %+v", summary)
	}

	lines := 0
	sc := bufio.NewScanner(bytes.NewReader(rec.calls[1].body))
	for sc.Scan() {
		lines++
	}
	if lines != 2 {
		t.Errorf("opportunity lines = %d, want 2", lines)
	}
}

func TestArchiveUsesMultipartForLargePayloads(t *testing.T) {
	rec := &recordingWriter{}
	a := NewArchiver(rec, "", WithMultipart(10, 1<<20))
	sess := domain.ScanSession{ID: "s", StartedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}

	if _, err := a.Archive(context.Background(), sess, nil); err != nil {
		t.Fatal(err)
	}
	if len(rec.calls) != 1 || !rec.calls[0].multipart {
		t.Fatalf("calls = %+v", rec.calls)
	}
	if rec.calls[0].path != "2024/01/02/s/session.json" {
		t.Errorf("path = %q", rec.calls[0].path)
	}
}

func TestDirWriter(t *testing.T) {
	root := t.TempDir()
	d := NewDirWriter(root)
	ctx := context.Background()

	if err := d.Put(ctx, "a/b/c.json", strings.NewReader(`{"x":1}`), contentTypeJSON); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(root, "a", "b", "c.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"x":1}` {
		t.Fatalf("content = %s", got)
	}

	// Parent references are confined to the root.
	if err := d.PutMultipart(ctx, "../escape.json", strings.NewReader("y"), 0); err != nil {
		t.Fatalf("PutMultipart: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "escape.json")); err != nil {
		t.Fatalf("escaped path not confined: %v", err)
	}

	if err := d.Put(ctx, "", strings.NewReader("z"), ""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
