package kalshi

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

func decodeMarket(t *testing.T, js string) RawMarket {
	t.Helper()
	var raw RawMarket
	if err := json.Unmarshal([]byte(js), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return raw
}

func yesPrice(t *testing.T, m domain.Market) float64 {
	t.Helper()
	p, ok := m.BestYesPrice()
	if !ok {
		t.Fatalf("market %s has no yes price", m.ID)
	}
	return p
}

func TestNormalizeYesPricePriority(t *testing.T) {
	tests := []struct {
		name string
		js   string
		want float64
	}{
		{"last trade wins", `{"ticker":"A","title":"t","yes_bid":40,"yes_ask":45,"last_price":43}`, 0.43},
		{"ask when no trade", `{"ticker":"A","title":"t","yes_bid":40,"yes_ask":45,"last_price":0}`, 0.45},
		{"bid as fallback", `{"ticker":"A","title":"t","yes_bid":40,"yes_ask":0}`, 0.40},
		{"dollar strings", `{"ticker":"A","title":"t","yes_bid_dollars":"0.3800","yes_ask_dollars":"0.4100"}`, 0.41},
	}
	n := NewNormalizer(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := n.Normalize(decodeMarket(t, tt.js))
			if !ok {
				t.Fatal("Normalize rejected a valid record")
			}
			if got := yesPrice(t, m); got != tt.want {
				t.Fatalf("yes price = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeNoOutcome(t *testing.T) {
	n := NewNormalizer(nil)
	m, ok := n.Normalize(decodeMarket(t,
		`{"ticker":"PRES-24","title":"Will Biden win?","yes_bid":40,"no_bid":55,"no_ask":58,"last_price":40}`))
	if !ok {
		t.Fatal("Normalize rejected a valid record")
	}
	if len(m.Outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(m.Outcomes))
	}
	no := m.Outcomes[1]
	if no.ID != "PRES-24_no" || no.Name != "No" {
		t.Fatalf("no outcome = %+v", no)
	}
	if no.NoPrice == nil || *no.NoPrice != 0.6 {
		t.Fatalf("no price = %v, want 0.6 from last trade", no.NoPrice)
	}
	if no.LastTradePrice != nil {
		t.Fatal("last trade price belongs to the yes outcome only")
	}
	if no.Bid == nil || *no.Bid != 0.55 || no.Ask == nil || *no.Ask != 0.58 {
		t.Fatalf("no bid/ask = %v/%v", no.Bid, no.Ask)
	}
}

func TestNormalizeWithoutQuotesHasNoOutcomes(t *testing.T) {
	m, ok := NewNormalizer(nil).Normalize(decodeMarket(t, `{"ticker":"A","title":"t"}`))
	if !ok {
		t.Fatal("Normalize rejected a valid record")
	}
	if len(m.Outcomes) != 0 {
		t.Fatalf("outcomes = %+v, want none", m.Outcomes)
	}
	if _, ok := m.BestYesPrice(); ok {
		t.Fatal("market without quotes should have no yes price")
	}
}

func TestNormalizeClampsOutOfRangeCents(t *testing.T) {
	m, _ := NewNormalizer(nil).Normalize(decodeMarket(t, `{"ticker":"A","title":"t","yes_ask":150}`))
	if got := yesPrice(t, m); got != 1 {
		t.Fatalf("yes price = %v, want 1", got)
	}
}

func TestNormalizeFields(t *testing.T) {
	raw := decodeMarket(t, `{
		"ticker":"PRES-24-JRB",
		"event_ticker":"PRES-24",
		"title":"Will Joe Biden's party win?",
		"status":"finalized",
		"category":"Politics",
		"open_time":"2024-01-02T03:04:05Z",
		"close_time":"not a time",
		"volume":1234,
		"yes_bid":40
	}`)
	m, ok := NewNormalizer(nil).Normalize(raw)
	if !ok {
		t.Fatal("Normalize rejected a valid record")
	}

	if m.Platform != domain.PlatformKalshi || m.Type != domain.MarketTypeBinary {
		t.Fatalf("platform/type = %s/%s", m.Platform, m.Type)
	}
	if m.Status != domain.MarketStatusSettled {
		t.Errorf("status = %s, want settled", m.Status)
	}
	if m.Description != m.Title {
		t.Errorf("description should fall back to title, got %q", m.Description)
	}
	if m.Subcategory != "PRES-24" || m.Category != "Politics" {
		t.Errorf("category = %q/%q", m.Category, m.Subcategory)
	}
	if m.CreatedAt == nil || m.CreatedAt.Year() != 2024 {
		t.Errorf("created_at = %v", m.CreatedAt)
	}
	if m.CloseDate != nil {
		t.Errorf("unparsable close time should be absent, got %v", m.CloseDate)
	}
	if m.TotalVolume == nil || *m.TotalVolume != 1234 {
		t.Errorf("volume = %v", m.TotalVolume)
	}
	if m.PrimaryQuestion != "Joe Biden's party win" {
		t.Errorf("primary question = %q", m.PrimaryQuestion)
	}
	if want := "https://kalshi.com/markets/pres/will-joe-bidens-party-win"; m.SourceURL != want {
		t.Errorf("source url = %q, want %q", m.SourceURL, want)
	}
	if len(m.Raw) == 0 {
		t.Error("raw payload missing")
	}
}

func TestNormalizeStatusMapping(t *testing.T) {
	tests := map[string]domain.MarketStatus{
		"open":       domain.MarketStatusActive,
		"active":     domain.MarketStatusActive,
		"closed":     domain.MarketStatusClosed,
		"settled":    domain.MarketStatusSettled,
		"determined": domain.MarketStatusSettled,
		"paused":     domain.MarketStatusPaused,
		"something":  domain.MarketStatusActive,
		"":           domain.MarketStatusActive,
	}
	n := NewNormalizer(nil)
	for in, want := range tests {
		m, _ := n.Normalize(RawMarket{Ticker: "A", Title: "t", Status: in})
		if m.Status != want {
			t.Errorf("status %q -> %s, want %s", in, m.Status, want)
		}
	}
}

func TestNormalizeAllSkipsMalformed(t *testing.T) {
	c, err := NewClient(Config{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	raws := []RawMarket{
		{Ticker: "A", Title: "first"},
		{Ticker: "B"},
		{Title: "no ticker"},
		{Ticker: "C", Title: "third"},
	}
	got := c.NormalizeAll(raws)
	if len(got) != 2 || got[0].ID != "A" || got[1].ID != "C" {
		t.Fatalf("normalized = %+v", got)
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	raw := decodeMarket(t, `{"ticker":"A-1","title":"Will it rain?","yes_bid":40,"no_ask":61,"volume":5,"close_time":"2025-06-01"}`)
	n := NewNormalizer(nil)
	first, _ := n.Normalize(raw)
	second, _ := n.Normalize(raw)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("normalization is not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestMarketURL(t *testing.T) {
	tests := []struct {
		ticker, title, want string
	}{
		{"KXFED-25JUN", "Fed decision in June 2025", "https://kalshi.com/markets/kxfed/fed-decision-in-june-2025"},
		{"SOLO", "A & B: one two three four five six", "https://kalshi.com/markets/solo/a-and-b-one-two-three"},
	}
	for _, tt := range tests {
		if got := MarketURL(tt.ticker, tt.title); got != tt.want {
			t.Errorf("MarketURL(%q, %q) = %q, want %q", tt.ticker, tt.title, got, tt.want)
		}
	}
}
