package polymarket

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

const sampleMarket = `{
	"condition_id":"0xabc",
	"question":"Will Joe Biden win?",
	"market_slug":"joe-biden-win",
	"active":true,
	"closed":false,
	"end_date_iso":"2024-11-05T00:00:00Z",
	"tags":["Politics","Elections"],
	"tokens":[
		{"token_id":"111","outcome":"Yes"},
		{"token_id":"222","outcome":"No"},
		{"token_id":"","outcome":"Ignored"}
	]
}`

func TestNormalizeMapsFields(t *testing.T) {
	raw := decodeMarket(t, sampleMarket)
	quotes := Quotes{
		"111": {Buy: domain.Float64(0.55), Sell: domain.Float64(0.57)},
		"222": {Buy: domain.Float64(45)},
	}
	m, ok := NewNormalizer(nil).Normalize(raw, quotes)
	if !ok {
		t.Fatal("Normalize rejected a valid record")
	}

	if m.ID != "0xabc" || m.Platform != domain.PlatformPolymarket {
		t.Fatalf("id/platform = %s/%s", m.ID, m.Platform)
	}
	if m.Title != m.Description || m.Title != "Will Joe Biden win?" {
		t.Errorf("title/description = %q/%q", m.Title, m.Description)
	}
	if m.Category != "General" || m.Subcategory != "joe-biden-win" {
		t.Errorf("category = %q/%q", m.Category, m.Subcategory)
	}
	if m.Status != domain.MarketStatusActive {
		t.Errorf("status = %s", m.Status)
	}
	if m.CloseDate == nil || m.CloseDate.Year() != 2024 {
		t.Errorf("close date = %v", m.CloseDate)
	}
	if !reflect.DeepEqual(m.Tags, []string{"Politics", "Elections"}) {
		t.Errorf("tags = %v", m.Tags)
	}
	if m.SourceURL != "https://polymarket.com/event/joe-biden-win?tid=111" {
		t.Errorf("source url = %q", m.SourceURL)
	}
	if m.PrimaryQuestion != "Joe Biden win" {
		t.Errorf("primary question = %q", m.PrimaryQuestion)
	}

	if len(m.Outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(m.Outcomes))
	}
	yes, no := m.Outcomes[0], m.Outcomes[1]
	if yes.ID != "0xabc_yes" || *yes.YesPrice != 0.55 || *yes.Bid != 0.55 || *yes.Ask != 0.57 {
		t.Errorf("yes outcome = %+v", yes)
	}
	if no.ID != "0xabc_no" || no.YesPrice != nil || *no.NoPrice != 0.45 {
		t.Errorf("no outcome = %+v", no)
	}
	if no.Bid != nil || no.Ask != nil {
		t.Error("bid/ask require both sides")
	}
}

func TestNormalizeRejectsMissingFields(t *testing.T) {
	n := NewNormalizer(nil)
	for _, raw := range []RawMarket{
		{Question: "q"},
		{ConditionID: "0x1", Question: "  "},
	} {
		if _, ok := n.Normalize(raw, nil); ok {
			t.Errorf("Normalize(%+v) accepted a malformed record", raw)
		}
	}
}

func TestNormalizeClosedStatus(t *testing.T) {
	n := NewNormalizer(nil)
	tests := []struct {
		active, closed bool
		want           domain.MarketStatus
	}{
		{true, false, domain.MarketStatusActive},
		{true, true, domain.MarketStatusClosed},
		{false, false, domain.MarketStatusClosed},
	}
	for _, tt := range tests {
		raw := RawMarket{ConditionID: "0x1", Question: "q", Active: flexBool(tt.active), Closed: flexBool(tt.closed)}
		m, _ := n.Normalize(raw, nil)
		if m.Status != tt.want {
			t.Errorf("active=%v closed=%v -> %s, want %s", tt.active, tt.closed, m.Status, tt.want)
		}
	}
}

func TestNormalizeWithoutQuotes(t *testing.T) {
	m, ok := NewNormalizer(nil).Normalize(decodeMarket(t, sampleMarket), nil)
	if !ok {
		t.Fatal("Normalize rejected a valid record")
	}
	for _, o := range m.Outcomes {
		if o.Priced() {
			t.Errorf("outcome %s should be unpriced", o.ID)
		}
	}
	if _, ok := m.BestYesPrice(); ok {
		t.Fatal("unpriced market should have no yes price")
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	raw := decodeMarket(t, sampleMarket)
	quotes := Quotes{"111": {Buy: domain.Float64(0.3)}}
	n := NewNormalizer(nil)
	a, _ := n.Normalize(raw, quotes)
	b, _ := n.Normalize(raw, quotes)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("normalization is not deterministic")
	}
}

func TestMarketURLFallsBackToConditionID(t *testing.T) {
	if got := MarketURL(RawMarket{ConditionID: "0x9"}); got != "https://polymarket.com/event/0x9" {
		t.Fatalf("MarketURL = %q", got)
	}
}

func TestFlexBool(t *testing.T) {
	tests := map[string]bool{`true`: true, `false`: false, `"true"`: true, `"1"`: true, `"no"`: false}
	for in, want := range tests {
		var f flexBool
		if err := json.Unmarshal([]byte(in), &f); err != nil {
			t.Fatalf("unmarshal %s: %v", in, err)
		}
		if bool(f) != want {
			t.Errorf("flexBool(%s) = %v, want %v", in, f, want)
		}
	}
}
