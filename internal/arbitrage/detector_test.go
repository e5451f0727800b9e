package arbitrage

import (
	"math"
	"testing"
	"time"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

var fixedTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestDetector(cfg Config) *Detector {
	return NewDetector(cfg,
		WithClock(func() time.Time { return fixedTime }),
		WithIDs(func() string { return "opp-1" }),
	)
}

func yesMarket(platform domain.Platform, id string, price float64) domain.Market {
	return domain.Market{
		ID:       id,
		Platform: platform,
		Title:    id,
		Outcomes: []domain.Outcome{{ID: id + "_yes", Name: "Yes", YesPrice: domain.Float64(price)}},
	}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestEvaluateScenario(t *testing.T) {
	a := yesMarket(domain.PlatformKalshi, "K1", 0.40)
	b := yesMarket(domain.PlatformPolymarket, "P1", 0.55)

	opp, ok := newTestDetector(DefaultConfig()).Evaluate(a, b)
	if !ok {
		t.Fatal("expected an opportunity")
	}
	if !approx(opp.Spread, 0.15) || !approx(opp.ProfitPerUnit, 0.15) {
		t.Fatalf("spread/profit per unit = %v/%v, want 0.15", opp.Spread, opp.ProfitPerUnit)
	}
	if opp.Buy.MarketID != "K1" || opp.Buy.Price != 0.40 || opp.Sell.MarketID != "P1" || opp.Sell.Price != 0.55 {
		t.Fatalf("legs = %+v / %+v", opp.Buy, opp.Sell)
	}
	// gross = 1000/0.40*0.15 = 375, net = 365
	if !approx(opp.PotentialProfit, 365) || !approx(opp.ProfitPercentage, 36.5) {
		t.Fatalf("net = %v (%v%%), want 365 (36.5%%)", opp.PotentialProfit, opp.ProfitPercentage)
	}
	if opp.RequiredInvestment != 1000 {
		t.Fatalf("required investment = %v", opp.RequiredInvestment)
	}
	if opp.SimilarityScore != 0.5 || opp.ConfidenceScore != 0.5 {
		t.Fatalf("similarity/confidence = %v/%v", opp.SimilarityScore, opp.ConfidenceScore)
	}
	// 0.1 resolution + 0.4*0.5 similarity
	if !approx(opp.RiskScore, 0.3) {
		t.Fatalf("risk = %v, want 0.3", opp.RiskScore)
	}
	if opp.ID != "opp-1" || !opp.DiscoveredAt.Equal(fixedTime) {
		t.Fatalf("id/time = %s/%v", opp.ID, opp.DiscoveredAt)
	}
}

func TestEvaluateIsSymmetric(t *testing.T) {
	d := newTestDetector(DefaultConfig())
	prices := [][2]float64{{0.40, 0.55}, {0.9, 0.2}, {0.12, 0.31}, {0.5, 0.6}}
	for _, p := range prices {
		a := yesMarket(domain.PlatformKalshi, "A", p[0])
		b := yesMarket(domain.PlatformPolymarket, "B", p[1])
		ab, okAB := d.Evaluate(a, b)
		ba, okBA := d.Evaluate(b, a)
		if okAB != okBA {
			t.Fatalf("%v: ok mismatch %v/%v", p, okAB, okBA)
		}
		if !okAB {
			continue
		}
		if ab.Spread != ba.Spread || ab.ProfitPercentage != ba.ProfitPercentage {
			t.Errorf("%v: spread/profit differ: %v/%v vs %v/%v", p, ab.Spread, ab.ProfitPercentage, ba.Spread, ba.ProfitPercentage)
		}
		if ab.Buy != ba.Buy || ab.Sell != ba.Sell {
			t.Errorf("%v: legs differ: %+v/%+v vs %+v/%+v", p, ab.Buy, ab.Sell, ba.Buy, ba.Sell)
		}
	}
}

func TestEvaluateThresholds(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		pa, pb float64
		want   bool
	}{
		{"below min spread", DefaultConfig(), 0.50, 0.52, false},
		{"spread ok, profit ok", DefaultConfig(), 0.50, 0.54, true},
		{"spread ok, profit too low", Config{MinSpread: 0.03, MinProfitPct: 10, CostRate: 0.01, Notional: 1000}, 0.50, 0.54, false},
		{"cost eats profit", Config{MinSpread: 0.01, MinProfitPct: 2, CostRate: 0.05, Notional: 1000}, 0.50, 0.52, false},
		{"zero buy price", Config{MinSpread: 0.01, MinProfitPct: 0, Notional: 1000}, 0, 0.5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := newTestDetector(tt.cfg).Evaluate(
				yesMarket(domain.PlatformKalshi, "A", tt.pa),
				yesMarket(domain.PlatformPolymarket, "B", tt.pb),
			)
			if ok != tt.want {
				t.Fatalf("ok = %v, want %v", ok, tt.want)
			}
		})
	}
}

func TestEvaluateRequiresPrices(t *testing.T) {
	priced := yesMarket(domain.PlatformKalshi, "A", 0.4)
	unpriced := domain.Market{ID: "B", Outcomes: []domain.Outcome{{ID: "B_yes", Name: "Yes"}}}
	d := newTestDetector(DefaultConfig())
	if _, ok := d.Evaluate(priced, unpriced); ok {
		t.Fatal("unpriced market should not produce an opportunity")
	}
	if _, ok := d.Evaluate(domain.Market{}, priced); ok {
		t.Fatal("market without outcomes should not produce an opportunity")
	}
}

func TestEvaluateUsesNoPriceFallback(t *testing.T) {
	a := yesMarket(domain.PlatformKalshi, "A", 0.40)
	b := domain.Market{ID: "B", Platform: domain.PlatformPolymarket,
		Outcomes: []domain.Outcome{{ID: "B_no", Name: "No", NoPrice: domain.Float64(0.45)}}}
	opp, ok := newTestDetector(DefaultConfig()).Evaluate(a, b)
	if !ok || !approx(opp.Sell.Price, 0.55) {
		t.Fatalf("opp = %+v, ok = %v", opp.Sell, ok)
	}
}

func TestEvaluatePairCarriesSimilarity(t *testing.T) {
	pair := domain.MarketPair{
		A:          yesMarket(domain.PlatformKalshi, "A", 0.40),
		B:          yesMarket(domain.PlatformPolymarket, "B", 0.55),
		Similarity: domain.Float64(0.9),
		Rationale:  "same candidate",
	}
	opp, ok := newTestDetector(DefaultConfig()).EvaluatePair(pair)
	if !ok {
		t.Fatal("expected an opportunity")
	}
	if opp.SimilarityScore != 0.9 || opp.ConfidenceScore != 0.9 || opp.Rationale != "same candidate" {
		t.Fatalf("opp = %+v", opp)
	}
	if !approx(opp.RiskScore, 0.1+0.4*0.1) {
		t.Fatalf("risk = %v", opp.RiskScore)
	}
}

func TestRiskScoreTerms(t *testing.T) {
	base := time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC)
	later := base.Add(10 * 24 * time.Hour)
	near := base.Add(3 * 24 * time.Hour)

	market := func(close *time.Time, volume *float64) domain.Market {
		return domain.Market{CloseDate: close, TotalVolume: volume}
	}
	high := domain.Float64(5000)
	low := domain.Float64(10)

	tests := []struct {
		name string
		a, b domain.Market
		sim  float64
		diff float64
		want float64
	}{
		{"baseline", market(nil, nil), market(nil, nil), 1, 0.1, 0.1},
		{"unknown dates not penalized", market(&base, nil), market(nil, nil), 1, 0.1, 0.1},
		{"dates within a week", market(&base, high), market(&near, high), 1, 0.1, 0.1},
		{"dates far apart", market(&base, high), market(&later, high), 1, 0.1, 0.4},
		{"low volume", market(nil, low), market(nil, high), 1, 0.1, 0.3},
		{"similarity", market(nil, nil), market(nil, nil), 0, 0.1, 0.5},
		{"data quality gap", market(nil, nil), market(nil, nil), 1, 0.35, 0.4},
		{"everything capped", market(&base, low), market(&later, low), 0, 0.9, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RiskScore(tt.a, tt.b, tt.sim, tt.diff); !approx(got, tt.want) {
				t.Fatalf("risk = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRiskScoreAlwaysInUnitInterval(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	far := base.AddDate(1, 0, 0)
	dates := []*time.Time{nil, &base, &far}
	volumes := []*float64{nil, domain.Float64(0), domain.Float64(1e6)}
	sims := []float64{-1, 0, 0.5, 1, 2}
	diffs := []float64{0, 0.3, 0.31, 1}

	for _, da := range dates {
		for _, db := range dates {
			for _, va := range volumes {
				for _, vb := range volumes {
					for _, s := range sims {
						for _, d := range diffs {
							a := domain.Market{CloseDate: da, TotalVolume: va}
							b := domain.Market{CloseDate: db, TotalVolume: vb}
							if r := RiskScore(a, b, s, d); r < 0 || r > 1 {
								t.Fatalf("risk %v out of range", r)
							}
						}
					}
				}
			}
		}
	}
}

func TestDetectPairsSortedByProfit(t *testing.T) {
	d := newTestDetector(DefaultConfig())
	pairs := []domain.MarketPair{
		{A: yesMarket(domain.PlatformKalshi, "A1", 0.50), B: yesMarket(domain.PlatformPolymarket, "B1", 0.55)},
		{A: yesMarket(domain.PlatformKalshi, "A2", 0.20), B: yesMarket(domain.PlatformPolymarket, "B2", 0.40)},
		{A: yesMarket(domain.PlatformKalshi, "A3", 0.50), B: yesMarket(domain.PlatformPolymarket, "B3", 0.51)},
	}
	opps := d.DetectPairs(pairs)
	if len(opps) != 2 {
		t.Fatalf("opportunities = %d, want 2", len(opps))
	}
	if opps[0].Buy.MarketID != "A2" || opps[1].Buy.MarketID != "A1" {
		t.Fatalf("order = %s, %s", opps[0].Buy.MarketID, opps[1].Buy.MarketID)
	}
}

func TestSpreadsListsGapsRegardlessOfProfit(t *testing.T) {
	d := newTestDetector(Config{MinSpread: 0.03, MinProfitPct: 1000, Notional: 1000})
	a := []domain.Market{yesMarket(domain.PlatformKalshi, "A1", 0.40), {ID: "A2"}}
	b := []domain.Market{
		yesMarket(domain.PlatformPolymarket, "B1", 0.45),
		yesMarket(domain.PlatformPolymarket, "B2", 0.60),
		yesMarket(domain.PlatformPolymarket, "B3", 0.41),
	}
	spreads := d.Spreads(a, b)
	if len(spreads) != 2 {
		t.Fatalf("spreads = %d, want 2", len(spreads))
	}
	if spreads[0].MarketB.ID != "B2" || !approx(spreads[0].Spread, 0.2) {
		t.Fatalf("widest = %+v", spreads[0])
	}
	if len(d.DetectPairs((&CrossPairer{}).Pair(a, b))) != 0 {
		t.Fatal("profit threshold should reject every pair")
	}
}
