package arbitrage

import (
	"testing"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

func TestSize(t *testing.T) {
	opp := domain.Opportunity{ProfitPercentage: 36.5, RiskScore: 0.3, RequiredInvestment: 1000}

	got := Size(opp, 10000, 0.1)
	// kelly = 0.7 * 0.5 = 0.35; min(3500, 1000, 1000) = 1000
	if !approx(got.KellyFraction, 0.35) {
		t.Fatalf("kelly = %v, want 0.35", got.KellyFraction)
	}
	if !approx(got.Investment, 1000) || !approx(got.CapitalFraction, 0.1) {
		t.Fatalf("investment = %v (%v)", got.Investment, got.CapitalFraction)
	}
	if !approx(got.ExpectedProfit, 1000*0.365*0.7) {
		t.Fatalf("expected profit = %v", got.ExpectedProfit)
	}
	if !approx(got.MaxLoss, 300) {
		t.Fatalf("max loss = %v", got.MaxLoss)
	}
}

func TestSizeKellyIgnoresProfitMagnitude(t *testing.T) {
	small := Size(domain.Opportunity{ProfitPercentage: 2, RiskScore: 0.4, RequiredInvestment: 1e9}, 1000, 1)
	large := Size(domain.Opportunity{ProfitPercentage: 80, RiskScore: 0.4, RequiredInvestment: 1e9}, 1000, 1)
	if !approx(small.KellyFraction, large.KellyFraction) || !approx(small.KellyFraction, 0.3) {
		t.Fatalf("kelly = %v / %v, want 0.3 for both", small.KellyFraction, large.KellyFraction)
	}
	if !approx(small.Investment, 300) {
		t.Fatalf("investment = %v, want 300", small.Investment)
	}
}

func TestSizeCappedByRequiredInvestment(t *testing.T) {
	got := Size(domain.Opportunity{ProfitPercentage: 10, RiskScore: 0, RequiredInvestment: 50}, 1e6, 0.5)
	if got.Investment != 50 {
		t.Fatalf("investment = %v, want 50", got.Investment)
	}
}

func TestSizeDegenerateInputs(t *testing.T) {
	opp := domain.Opportunity{ProfitPercentage: 10, RiskScore: 0.2, RequiredInvestment: 1000}
	if got := Size(opp, 0, 0.1); got != (domain.Sizing{}) {
		t.Fatalf("zero capital sizing = %+v", got)
	}
	opp.ProfitPercentage = 0
	if got := Size(opp, 1000, 0.1); got != (domain.Sizing{}) {
		t.Fatalf("zero profit sizing = %+v", got)
	}
}

func TestSizeAllKeepsOrder(t *testing.T) {
	opps := []domain.Opportunity{
		{ID: "a", ProfitPercentage: 10, RiskScore: 0.2, RequiredInvestment: 1000},
		{ID: "b", ProfitPercentage: 5, RiskScore: 0.5, RequiredInvestment: 1000},
	}
	sized := DefaultSizingConfig().SizeAll(opps, 1000)
	if len(sized) != 2 || sized[0].ID != "a" || sized[1].ID != "b" {
		t.Fatalf("sized = %+v", sized)
	}
	if !approx(sized[1].Sizing.Investment, 100) {
		t.Fatalf("investment = %v, want 100", sized[1].Sizing.Investment)
	}
}
