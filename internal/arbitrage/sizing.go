package arbitrage

import (
	"math"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// SizingConfig controls capital allocation.
type SizingConfig struct {
	ConservativeFactor  float64
	MaxPositionFraction float64
}

// DefaultSizingConfig returns the standard sizing parameters.
func DefaultSizingConfig() SizingConfig {
	return SizingConfig{ConservativeFactor: 0.5, MaxPositionFraction: 0.1}
}

// Size allocates capital to opp with the default conservative factor.
func Size(opp domain.Opportunity, capital, maxPositionFraction float64) domain.Sizing {
	cfg := DefaultSizingConfig()
	cfg.MaxPositionFraction = maxPositionFraction
	return cfg.Size(opp, capital)
}

// Size allocates capital to opp. The kelly fraction multiplies and divides by
// the profit ratio, so it depends on risk alone; the formula is kept as
// established and flagged for review rather than corrected here.
func (c SizingConfig) Size(opp domain.Opportunity, capital float64) domain.Sizing {
	ratio := opp.ProfitPercentage / 100
	if capital <= 0 || ratio == 0 {
		return domain.Sizing{}
	}
	win := 1 - opp.RiskScore

	kelly := (win * ratio) / ratio * c.ConservativeFactor
	investment := math.Min(kelly*capital, c.MaxPositionFraction*capital)
	investment = math.Max(0, math.Min(investment, opp.RequiredInvestment))

	return domain.Sizing{
		Investment:      investment,
		KellyFraction:   kelly,
		CapitalFraction: investment / capital,
		ExpectedProfit:  investment * ratio * win,
		MaxLoss:         investment * opp.RiskScore,
	}
}

// SizeAll couples each opportunity with its sizing, preserving order.
func (c SizingConfig) SizeAll(opps []domain.Opportunity, capital float64) []domain.SizedOpportunity {
	out := make([]domain.SizedOpportunity, 0, len(opps))
	for _, o := range opps {
		out = append(out, domain.SizedOpportunity{Opportunity: o, Sizing: c.Size(o, capital)})
	}
	return out
}
