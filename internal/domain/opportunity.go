package domain

import "time"

// Leg is one side of an arbitrage trade.
type Leg struct {
	Platform Platform `json:"platform"`
	MarketID string   `json:"market_id"`
	Price    float64  `json:"price"`
}

// Opportunity is a scored, profit-qualifying arbitrage candidate between two
// canonical markets. It is produced once per detector call and never mutated
// afterwards.
type Opportunity struct {
	ID                 string    `json:"id"`
	MarketA            Market    `json:"market_a"`
	MarketB            Market    `json:"market_b"`
	Buy                Leg       `json:"buy"`
	Sell               Leg       `json:"sell"`
	Spread             float64   `json:"spread"`
	ProfitPerUnit      float64   `json:"profit_per_unit"`
	ProfitPercentage   float64   `json:"profit_percentage"`
	RequiredInvestment float64   `json:"required_investment"`
	PotentialProfit    float64   `json:"potential_profit"`
	RiskScore          float64   `json:"risk_score"`
	ConfidenceScore    float64   `json:"confidence_score"`
	SimilarityScore    float64   `json:"similarity_score"`
	PriceDifference    float64   `json:"price_difference"`
	DiscoveredAt       time.Time `json:"discovered_at"`
	Rationale          string    `json:"rationale,omitempty"`
}

// Sizing is the capital allocation recommended for an opportunity.
type Sizing struct {
	Investment      float64 `json:"investment"`
	KellyFraction   float64 `json:"kelly_fraction"`
	CapitalFraction float64 `json:"capital_fraction"`
	ExpectedProfit  float64 `json:"expected_profit"`
	MaxLoss         float64 `json:"max_loss"`
}

// SizedOpportunity couples an opportunity with its sizing for reporting.
type SizedOpportunity struct {
	Opportunity
	Sizing Sizing `json:"sizing"`
}

// Spread is a raw cross-exchange price gap between two markets, listed
// regardless of whether it clears the profit threshold.
type Spread struct {
	MarketA Market  `json:"market_a"`
	MarketB Market  `json:"market_b"`
	PriceA  float64 `json:"price_a"`
	PriceB  float64 `json:"price_b"`
	Spread  float64 `json:"spread"`
}
