package domain

import (
	"encoding/json"
	"time"
)

// Platform identifies the exchange a market was sourced from.
type Platform string

const (
	PlatformKalshi     Platform = "kalshi"
	PlatformPolymarket Platform = "polymarket"
)

// MarketType classifies the payoff structure of a market.
type MarketType string

const (
	MarketTypeBinary      MarketType = "binary"
	MarketTypeCategorical MarketType = "categorical"
	MarketTypeScalar      MarketType = "scalar"
)

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusActive  MarketStatus = "active"
	MarketStatusClosed  MarketStatus = "closed"
	MarketStatusSettled MarketStatus = "settled"
	MarketStatusPaused  MarketStatus = "paused"
)

// Outcome is one possible resolution of a market. All prices are on the
// [0,1] probability scale.
type Outcome struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	YesPrice       *float64 `json:"yes_price,omitempty"`
	NoPrice        *float64 `json:"no_price,omitempty"`
	LastTradePrice *float64 `json:"last_trade_price,omitempty"`
	Bid            *float64 `json:"bid,omitempty"`
	Ask            *float64 `json:"ask,omitempty"`
	Volume         *float64 `json:"volume,omitempty"`
	IsWinner       *bool    `json:"is_winner,omitempty"`
}

// Priced reports whether any price field is populated.
func (o Outcome) Priced() bool {
	return o.YesPrice != nil || o.NoPrice != nil || o.LastTradePrice != nil ||
		o.Bid != nil || o.Ask != nil
}

// Market is the canonical cross-exchange representation of a prediction
// market contract.
type Market struct {
	ID              string          `json:"id"`
	Platform        Platform        `json:"platform"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Type            MarketType      `json:"market_type"`
	Status          MarketStatus    `json:"status"`
	Category        string          `json:"category"`
	Subcategory     string          `json:"subcategory,omitempty"`
	CreatedAt       *time.Time      `json:"created_at,omitempty"`
	CloseDate       *time.Time      `json:"close_date,omitempty"`
	ResolutionDate  *time.Time      `json:"resolution_date,omitempty"`
	Outcomes        []Outcome       `json:"outcomes"`
	TotalVolume     *float64        `json:"total_volume,omitempty"`
	TotalLiquidity  *float64        `json:"total_liquidity,omitempty"`
	Tags            []string        `json:"tags"`
	SourceURL       string          `json:"source_url"`
	Raw             json.RawMessage `json:"raw_data,omitempty"`
	PrimaryQuestion string          `json:"primary_question"`
	ConfidenceScore *float64        `json:"confidence_score,omitempty"`
}

// BestYesPrice derives the best available YES probability: the first
// outcome yes price, else the first last-trade price, else one minus the
// first no price.
func (m Market) BestYesPrice() (float64, bool) {
	for _, o := range m.Outcomes {
		if o.YesPrice != nil {
			return *o.YesPrice, true
		}
	}
	for _, o := range m.Outcomes {
		if o.LastTradePrice != nil {
			return *o.LastTradePrice, true
		}
	}
	for _, o := range m.Outcomes {
		if o.NoPrice != nil {
			return 1 - *o.NoPrice, true
		}
	}
	return 0, false
}

// MarketPair is a candidate pairing of two markets produced outside the
// detector. Similarity is nil when the pairing source offers no score.
type MarketPair struct {
	A          Market
	B          Market
	Similarity *float64
	Rationale  string
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }
