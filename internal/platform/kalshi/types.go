package kalshi

import (
	"encoding/json"
	"fmt"
)

// RawMarket is a market record as returned by the Kalshi trade API. Price
// fields are integer cents; pointer fields distinguish "absent" from zero.
type RawMarket struct {
	Ticker           string   `json:"ticker"`
	EventTicker      string   `json:"event_ticker"`
	Title            string   `json:"title"`
	Subtitle         string   `json:"subtitle"`
	RulesPrimary     string   `json:"rules_primary"`
	Status           string   `json:"status"`
	Category         string   `json:"category"`
	YesBid           *float64 `json:"yes_bid"`
	YesAsk           *float64 `json:"yes_ask"`
	NoBid            *float64 `json:"no_bid"`
	NoAsk            *float64 `json:"no_ask"`
	LastPrice        *float64 `json:"last_price"`
	YesBidDollars    string   `json:"yes_bid_dollars"`
	YesAskDollars    string   `json:"yes_ask_dollars"`
	NoBidDollars     string   `json:"no_bid_dollars"`
	NoAskDollars     string   `json:"no_ask_dollars"`
	LastPriceDollars string   `json:"last_price_dollars"`
	Volume           *float64 `json:"volume"`
	Volume24H        *float64 `json:"volume_24h"`
	OpenInterest     *float64 `json:"open_interest"`
	Liquidity        *float64 `json:"liquidity"`
	OpenTime         string   `json:"open_time"`
	CloseTime        string   `json:"close_time"`
	ExpirationTime   string   `json:"expiration_time"`
	Result           string   `json:"result"`

	// Raw is the verbatim JSON object this record was decoded from.
	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the record and keeps a copy of the original bytes.
func (m *RawMarket) UnmarshalJSON(data []byte) error {
	type alias RawMarket
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*m = RawMarket(a)
	m.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarketsPage is one page of GET /markets.
type MarketsPage struct {
	Markets []RawMarket `json:"markets"`
	Cursor  string      `json:"cursor"`
}

type marketResponse struct {
	Market RawMarket `json:"market"`
}

// PriceLevel is a single price/quantity entry of the orderbook. Prices are in
// cents.
type PriceLevel struct {
	Price    int64 `json:"price"`
	Quantity int64 `json:"quantity"`
}

// UnmarshalJSON accepts both the [price, quantity] pair form returned by the
// API and an object form.
func (l *PriceLevel) UnmarshalJSON(data []byte) error {
	var pair []int64
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("kalshi: price level has %d elements, want 2", len(pair))
		}
		l.Price, l.Quantity = pair[0], pair[1]
		return nil
	}
	type alias PriceLevel
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*l = PriceLevel(a)
	return nil
}

// RawOrderbook holds resting bids for both sides of a market.
type RawOrderbook struct {
	Yes []PriceLevel `json:"yes"`
	No  []PriceLevel `json:"no"`
}

type orderbookResponse struct {
	Orderbook RawOrderbook `json:"orderbook"`
}

// RawExchangeStatus is the response of GET /exchange/status.
type RawExchangeStatus struct {
	ExchangeActive bool `json:"exchange_active"`
	TradingActive  bool `json:"trading_active"`
}
