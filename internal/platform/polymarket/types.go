package polymarket

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// flexBool unmarshals from a JSON bool or a string ("true"/"false"/"1") since
// CLOB responses are not consistent about the encoding.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// RawMarket is a market record as returned by the CLOB /markets endpoint.
type RawMarket struct {
	ConditionID      string   `json:"condition_id"`
	QuestionID       string   `json:"question_id"`
	Question         string   `json:"question"`
	Description      string   `json:"description"`
	MarketSlug       string   `json:"market_slug"`
	Category         string   `json:"category"`
	Active           flexBool `json:"active"`
	Closed           flexBool `json:"closed"`
	EndDateISO       string   `json:"end_date_iso"`
	GameStartTime    string   `json:"game_start_time"`
	Tokens           []Token  `json:"tokens"`
	Tags             []string `json:"tags"`
	NegRisk          flexBool `json:"neg_risk"`
	MinimumOrderSize *float64 `json:"minimum_order_size"`
	MinimumTickSize  *float64 `json:"minimum_tick_size"`

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

// TokenIDs returns the non-empty token ids of the market in order.
func (m RawMarket) TokenIDs() []string {
	ids := make([]string, 0, len(m.Tokens))
	for _, t := range m.Tokens {
		if t.TokenID != "" {
			ids = append(ids, t.TokenID)
		}
	}
	return ids
}

// Token is one outcome token of a CLOB market.
type Token struct {
	TokenID string   `json:"token_id"`
	Outcome string   `json:"outcome"`
	Winner  flexBool `json:"winner"`
}

// MarketsPage is one page of GET /markets.
type MarketsPage struct {
	Data       []RawMarket `json:"data"`
	NextCursor string      `json:"next_cursor"`
	Limit      int         `json:"limit"`
	Count      int         `json:"count"`
}

// Side selects the book side of a price query.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// priceParam is one entry of the POST /prices request body.
type priceParam struct {
	TokenID string `json:"token_id"`
	Side    Side   `json:"side"`
}

// Quote holds the BUY and SELL prices of one token. Either may be absent.
type Quote struct {
	Buy  *float64 `json:"buy,omitempty"`
	Sell *float64 `json:"sell,omitempty"`
}

// Quotes maps token id to its quote.
type Quotes map[string]Quote

// pricesResponse is the body of POST /prices: token id -> side -> price,
// where a price may be a JSON number or a numeric string.
type pricesResponse map[string]map[string]json.RawMessage

// parsePrice reads a number or numeric string. It returns nil for anything
// else.
func parsePrice(raw json.RawMessage) *float64 {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	v, _ := d.Float64()
	return &v
}

// toQuotes converts a decoded price response, keeping only the requested
// tokens.
func (r pricesResponse) toQuotes(tokenIDs []string) Quotes {
	out := make(Quotes, len(tokenIDs))
	for _, id := range tokenIDs {
		sides, ok := r[id]
		if !ok {
			continue
		}
		q := Quote{
			Buy:  parsePrice(sides[string(SideBuy)]),
			Sell: parsePrice(sides[string(SideSell)]),
		}
		if q.Buy != nil || q.Sell != nil {
			out[id] = q
		}
	}
	return out
}
