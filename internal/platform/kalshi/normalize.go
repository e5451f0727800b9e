package kalshi

import (
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbscanner/internal/domain"
	"github.com/alanyoungcy/arbscanner/internal/normalize"
)

const (
	marketURLBase = "https://kalshi.com/markets"
	urlSlugWords  = 6
)

var statusMap = map[string]domain.MarketStatus{
	"open":        domain.MarketStatusActive,
	"active":      domain.MarketStatusActive,
	"initialized": domain.MarketStatusActive,
	"closed":      domain.MarketStatusClosed,
	"settled":     domain.MarketStatusSettled,
	"finalized":   domain.MarketStatusSettled,
	"determined":  domain.MarketStatusSettled,
	"paused":      domain.MarketStatusPaused,
}

// Normalizer converts Kalshi records into canonical markets.
type Normalizer struct {
	logger *slog.Logger
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// Normalize maps raw onto a canonical market. It returns false when the
// record has no ticker or no title.
func (n *Normalizer) Normalize(raw RawMarket) (domain.Market, bool) {
	if strings.TrimSpace(raw.Ticker) == "" || strings.TrimSpace(raw.Title) == "" {
		n.logger.Warn("kalshi: skipping market with missing ticker or title",
			slog.String("ticker", raw.Ticker),
		)
		return domain.Market{}, false
	}

	description := raw.RulesPrimary
	if description == "" {
		description = raw.Title
	}

	status, ok := statusMap[strings.ToLower(strings.TrimSpace(raw.Status))]
	if !ok {
		status = domain.MarketStatusActive
	}

	m := domain.Market{
		ID:              raw.Ticker,
		Platform:        domain.PlatformKalshi,
		Title:           raw.Title,
		Description:     description,
		Type:            domain.MarketTypeBinary,
		Status:          status,
		Category:        raw.Category,
		Subcategory:     raw.EventTicker,
		CreatedAt:       normalize.Timestamp(raw.OpenTime),
		CloseDate:       normalize.Timestamp(raw.CloseTime),
		ResolutionDate:  normalize.Timestamp(raw.ExpirationTime),
		Outcomes:        n.outcomes(raw),
		TotalVolume:     copyFloat(raw.Volume),
		TotalLiquidity:  copyFloat(raw.Liquidity),
		Tags:            []string{},
		SourceURL:       MarketURL(raw.Ticker, raw.Title),
		Raw:             raw.Raw,
		PrimaryQuestion: normalize.PrimaryQuestion(raw.Title),
	}
	return m, true
}

func (n *Normalizer) outcomes(raw RawMarket) []domain.Outcome {
	yesBid := cents(raw.YesBid, raw.YesBidDollars)
	yesAsk := cents(raw.YesAsk, raw.YesAskDollars)
	noBid := cents(raw.NoBid, raw.NoBidDollars)
	noAsk := cents(raw.NoAsk, raw.NoAskDollars)
	last := cents(raw.LastPrice, raw.LastPriceDollars)

	outcomes := make([]domain.Outcome, 0, 2)

	if yesBid != nil || yesAsk != nil {
		o := domain.Outcome{
			ID:     raw.Ticker + "_yes",
			Name:   "Yes",
			Volume: copyFloat(raw.Volume),
		}
		if c, ok := normalize.FirstPositive(last, yesAsk, yesBid); ok {
			o.YesPrice = n.price(raw.Ticker, c)
		}
		if c, ok := normalize.FirstPositive(last); ok {
			o.LastTradePrice = n.price(raw.Ticker, c)
		}
		o.Bid = n.optionalPrice(raw.Ticker, yesBid)
		o.Ask = n.optionalPrice(raw.Ticker, yesAsk)
		outcomes = append(outcomes, o)
	}

	if noBid != nil || noAsk != nil {
		o := domain.Outcome{
			ID:     raw.Ticker + "_no",
			Name:   "No",
			Volume: copyFloat(raw.Volume),
		}
		var fromLast *float64
		if last != nil && *last > 0 {
			fromLast = domain.Float64(100 - *last)
		}
		if c, ok := normalize.FirstPositive(fromLast, noAsk, noBid); ok {
			o.NoPrice = n.price(raw.Ticker, c)
		}
		o.Bid = n.optionalPrice(raw.Ticker, noBid)
		o.Ask = n.optionalPrice(raw.Ticker, noAsk)
		outcomes = append(outcomes, o)
	}

	return outcomes
}

// price converts cents to a probability, logging when the value is out of
// range.
func (n *Normalizer) price(ticker string, c float64) *float64 {
	p, clamped := normalize.Cents(c)
	if clamped {
		n.logger.Warn("kalshi: price out of range, clamped",
			slog.String("ticker", ticker),
			slog.Float64("cents", c),
			slog.Float64("clamped_to", p),
		)
	}
	return &p
}

func (n *Normalizer) optionalPrice(ticker string, c *float64) *float64 {
	if c == nil {
		return nil
	}
	return n.price(ticker, *c)
}

// MarketURL builds the public market page URL from the ticker prefix and a
// slug of the title.
func MarketURL(ticker, title string) string {
	prefix, _, _ := strings.Cut(ticker, "-")
	return marketURLBase + "/" + strings.ToLower(prefix) + "/" + normalize.Slug(title, urlSlugWords)
}

// cents returns the cents field when present, otherwise the dollar string
// converted to cents.
func cents(c *float64, dollars string) *float64 {
	if c != nil {
		return copyFloat(c)
	}
	if strings.TrimSpace(dollars) == "" {
		return nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(dollars))
	if err != nil {
		return nil
	}
	v, _ := d.Shift(2).Float64()
	return &v
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
