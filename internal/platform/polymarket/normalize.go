package polymarket

import (
	"log/slog"
	"strings"

	"github.com/alanyoungcy/arbscanner/internal/domain"
	"github.com/alanyoungcy/arbscanner/internal/normalize"
)

const (
	eventURLBase    = "https://polymarket.com/event"
	defaultCategory = "General"
)

// Normalizer converts CLOB records into canonical markets.
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

// Normalize maps raw and its token quotes onto a canonical market. It returns
// false when the record has no condition id or no question.
func (n *Normalizer) Normalize(raw RawMarket, quotes Quotes) (domain.Market, bool) {
	if strings.TrimSpace(raw.ConditionID) == "" || strings.TrimSpace(raw.Question) == "" {
		n.logger.Warn("polymarket: skipping market with missing condition id or question",
			slog.String("condition_id", raw.ConditionID),
		)
		return domain.Market{}, false
	}

	status := domain.MarketStatusActive
	if bool(raw.Closed) || !bool(raw.Active) {
		status = domain.MarketStatusClosed
	}

	category := raw.Category
	if category == "" {
		category = defaultCategory
	}

	tags := make([]string, 0, len(raw.Tags))
	tags = append(tags, raw.Tags...)

	m := domain.Market{
		ID:              raw.ConditionID,
		Platform:        domain.PlatformPolymarket,
		Title:           raw.Question,
		Description:     raw.Question,
		Type:            domain.MarketTypeBinary,
		Status:          status,
		Category:        category,
		Subcategory:     raw.MarketSlug,
		CloseDate:       normalize.Timestamp(raw.EndDateISO),
		Outcomes:        n.outcomes(raw, quotes),
		Tags:            tags,
		SourceURL:       MarketURL(raw),
		Raw:             raw.Raw,
		PrimaryQuestion: normalize.PrimaryQuestion(raw.Question),
	}
	return m, true
}

func (n *Normalizer) outcomes(raw RawMarket, quotes Quotes) []domain.Outcome {
	outcomes := make([]domain.Outcome, 0, len(raw.Tokens))
	for _, tok := range raw.Tokens {
		if tok.TokenID == "" {
			continue
		}
		name := tok.Outcome
		if name == "" {
			name = "Unknown"
		}
		o := domain.Outcome{
			ID:   raw.ConditionID + "_" + strings.ReplaceAll(strings.ToLower(name), " ", "_"),
			Name: name,
		}
		if raw.Closed {
			winner := bool(tok.Winner)
			o.IsWinner = &winner
		}

		if q, ok := quotes[tok.TokenID]; ok && q.Buy != nil {
			p := n.price(raw.ConditionID, *q.Buy)
			if strings.Contains(strings.ToLower(name), "yes") {
				o.YesPrice = p
			} else {
				o.NoPrice = p
			}
			if q.Sell != nil {
				o.Bid = n.price(raw.ConditionID, *q.Buy)
				o.Ask = n.price(raw.ConditionID, *q.Sell)
			}
		}
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func (n *Normalizer) price(conditionID string, v float64) *float64 {
	p, clamped := normalize.Probability(v)
	if clamped {
		n.logger.Warn("polymarket: price out of range, clamped",
			slog.String("condition_id", conditionID),
			slog.Float64("price", v),
			slog.Float64("clamped_to", p),
		)
	}
	return &p
}

// MarketURL builds the public event page URL, tagged with the first token id
// when there is one.
func MarketURL(raw RawMarket) string {
	ref := raw.MarketSlug
	if ref == "" {
		ref = raw.ConditionID
	}
	u := eventURLBase + "/" + ref
	if ids := raw.TokenIDs(); len(ids) > 0 {
		u += "?tid=" + ids[0]
	}
	return u
}
