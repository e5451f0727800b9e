package arbitrage

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

const (
	closeDateTolerance = 7 * 24 * time.Hour
	lowVolume          = 1000.0
	dataQualityGap     = 0.30

	riskCloseDates  = 0.3
	riskLowVolume   = 0.2
	riskResolution  = 0.1
	riskSimilarity  = 0.4
	riskDataQuality = 0.3
)

// Config holds the detector thresholds.
type Config struct {
	MinSpread         float64 // minimum absolute YES price gap
	MinProfitPct      float64 // minimum net profit as a percent of notional
	CostRate          float64 // flat cost as a fraction of notional
	Notional          float64 // reference investment per opportunity
	DefaultSimilarity float64 // used when a pair carries no score
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		MinSpread:         0.03,
		MinProfitPct:      2.0,
		CostRate:          0.01,
		Notional:          1000,
		DefaultSimilarity: 0.5,
	}
}

// Detector evaluates market pairs. It holds no mutable state and is safe for
// concurrent use.
type Detector struct {
	cfg    Config
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// Option customises a Detector.
type Option func(*Detector)

// WithClock overrides the discovery timestamp source.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// WithIDs overrides opportunity id generation.
func WithIDs(newID func() string) Option {
	return func(d *Detector) { d.newID = newID }
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) { d.logger = logger }
}

// NewDetector creates a Detector. Non-positive notional falls back to the
// default.
func NewDetector(cfg Config, opts ...Option) *Detector {
	if cfg.Notional <= 0 {
		cfg.Notional = DefaultConfig().Notional
	}
	d := &Detector{
		cfg:    cfg,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Config returns the detector thresholds.
func (d *Detector) Config() Config {
	return d.cfg
}

// Evaluate compares two markets using the default similarity.
func (d *Detector) Evaluate(a, b domain.Market) (domain.Opportunity, bool) {
	return d.EvaluatePair(domain.MarketPair{A: a, B: b})
}

// EvaluatePair scores one candidate pair. It returns false when either market
// has no derivable YES price, the spread is under MinSpread, or the net profit
// is under MinProfitPct.
func (d *Detector) EvaluatePair(p domain.MarketPair) (domain.Opportunity, bool) {
	pa, okA := p.A.BestYesPrice()
	pb, okB := p.B.BestYesPrice()
	if !okA || !okB {
		return domain.Opportunity{}, false
	}

	spread := math.Abs(pa - pb)
	if spread < d.cfg.MinSpread {
		return domain.Opportunity{}, false
	}

	buy := domain.Leg{Platform: p.A.Platform, MarketID: p.A.ID, Price: pa}
	sell := domain.Leg{Platform: p.B.Platform, MarketID: p.B.ID, Price: pb}
	if pb < pa {
		buy, sell = sell, buy
	}
	if buy.Price <= 0 {
		return domain.Opportunity{}, false
	}

	perUnit := sell.Price - buy.Price
	gross := d.cfg.Notional / buy.Price * perUnit
	net := gross - d.cfg.CostRate*d.cfg.Notional
	pct := net / d.cfg.Notional * 100
	if pct < d.cfg.MinProfitPct {
		return domain.Opportunity{}, false
	}

	sim := d.cfg.DefaultSimilarity
	if p.Similarity != nil {
		sim = *p.Similarity
	}
	sim = clamp01(sim)

	opp := domain.Opportunity{
		ID:                 d.newID(),
		MarketA:            p.A,
		MarketB:            p.B,
		Buy:                buy,
		Sell:               sell,
		Spread:             spread,
		ProfitPerUnit:      perUnit,
		ProfitPercentage:   pct,
		RequiredInvestment: d.cfg.Notional,
		PotentialProfit:    net,
		RiskScore:          RiskScore(p.A, p.B, sim, spread),
		ConfidenceScore:    sim,
		SimilarityScore:    sim,
		PriceDifference:    perUnit,
		DiscoveredAt:       d.now().UTC(),
		Rationale:          p.Rationale,
	}
	d.logger.Debug("arbitrage: opportunity found",
		slog.String("buy", string(buy.Platform)+":"+buy.MarketID),
		slog.String("sell", string(sell.Platform)+":"+sell.MarketID),
		slog.Float64("spread", spread),
		slog.Float64("profit_pct", pct),
	)
	return opp, true
}

// DetectPairs evaluates every pair and returns the opportunities ordered by
// profit percentage, highest first.
func (d *Detector) DetectPairs(pairs []domain.MarketPair) []domain.Opportunity {
	var opps []domain.Opportunity
	for _, p := range pairs {
		if opp, ok := d.EvaluatePair(p); ok {
			opps = append(opps, opp)
		}
	}
	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].ProfitPercentage > opps[j].ProfitPercentage
	})
	return opps
}

// Spreads lists every cross pair whose YES prices differ by at least
// MinSpread, widest first, whether or not it clears the profit threshold.
func (d *Detector) Spreads(a, b []domain.Market) []domain.Spread {
	var out []domain.Spread
	for _, ma := range a {
		pa, ok := ma.BestYesPrice()
		if !ok {
			continue
		}
		for _, mb := range b {
			pb, ok := mb.BestYesPrice()
			if !ok {
				continue
			}
			if s := math.Abs(pa - pb); s >= d.cfg.MinSpread {
				out = append(out, domain.Spread{MarketA: ma, MarketB: mb, PriceA: pa, PriceB: pb, Spread: s})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Spread > out[j].Spread })
	return out
}

// RiskScore sums the additive risk terms for a pair and caps the result at
// one. Close-date and volume terms apply only when the values are known.
func RiskScore(a, b domain.Market, similarity, priceDiff float64) float64 {
	risk := riskResolution
	if a.CloseDate != nil && b.CloseDate != nil {
		if gap := a.CloseDate.Sub(*b.CloseDate).Abs(); gap > closeDateTolerance {
			risk += riskCloseDates
		}
	}
	if lowVolumeKnown(a) || lowVolumeKnown(b) {
		risk += riskLowVolume
	}
	risk += riskSimilarity * (1 - clamp01(similarity))
	if priceDiff > dataQualityGap {
		risk += riskDataQuality
	}
	return clamp01(risk)
}

func lowVolumeKnown(m domain.Market) bool {
	return m.TotalVolume != nil && *m.TotalVolume < lowVolume
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
