// Package report renders scan results for the terminal and archives them to
// blob storage.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

const (
	ruleWide   = 80
	ruleNarrow = 60
	titleWidth = 80
)

// Printer writes human-readable scan output.
type Printer struct {
	w io.Writer
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Summary prints the per-exchange match counts and any recorded problems.
func (p *Printer) Summary(sess domain.ScanSession) {
	fmt.Fprintf(p.w, "Scan %s for %q: kalshi=%d polymarket=%d opportunities=%d\n",
		sess.ID, sess.Keyword, sess.KalshiCount, sess.PolymarketCount, sess.OpportunitiesFound)
	if !sess.NetworkReady {
		fmt.Fprintln(p.w, "Network not ready; polymarket unavailable.")
	}
	for _, e := range sess.Errors {
		fmt.Fprintf(p.w, "  error: %s\n", e)
	}
	for _, w := range sess.Warnings {
		fmt.Fprintf(p.w, "  warning: %s\n", w)
	}
}

// Opportunities prints opportunities ranked by profit percentage.
func (p *Printer) Opportunities(opps []domain.SizedOpportunity) {
	if len(opps) == 0 {
		fmt.Fprintln(p.w, "No arbitrage opportunities found.")
		return
	}

	ranked := make([]domain.SizedOpportunity, len(opps))
	copy(ranked, opps)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ProfitPercentage > ranked[j].ProfitPercentage
	})

	fmt.Fprintf(p.w, "\n%s\nARBITRAGE OPPORTUNITIES FOUND: %d\n%s\n",
		strings.Repeat("=", ruleWide), len(ranked), strings.Repeat("=", ruleWide))

	for i, o := range ranked {
		fmt.Fprintf(p.w, "\nOPPORTUNITY #%d\n%s\n", i+1, strings.Repeat("-", ruleNarrow))

		fmt.Fprintln(p.w, "Markets:")
		fmt.Fprintf(p.w, "  %s: %s\n", label(o.MarketA.Platform), o.MarketA.Title)
		fmt.Fprintf(p.w, "  %s: %s\n", label(o.MarketB.Platform), o.MarketB.Title)

		fmt.Fprintln(p.w, "\nPricing:")
		fmt.Fprintf(p.w, "  Spread: %s (%s%%)\n", price(o.Spread), pct(o.ProfitPercentage))
		fmt.Fprintf(p.w, "  Risk: %s  Similarity: %s\n", price(o.RiskScore), price(o.SimilarityScore))

		fmt.Fprintln(p.w, "\nStrategy:")
		fmt.Fprintf(p.w, "  Buy on: %s at %s\n", label(o.Buy.Platform), price(o.Buy.Price))
		fmt.Fprintf(p.w, "  Sell on: %s at %s\n", label(o.Sell.Platform), price(o.Sell.Price))
		fmt.Fprintf(p.w, "  Profit per $1: $%s\n", price(o.ProfitPerUnit))
		fmt.Fprintf(p.w, "  Potential profit: $%s on $%s\n", money(o.PotentialProfit), money(o.RequiredInvestment))

		if o.Sizing.Investment > 0 {
			fmt.Fprintln(p.w, "\nSizing:")
			fmt.Fprintf(p.w, "  Invest: $%s (kelly %s, %s%% of capital)\n",
				money(o.Sizing.Investment), price(o.Sizing.KellyFraction), pct(o.Sizing.CapitalFraction*100))
			fmt.Fprintf(p.w, "  Expected profit: $%s  Max loss: $%s\n",
				money(o.Sizing.ExpectedProfit), money(o.Sizing.MaxLoss))
		}

		fmt.Fprintln(p.w, "\nSource URLs:")
		fmt.Fprintf(p.w, "  %s: %s\n", label(o.MarketA.Platform), o.MarketA.SourceURL)
		fmt.Fprintf(p.w, "  %s: %s\n", label(o.MarketB.Platform), o.MarketB.SourceURL)

		fmt.Fprintf(p.w, "\nDetected at: %s\n", o.DiscoveredAt.Format("2006-01-02T15:04:05Z07:00"))
	}
}

// Spreads prints the raw cross-exchange price gaps.
func (p *Printer) Spreads(spreads []domain.Spread, minSpread float64) {
	fmt.Fprintf(p.w, "\n=== Cross-exchange spreads (|yes price diff| >= %s) ===\n\n", price(minSpread))
	if len(spreads) == 0 {
		fmt.Fprintln(p.w, "No candidates at the chosen threshold. Try a different --keyword or lower --min-spread.")
		return
	}
	for i, s := range spreads {
		fmt.Fprintf(p.w, "[%03d] spread=%s | %s=%s vs %s=%s\n", i+1, price(s.Spread),
			initial(s.MarketA.Platform), price(s.PriceA), initial(s.MarketB.Platform), price(s.PriceB))
		fmt.Fprintf(p.w, "      %s: %s  (id=%s)\n", initial(s.MarketA.Platform), short(s.MarketA.Title, titleWidth), s.MarketA.ID)
		fmt.Fprintf(p.w, "      %s: %s  (id=%s)\n\n", initial(s.MarketB.Platform), short(s.MarketB.Title, titleWidth), s.MarketB.ID)
	}
}

func label(p domain.Platform) string {
	s := string(p)
	if s == "" {
		return "Unknown"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func initial(p domain.Platform) string {
	return label(p)[:1]
}

func price(v float64) string { return decimal.NewFromFloat(v).StringFixed(3) }
func pct(v float64) string   { return decimal.NewFromFloat(v).StringFixed(2) }
func money(v float64) string { return decimal.NewFromFloat(v).StringFixed(2) }

// short truncates s to n runes, marking the cut with an ellipsis.
func short(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
