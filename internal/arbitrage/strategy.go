// Package arbitrage scores cross-exchange price gaps between canonical
// markets, sizes the qualifying opportunities, and proposes the market pairs
// to compare.
package arbitrage

import (
	"fmt"
	"sort"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// Pairer proposes candidate market pairs across two exchanges. Deciding that
// two markets describe the same event happens here, outside the detector.
type Pairer interface {
	Name() string
	Pair(a, b []domain.Market) []domain.MarketPair
}

var pairers = map[string]func(minSimilarity float64) Pairer{
	"cross": func(float64) Pairer {
		return &CrossPairer{}
	},
	"similarity": func(minSimilarity float64) Pairer {
		return &CrossPairer{Score: true, MinSimilarity: minSimilarity}
	},
}

// NewPairer returns the pairer registered under name.
func NewPairer(name string, minSimilarity float64) (Pairer, error) {
	mk, ok := pairers[name]
	if !ok {
		return nil, fmt.Errorf("arbitrage: unknown pairer %q (have %v)", name, PairerNames())
	}
	return mk(minSimilarity), nil
}

// PairerNames lists the registered pairer names in sorted order.
func PairerNames() []string {
	names := make([]string, 0, len(pairers))
	for n := range pairers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
