package arbitrage

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// CrossPairer pairs every market of one exchange with every market of the
// other. With Score set it attaches the token-overlap similarity of the two
// primary questions and drops pairs below MinSimilarity.
type CrossPairer struct {
	Score         bool
	MinSimilarity float64
}

// Name returns the registry name of the pairer.
func (p *CrossPairer) Name() string {
	if p.Score {
		return "similarity"
	}
	return "cross"
}

// Pair returns the candidate pairs in a-major order.
func (p *CrossPairer) Pair(a, b []domain.Market) []domain.MarketPair {
	pairs := make([]domain.MarketPair, 0, len(a)*len(b))
	for _, ma := range a {
		var ta map[string]struct{}
		if p.Score {
			ta = questionTokens(ma)
		}
		for _, mb := range b {
			pair := domain.MarketPair{A: ma, B: mb}
			if p.Score {
				sim := jaccard(ta, questionTokens(mb))
				if sim < p.MinSimilarity {
					continue
				}
				pair.Similarity = domain.Float64(sim)
				pair.Rationale = fmt.Sprintf("question token overlap %.2f", sim)
			}
			pairs = append(pairs, pair)
		}
	}
	return pairs
}

// Similarity returns the token-overlap similarity of two markets' primary
// questions in [0,1].
func Similarity(a, b domain.Market) float64 {
	return jaccard(questionTokens(a), questionTokens(b))
}

func questionTokens(m domain.Market) map[string]struct{} {
	q := m.PrimaryQuestion
	if q == "" {
		q = m.Title
	}
	words := strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}
