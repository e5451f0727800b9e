// Package normalize holds the exchange-independent rules used when mapping
// raw exchange payloads onto the canonical market model.
package normalize

// Probability maps a price onto the [0,1] scale. Values in (1,100] are taken
// to be percent-scaled and divided by 100; values above 100 are clamped to
// 1.0 and reported through clamped so the caller can log a warning. Negative
// values are clamped to zero.
func Probability(v float64) (p float64, clamped bool) {
	switch {
	case v < 0:
		return 0, true
	case v <= 1:
		return v, false
	case v <= 100:
		return v / 100, false
	default:
		return 1, true
	}
}

// Cents converts an integer-cents price (0..100) to a probability. Values
// outside that range are clamped.
func Cents(c float64) (p float64, clamped bool) {
	switch {
	case c < 0:
		return 0, true
	case c > 100:
		return 1, true
	default:
		return c / 100, false
	}
}

// FirstPositive returns the first strictly positive value among vs.
func FirstPositive(vs ...*float64) (float64, bool) {
	for _, v := range vs {
		if v != nil && *v > 0 {
			return *v, true
		}
	}
	return 0, false
}
