package stats

import "math"

// DefaultZ is the z-score for a two-sided 95% interval.
const DefaultZ = 1.96

// Interval is a confidence interval expressed in percent.
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// ConfidenceInterval calculates the normal-approximation interval
// p ± z·sqrt(p(1−p)/n) for a conversion rate, clamped to [0, 100] percent.
// An arm without visitors yields {0, 0}.
func ConfidenceInterval(conversions, visitors int64, z float64) Interval {
	if visitors <= 0 {
		return Interval{}
	}

	p := float64(conversions) / float64(visitors)
	margin := z * math.Sqrt(p*(1-p)/float64(visitors))

	lower := (p - margin) * 100
	upper := (p + margin) * 100

	// Clamp to [0, 100]
	if lower < 0 {
		lower = 0
	}
	if upper > 100 {
		upper = 100
	}

	return Interval{Lower: lower, Upper: upper}
}
