package stats

import (
	"math"
	"time"
)

// Result is the outcome of one significance computation.
type Result struct {
	IsSignificant      bool      `json:"isSignificant"`
	PValue             float64   `json:"pValue"`
	ChiSquareStatistic float64   `json:"chiSquareStatistic"`
	WinnerID           string    `json:"winnerId,omitempty"`
	ComputedAt         time.Time `json:"computedAt"`
}

// Arm carries the counts of the control or one variant.
type Arm struct {
	ID          string
	Visitors    int64
	Conversions int64
}

// Rate returns conversions/visitors, or 0 for an arm with no visitors.
func (a Arm) Rate() float64 {
	if a.Visitors == 0 {
		return 0
	}
	return float64(a.Conversions) / float64(a.Visitors)
}

// criticalValues holds the chi-square critical values at 0.90 and 0.95
// confidence for 1 through 4 degrees of freedom.
var criticalValues = [4][2]float64{
	{2.706, 3.841},
	{4.605, 5.991},
	{6.251, 7.815},
	{7.779, 9.488},
}

// Calculate runs a chi-square test of independence over the control and the
// variants. Degrees of freedom equal the number of variants. The p-value comes
// from a coarse lookup table, not the chi-square CDF; decisions near the
// thresholds depend on that table.
func Calculate(control Arm, variants []Arm, minSampleSize int, confidenceLevel float64) Result {
	arms := make([]Arm, 0, len(variants)+1)
	arms = append(arms, control)
	arms = append(arms, variants...)

	var visitors, conversions int64
	for _, a := range arms {
		visitors += a.Visitors
		conversions += a.Conversions
	}

	if visitors == 0 || visitors < int64(minSampleSize) {
		return Result{PValue: 1.0}
	}

	chi := ChiSquare(arms)
	p := PValue(chi, len(variants))

	result := Result{
		PValue:             p,
		ChiSquareStatistic: chi,
		IsSignificant:      p < alpha(confidenceLevel),
	}
	if result.IsSignificant {
		result.WinnerID = leader(arms)
	}
	return result
}

// ChiSquare sums (observed-expected)^2/expected over every arm x outcome cell
// under the pooled conversion rate. Cells with zero expectation are skipped.
func ChiSquare(arms []Arm) float64 {
	var visitors, conversions int64
	for _, a := range arms {
		visitors += a.Visitors
		conversions += a.Conversions
	}
	if visitors == 0 {
		return 0
	}

	convRate := float64(conversions) / float64(visitors)
	nonRate := float64(visitors-conversions) / float64(visitors)

	chi := 0.0
	for _, a := range arms {
		if a.Visitors == 0 {
			continue
		}
		n := float64(a.Visitors)
		chi += cell(float64(a.Conversions), n*convRate)
		chi += cell(float64(a.Visitors-a.Conversions), n*nonRate)
	}
	return chi
}

func cell(observed, expected float64) float64 {
	if expected == 0 {
		return 0
	}
	d := observed - expected
	return d * d / expected
}

// PValue maps a statistic to 0.10, 0.05, 0.01 or a value interpolated
// between 0.05 and 0.01. df above 4 uses the df=4 row; below 1 uses df=1.
func PValue(chi float64, df int) float64 {
	if df < 1 {
		df = 1
	}
	if df > len(criticalValues) {
		df = len(criticalValues)
	}
	c90, c95 := criticalValues[df-1][0], criticalValues[df-1][1]

	switch {
	case chi <= c90:
		return 0.10
	case chi <= c95:
		return 0.05
	case chi > 1.5*c95:
		return 0.01
	default:
		// chi in (c95, 1.5*c95]: 0.05 at c95 down to 0.01 at 1.5*c95
		frac := (chi - c95) / (0.5 * c95)
		return 0.05 - frac*0.04
	}
}

// alpha is 1-confidenceLevel rounded to 1e-9 so that 1-0.95 compares as 0.05.
func alpha(confidenceLevel float64) float64 {
	return math.Round((1-confidenceLevel)*1e9) / 1e9
}

// leader returns the arm with the highest conversion rate; ties go to the
// earliest arm.
func leader(arms []Arm) string {
	best := -1
	bestRate := -1.0
	for i, a := range arms {
		if r := a.Rate(); r > bestRate {
			best, bestRate = i, r
		}
	}
	if best < 0 {
		return ""
	}
	return arms[best].ID
}
