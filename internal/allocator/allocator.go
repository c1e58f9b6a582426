package allocator

import (
	"math/rand/v2"

	"github.com/headline-goat/abengine/internal/experiment"
)

// Source yields uniform floats in [0, 1). *rand.Rand from math/rand and
// math/rand/v2 both satisfy it.
type Source interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// Assign picks an arm using the process-wide random source.
func Assign(exp *experiment.Experiment) string {
	return AssignVariant(exp, globalSource{})
}

// AssignVariant picks an arm for one visit. Arms are weighted by the
// experiment's traffic split, or uniformly when it has none. Paused arms are
// skipped while any other arm is available; when every arm is paused the
// control is returned. Once a winner is selected every visit gets the winner.
func AssignVariant(exp *experiment.Experiment, src Source) string {
	arms := exp.Arms()

	candidates := make([]*experiment.Variant, 0, len(arms))
	for _, a := range arms {
		if a.Status == experiment.VariantWinner {
			return a.ID
		}
		if a.Status != experiment.VariantPaused {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		return experiment.ControlID
	}

	weights := make([]float64, len(candidates))
	total := 0.0
	for i, a := range candidates {
		w := 1.0
		if len(exp.TrafficSplit) > 0 {
			w = exp.TrafficSplit[a.ID]
		}
		weights[i] = w
		total += w
	}

	// Every remaining arm has a 0% share: fall back to uniform.
	if total <= 0 {
		for i := range weights {
			weights[i] = 1
		}
		total = float64(len(weights))
	}

	r := src.Float64() * total
	cumulative := 0.0
	for i, w := range weights {
		cumulative += w
		if r < cumulative {
			return candidates[i].ID
		}
	}

	// Rounding left r at the top edge; give it to the last weighted arm.
	for i := len(candidates) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return candidates[i].ID
		}
	}
	return candidates[len(candidates)-1].ID
}
