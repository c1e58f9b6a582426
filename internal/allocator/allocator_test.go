package allocator_test

import (
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/headline-goat/abengine/internal/allocator"
	"github.com/headline-goat/abengine/internal/experiment"
)

type fixed float64

func (f fixed) Float64() float64 { return float64(f) }

func newExperiment(variants int, split map[string]float64) *experiment.Experiment {
	exp := &experiment.Experiment{
		ID:           "exp",
		Control:      experiment.Variant{ID: experiment.ControlID, Status: experiment.VariantRunning},
		TrafficSplit: split,
	}
	for i := 0; i < variants; i++ {
		exp.Variants = append(exp.Variants, experiment.Variant{
			ID:     fmt.Sprintf("variant_%d", i),
			Status: experiment.VariantRunning,
		})
	}
	return exp
}

func TestAssignVariant_Uniform(t *testing.T) {
	exp := newExperiment(2, nil)

	assert.Equal(t, "control", allocator.AssignVariant(exp, fixed(0.0)))
	assert.Equal(t, "control", allocator.AssignVariant(exp, fixed(0.33)))
	assert.Equal(t, "variant_0", allocator.AssignVariant(exp, fixed(0.34)))
	assert.Equal(t, "variant_1", allocator.AssignVariant(exp, fixed(0.99)))
}

func TestAssignVariant_RespectsSplit(t *testing.T) {
	exp := newExperiment(1, map[string]float64{"control": 90, "variant_0": 10})

	assert.Equal(t, "control", allocator.AssignVariant(exp, fixed(0.89)))
	assert.Equal(t, "variant_0", allocator.AssignVariant(exp, fixed(0.91)))
}

func TestAssignVariant_SplitDistribution(t *testing.T) {
	exp := newExperiment(2, map[string]float64{"control": 50, "variant_0": 30, "variant_1": 20})
	rng := rand.New(rand.NewPCG(1, 2))

	const n = 20000
	counts := map[string]int{}
	for i := 0; i < n; i++ {
		counts[allocator.AssignVariant(exp, rng)]++
	}

	for id, pct := range exp.TrafficSplit {
		got := float64(counts[id]) / n * 100
		assert.InDelta(t, pct, got, 2.0, "arm %s", id)
	}
}

func TestAssignVariant_SkipsPaused(t *testing.T) {
	exp := newExperiment(2, nil)
	exp.Variants[1].Status = experiment.VariantPaused

	for _, r := range []float64{0, 0.3, 0.6, 0.99} {
		assert.NotEqual(t, "variant_1", allocator.AssignVariant(exp, fixed(r)))
	}
}

func TestAssignVariant_AllPausedReturnsControl(t *testing.T) {
	exp := newExperiment(2, nil)
	for _, a := range exp.Arms() {
		a.Status = experiment.VariantPaused
	}

	assert.Equal(t, "control", allocator.AssignVariant(exp, fixed(0.99)))
}

func TestAssignVariant_ZeroShareRemaining(t *testing.T) {
	// The only arm with traffic is paused; the others split uniformly.
	exp := newExperiment(2, map[string]float64{"control": 0, "variant_0": 100, "variant_1": 0})
	exp.Variants[0].Status = experiment.VariantPaused

	assert.Equal(t, "control", allocator.AssignVariant(exp, fixed(0.2)))
	assert.Equal(t, "variant_1", allocator.AssignVariant(exp, fixed(0.8)))
}

func TestAssignVariant_WinnerTakesAll(t *testing.T) {
	exp := newExperiment(2, nil)
	exp.Variants[1].Status = experiment.VariantWinner

	assert.Equal(t, "variant_1", allocator.AssignVariant(exp, fixed(0)))
}

func TestAssign_UsesGlobalSource(t *testing.T) {
	exp := newExperiment(1, nil)
	got := allocator.Assign(exp)
	assert.Contains(t, []string{"control", "variant_0"}, got)
}

func TestAssignVariant_NeverPaused(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(rt, "variants")
		exp := newExperiment(n, nil)
		if rapid.Bool().Draw(rt, "withSplit") {
			exp.TrafficSplit = map[string]float64{}
			for _, a := range exp.Arms() {
				exp.TrafficSplit[a.ID] = rapid.Float64Range(0, 100).Draw(rt, "share_"+a.ID)
			}
		}

		active := 0
		for _, a := range exp.Arms() {
			if rapid.Bool().Draw(rt, "paused_"+a.ID) {
				a.Status = experiment.VariantPaused
			} else {
				active++
			}
		}

		r := rapid.Float64Range(0, math.Nextafter(1, 0)).Draw(rt, "r")
		got := allocator.AssignVariant(exp, fixed(r))

		arm, ok := exp.Arm(got)
		if !ok {
			rt.Fatalf("assigned unknown arm %q", got)
		}
		if active == 0 {
			if got != experiment.ControlID {
				rt.Fatalf("all paused: want control, got %s", got)
			}
			return
		}
		if arm.Status == experiment.VariantPaused {
			rt.Fatalf("assigned paused arm %s with %d active alternatives", got, active)
		}
	})
}
