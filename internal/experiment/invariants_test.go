package experiment_test

import (
	"context"
	"errors"
	"testing"

	"pgregory.net/rapid"

	"github.com/headline-goat/abengine/internal/experiment"
	"github.com/headline-goat/abengine/internal/store"
)

// TestInvariants drives random visit/conversion/pause sequences and checks
// the counter invariants after every step.
func TestInvariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		m := experiment.NewManager(store.NewMemoryStore(), experiment.Options{})

		minSample := rapid.IntRange(1, 50).Draw(rt, "minSample")
		exp, err := m.CreateExperiment(ctx, experiment.CreateConfig{
			Name:          "prop",
			MinSampleSize: minSample,
			Variants:      []experiment.VariantConfig{{Name: "A"}, {Name: "B"}},
		})
		if err != nil {
			rt.Fatalf("create: %v", err)
		}

		arms := []string{"control", "variant_0", "variant_1"}
		prev := map[string][2]int64{}

		steps := rapid.IntRange(1, 150).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			arm := rapid.SampledFrom(arms).Draw(rt, "arm")
			switch rapid.IntRange(0, 9).Draw(rt, "op") {
			case 0:
				if err := m.PauseExperiment(ctx, exp.ID); err != nil {
					rt.Fatalf("pause: %v", err)
				}
			case 1:
				if err := m.ResumeExperiment(ctx, exp.ID); err != nil {
					rt.Fatalf("resume: %v", err)
				}
			case 2, 3, 4:
				_, err := m.RecordConversion(ctx, exp.ID, arm, 1)
				if err != nil && !errors.Is(err, experiment.ErrPreconditionFailed) {
					rt.Fatalf("conversion: %v", err)
				}
			default:
				if err := m.RecordVisit(ctx, exp.ID, arm); err != nil {
					rt.Fatalf("visit: %v", err)
				}
			}

			got, err := m.GetExperiment(ctx, exp.ID)
			if err != nil {
				rt.Fatalf("get: %v", err)
			}
			for _, a := range got.Arms() {
				if a.Conversions > a.Visitors {
					rt.Fatalf("%s: %d conversions > %d visitors", a.ID, a.Conversions, a.Visitors)
				}
				p := prev[a.ID]
				if a.Visitors < p[0] || a.Conversions < p[1] {
					rt.Fatalf("%s: counters decreased", a.ID)
				}
				prev[a.ID] = [2]int64{a.Visitors, a.Conversions}
			}
			if got.Control.Status != experiment.VariantRunning {
				rt.Fatalf("control status changed to %s", got.Control.Status)
			}
			if got.Results != nil && got.Results.WinnerID != "" {
				if _, ok := got.Arm(got.Results.WinnerID); !ok {
					rt.Fatalf("winner %s is not an arm", got.Results.WinnerID)
				}
			}

			events, err := m.History(ctx, exp.ID)
			if err != nil {
				rt.Fatalf("history: %v", err)
			}
			if int64(len(events)) != got.TotalConversions() {
				rt.Fatalf("log has %d events, counters sum to %d", len(events), got.TotalConversions())
			}
		}
	})
}
