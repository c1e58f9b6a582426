package stats_test

import (
	"fmt"
	"math"
	"testing"

	"pgregory.net/rapid"

	"github.com/headline-goat/abengine/internal/stats"
)

func TestCalculate_ClearWinner(t *testing.T) {
	// Control: 10% (100/1000), variant_0: 15% (150/1000)
	result := stats.Calculate(
		stats.Arm{ID: "control", Visitors: 1000, Conversions: 100},
		[]stats.Arm{{ID: "variant_0", Visitors: 1000, Conversions: 150}},
		100, 0.95,
	)

	if result.ChiSquareStatistic <= 3.841 {
		t.Errorf("expected chi-square above 3.841, got %f", result.ChiSquareStatistic)
	}
	if !result.IsSignificant {
		t.Fatalf("expected significant result, got p=%f", result.PValue)
	}
	if result.WinnerID != "variant_0" {
		t.Errorf("expected winner variant_0, got %q", result.WinnerID)
	}
	if result.PValue != 0.01 {
		t.Errorf("expected p=0.01 for chi %f, got %f", result.ChiSquareStatistic, result.PValue)
	}
}

func TestCalculate_NoWinner(t *testing.T) {
	result := stats.Calculate(
		stats.Arm{ID: "control", Visitors: 500, Conversions: 50},
		[]stats.Arm{{ID: "variant_0", Visitors: 500, Conversions: 52}},
		100, 0.95,
	)

	if result.ChiSquareStatistic >= 1 {
		t.Errorf("expected chi-square well below 3.841, got %f", result.ChiSquareStatistic)
	}
	if result.IsSignificant {
		t.Error("expected no significance")
	}
	if result.WinnerID != "" {
		t.Errorf("expected no winner, got %q", result.WinnerID)
	}
	if result.PValue != 0.10 {
		t.Errorf("expected p=0.10, got %f", result.PValue)
	}
}

func TestCalculate_SampleGate(t *testing.T) {
	// 50 visitors total, maximally skewed
	result := stats.Calculate(
		stats.Arm{ID: "control", Visitors: 25, Conversions: 0},
		[]stats.Arm{{ID: "variant_0", Visitors: 25, Conversions: 25}},
		100, 0.95,
	)

	if result.IsSignificant {
		t.Error("expected gate to block significance below minimum sample size")
	}
	if result.PValue != 1.0 {
		t.Errorf("expected p=1.0 below the gate, got %f", result.PValue)
	}
	if result.ChiSquareStatistic != 0 {
		t.Errorf("expected chi-square 0 below the gate, got %f", result.ChiSquareStatistic)
	}
}

func TestCalculate_ZeroVisitorArm(t *testing.T) {
	result := stats.Calculate(
		stats.Arm{ID: "control", Visitors: 0, Conversions: 0},
		[]stats.Arm{{ID: "variant_0", Visitors: 200, Conversions: 20}},
		100, 0.95,
	)

	if math.IsNaN(result.ChiSquareStatistic) || math.IsInf(result.ChiSquareStatistic, 0) {
		t.Fatalf("chi-square must be finite, got %f", result.ChiSquareStatistic)
	}
	if result.IsSignificant {
		t.Error("a single populated arm cannot be significant")
	}
}

func TestCalculate_TieGoesToEarliestArm(t *testing.T) {
	result := stats.Calculate(
		stats.Arm{ID: "control", Visitors: 1000, Conversions: 100},
		[]stats.Arm{
			{ID: "variant_0", Visitors: 1000, Conversions: 200},
			{ID: "variant_1", Visitors: 1000, Conversions: 200},
		},
		100, 0.95,
	)

	if !result.IsSignificant {
		t.Fatalf("expected significance, chi=%f p=%f", result.ChiSquareStatistic, result.PValue)
	}
	if result.WinnerID != "variant_0" {
		t.Errorf("expected tie to resolve to variant_0, got %q", result.WinnerID)
	}
}

func TestCalculate_ControlCanWin(t *testing.T) {
	result := stats.Calculate(
		stats.Arm{ID: "control", Visitors: 1000, Conversions: 200},
		[]stats.Arm{{ID: "variant_0", Visitors: 1000, Conversions: 100}},
		100, 0.95,
	)

	if result.WinnerID != "control" {
		t.Errorf("expected control to win, got %q", result.WinnerID)
	}
}

func TestPValue_Table(t *testing.T) {
	tests := []struct {
		chi  float64
		df   int
		want float64
	}{
		{0, 1, 0.10},
		{2.706, 1, 0.10},
		{3.0, 1, 0.05},
		{3.841, 1, 0.05},
		{3.841 * 1.25, 1, 0.03},
		{3.841 * 1.5, 1, 0.01},
		{6.0, 1, 0.01},
		{5.0, 2, 0.10},
		{7.0, 3, 0.05},
		{8.0, 4, 0.05},
		{8.0, 7, 0.05}, // clamped to the df=4 row
		{3.0, 0, 0.05}, // clamped to the df=1 row
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("chi=%.3f/df=%d", tt.chi, tt.df), func(t *testing.T) {
			got := stats.PValue(tt.chi, tt.df)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("PValue(%f, %d) = %f, want %f", tt.chi, tt.df, got, tt.want)
			}
		})
	}
}

func TestCalculate_BoundaryNotSignificantAt95(t *testing.T) {
	// chi lands between the 0.90 and 0.95 critical values, so p = 0.05 exactly.
	control := stats.Arm{ID: "control", Visitors: 1000, Conversions: 100}
	variant := stats.Arm{ID: "variant_0", Visitors: 1000, Conversions: 127}

	chi := stats.ChiSquare([]stats.Arm{control, variant})
	if chi <= 2.706 || chi > 3.841 {
		t.Fatalf("fixture chi %f outside (2.706, 3.841]", chi)
	}

	if stats.Calculate(control, []stats.Arm{variant}, 100, 0.95).IsSignificant {
		t.Error("p=0.05 must not be significant at 0.95")
	}
	if !stats.Calculate(control, []stats.Arm{variant}, 100, 0.90).IsSignificant {
		t.Error("p=0.05 must be significant at 0.90")
	}
}

func TestCalculate_Properties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(rt, "variants")
		arm := func(id string) stats.Arm {
			v := rapid.Int64Range(0, 5000).Draw(rt, id+"_visitors")
			c := rapid.Int64Range(0, v).Draw(rt, id+"_conversions")
			return stats.Arm{ID: id, Visitors: v, Conversions: c}
		}

		control := arm("control")
		variants := make([]stats.Arm, n)
		ids := map[string]bool{"control": true}
		for i := range variants {
			id := fmt.Sprintf("variant_%d", i)
			variants[i] = arm(id)
			ids[id] = true
		}
		minSample := rapid.IntRange(1, 2000).Draw(rt, "minSample")

		result := stats.Calculate(control, variants, minSample, 0.95)

		if result.PValue <= 0 || result.PValue > 1 {
			rt.Fatalf("p-value %f outside (0, 1]", result.PValue)
		}
		if result.ChiSquareStatistic < 0 || math.IsNaN(result.ChiSquareStatistic) {
			rt.Fatalf("invalid chi-square %f", result.ChiSquareStatistic)
		}
		if result.IsSignificant != (result.WinnerID != "") {
			rt.Fatalf("winner %q inconsistent with significance %v", result.WinnerID, result.IsSignificant)
		}
		if result.WinnerID != "" && !ids[result.WinnerID] {
			rt.Fatalf("winner %q is not an arm", result.WinnerID)
		}
	})
}
