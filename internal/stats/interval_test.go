package stats_test

import (
	"math"
	"testing"

	"github.com/headline-goat/abengine/internal/stats"
)

func TestConfidenceInterval_ZeroVisitors(t *testing.T) {
	ci := stats.ConfidenceInterval(0, 0, stats.DefaultZ)

	if ci.Lower != 0 || ci.Upper != 0 {
		t.Errorf("expected {0, 0}, got {%f, %f}", ci.Lower, ci.Upper)
	}
}

func TestConfidenceInterval_Known(t *testing.T) {
	// p = 0.1, n = 100: margin = 1.96 * 0.03 = 0.0588
	ci := stats.ConfidenceInterval(10, 100, stats.DefaultZ)

	if math.Abs(ci.Lower-4.12) > 1e-6 {
		t.Errorf("expected lower 4.12, got %f", ci.Lower)
	}
	if math.Abs(ci.Upper-15.88) > 1e-6 {
		t.Errorf("expected upper 15.88, got %f", ci.Upper)
	}
}

func TestConfidenceInterval_Clamped(t *testing.T) {
	low := stats.ConfidenceInterval(1, 10, stats.DefaultZ)
	if low.Lower != 0 {
		t.Errorf("expected lower bound clamped to 0, got %f", low.Lower)
	}

	high := stats.ConfidenceInterval(9, 10, stats.DefaultZ)
	if high.Upper != 100 {
		t.Errorf("expected upper bound clamped to 100, got %f", high.Upper)
	}

	all := stats.ConfidenceInterval(10, 10, stats.DefaultZ)
	if all.Lower != 100 || all.Upper != 100 {
		t.Errorf("expected {100, 100} for a perfect rate, got {%f, %f}", all.Lower, all.Upper)
	}
}
