package report

import (
	"context"
	"time"

	"github.com/headline-goat/abengine/internal/experiment"
	"github.com/headline-goat/abengine/internal/stats"
	"github.com/headline-goat/abengine/internal/store"
)

// Reader is the read side of the lifecycle manager.
type Reader interface {
	GetExperiment(ctx context.Context, experimentID string) (*experiment.Experiment, error)
	History(ctx context.Context, experimentID string) ([]store.ConversionEvent, error)
}

// ArmStats summarizes one arm. Rates and intervals are percentages.
type ArmStats struct {
	ID                 string                   `json:"id"`
	Name               string                   `json:"name"`
	Status             experiment.VariantStatus `json:"status"`
	Visitors           int64                    `json:"visitors"`
	Conversions        int64                    `json:"conversions"`
	ConversionRate     float64                  `json:"conversionRate"`
	ConfidenceInterval stats.Interval           `json:"confidenceInterval"`
}

type StatsReport struct {
	ExperimentID     string            `json:"experimentId"`
	Name             string            `json:"name"`
	Status           experiment.Status `json:"status"`
	Control          ArmStats          `json:"control"`
	Variants         []ArmStats        `json:"variants"`
	TotalVisitors    int64             `json:"totalVisitors"`
	TotalConversions int64             `json:"totalConversions"`
	Results          *stats.Result     `json:"results"`
	DaysRunning      int               `json:"daysRunning"`
}

// Facade builds read-only reports. It never writes.
type Facade struct {
	reader Reader
	now    func() time.Time
}

func New(reader Reader) *Facade {
	return &Facade{reader: reader, now: time.Now}
}

// WithClock replaces the clock used for daysRunning.
func (f *Facade) WithClock(now func() time.Time) *Facade {
	f.now = now
	return f
}

func (f *Facade) GetExperimentStats(ctx context.Context, experimentID string) (*StatsReport, error) {
	exp, err := f.reader.GetExperiment(ctx, experimentID)
	if err != nil {
		return nil, err
	}

	report := &StatsReport{
		ExperimentID:     exp.ID,
		Name:             exp.Name,
		Status:           exp.Status,
		Control:          armStats(exp.Control),
		Variants:         make([]ArmStats, len(exp.Variants)),
		TotalVisitors:    exp.TotalVisitors(),
		TotalConversions: exp.TotalConversions(),
		Results:          exp.Results,
		DaysRunning:      daysRunning(exp, f.now()),
	}
	for i, v := range exp.Variants {
		report.Variants[i] = armStats(v)
	}
	return report, nil
}

// GetConversionHistory returns the conversion log newest first. An empty id
// returns the log of every experiment.
func (f *Facade) GetConversionHistory(ctx context.Context, experimentID string) ([]store.ConversionEvent, error) {
	events, err := f.reader.History(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []store.ConversionEvent{}
	}
	return events, nil
}

func armStats(v experiment.Variant) ArmStats {
	rate := 0.0
	if v.Visitors > 0 {
		rate = float64(v.Conversions) / float64(v.Visitors) * 100
	}
	return ArmStats{
		ID:                 v.ID,
		Name:               v.Name,
		Status:             v.Status,
		Visitors:           v.Visitors,
		Conversions:        v.Conversions,
		ConversionRate:     rate,
		ConfidenceInterval: stats.ConfidenceInterval(v.Conversions, v.Visitors, stats.DefaultZ),
	}
}

// daysRunning counts whole days from start to the end time, or to now while
// the experiment is still open.
func daysRunning(exp *experiment.Experiment, now time.Time) int {
	start := exp.CreatedAt
	if exp.StartedAt != nil {
		start = *exp.StartedAt
	}
	end := now
	if exp.EndedAt != nil {
		end = *exp.EndedAt
	}
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start) / (24 * time.Hour))
}
