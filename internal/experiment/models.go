package experiment

import (
	"time"

	"github.com/headline-goat/abengine/internal/stats"
)

type Status string

const (
	StatusRunning        Status = "running"
	StatusPaused         Status = "paused"
	StatusCompleted      Status = "completed"
	StatusWinnerSelected Status = "winner_selected"
)

type VariantStatus string

const (
	VariantRunning VariantStatus = "running"
	VariantPaused  VariantStatus = "paused"
	VariantWinner  VariantStatus = "winner"
)

// ControlID is the fixed id of every experiment's control arm.
const ControlID = "control"

type Variant struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Value       string        `json:"value"`
	Visitors    int64         `json:"visitors"`
	Conversions int64         `json:"conversions"`
	Status      VariantStatus `json:"status"`
}

type Experiment struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Description     string             `json:"description,omitempty"`
	ContentType     string             `json:"contentType"`
	Status          Status             `json:"status"`
	ConfidenceLevel float64            `json:"confidenceLevel"`
	MinSampleSize   int                `json:"minSampleSize"`
	Control         Variant            `json:"control"`
	Variants        []Variant          `json:"variants"`
	TrafficSplit    map[string]float64 `json:"trafficSplit,omitempty"`
	Results         *stats.Result      `json:"results"`
	CreatedAt       time.Time          `json:"createdAt"`
	StartedAt       *time.Time         `json:"startedAt"`
	EndedAt         *time.Time         `json:"endedAt"`

	// Version is the store version this copy was read at.
	Version uint64 `json:"-"`
}

// Arms returns the control followed by the variants in declaration order.
// The pointers alias the experiment's own fields.
func (e *Experiment) Arms() []*Variant {
	arms := make([]*Variant, 0, len(e.Variants)+1)
	arms = append(arms, &e.Control)
	for i := range e.Variants {
		arms = append(arms, &e.Variants[i])
	}
	return arms
}

// Arm looks up the control or a variant by id.
func (e *Experiment) Arm(id string) (*Variant, bool) {
	for _, a := range e.Arms() {
		if a.ID == id {
			return a, true
		}
	}
	return nil, false
}

func (e *Experiment) TotalVisitors() int64 {
	var n int64
	for _, a := range e.Arms() {
		n += a.Visitors
	}
	return n
}

func (e *Experiment) TotalConversions() int64 {
	var n int64
	for _, a := range e.Arms() {
		n += a.Conversions
	}
	return n
}

func (v Variant) statsArm() stats.Arm {
	return stats.Arm{ID: v.ID, Visitors: v.Visitors, Conversions: v.Conversions}
}
