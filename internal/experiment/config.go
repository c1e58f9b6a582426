package experiment

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfidenceLevel = 0.95
	DefaultMinSampleSize   = 100
)

// VariantConfig describes one arm at creation time.
type VariantConfig struct {
	Name        string `json:"name" yaml:"name" validate:"required"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Value       string `json:"value" yaml:"value"`
}

// CreateConfig is the input of CreateExperiment. Zero ConfidenceLevel and
// MinSampleSize take the defaults.
type CreateConfig struct {
	Name            string             `json:"name" yaml:"name" validate:"required,max=200"`
	Description     string             `json:"description,omitempty" yaml:"description,omitempty"`
	ContentType     string             `json:"contentType" yaml:"contentType" validate:"max=64"`
	ConfidenceLevel float64            `json:"confidenceLevel" yaml:"confidenceLevel" validate:"gt=0,lt=1"`
	MinSampleSize   int                `json:"minSampleSize" yaml:"minSampleSize" validate:"gte=1"`
	Control         VariantConfig      `json:"control" yaml:"control"`
	Variants        []VariantConfig    `json:"variants" yaml:"variants" validate:"required,min=1,dive"`
	TrafficSplit    map[string]float64 `json:"trafficSplit,omitempty" yaml:"trafficSplit,omitempty" validate:"omitempty,dive,keys,required,endkeys,gte=0,lte=100"`
}

var validate = validator.New()

// WithDefaults fills zero-valued optional fields.
func (c CreateConfig) WithDefaults() CreateConfig {
	if c.ConfidenceLevel == 0 {
		c.ConfidenceLevel = DefaultConfidenceLevel
	}
	if c.MinSampleSize == 0 {
		c.MinSampleSize = DefaultMinSampleSize
	}
	if c.Control.Name == "" {
		c.Control.Name = "Control"
	}
	return c
}

// Validate checks the config after defaults are applied. Every failure wraps
// ErrInvalidConfig.
func (c CreateConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if len(c.TrafficSplit) > 0 {
		ids := map[string]bool{ControlID: true}
		for i := range c.Variants {
			ids[variantID(i)] = true
		}
		total := 0.0
		for id, pct := range c.TrafficSplit {
			if !ids[id] {
				return fmt.Errorf("%w: traffic split names unknown arm %q", ErrInvalidConfig, id)
			}
			total += pct
		}
		if math.Abs(total-100) > 1e-6 {
			return fmt.Errorf("%w: traffic split sums to %g, want 100", ErrInvalidConfig, total)
		}
	}

	return nil
}

func variantID(i int) string {
	return fmt.Sprintf("variant_%d", i)
}
