package experiment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/headline-goat/abengine/internal/stats"
	"github.com/headline-goat/abengine/internal/store"
)

// Options tunes store access. Zero values take the defaults below.
type Options struct {
	StoreTimeout  time.Duration
	RetryAttempts uint
	RetryDelay    time.Duration
	Now           func() time.Time
}

const (
	defaultStoreTimeout  = 2 * time.Second
	defaultRetryAttempts = 3
	defaultRetryDelay    = 10 * time.Millisecond
)

// Manager is the only component that mutates experiments. Writes to one
// experiment are serialized by a per-id lock and committed with a
// compare-and-swap against the stored version; writes to different
// experiments proceed in parallel.
type Manager struct {
	repo  *Repository
	locks *keyedMutex
	opts  Options
}

func NewManager(s store.Store, opts Options) *Manager {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultStoreTimeout
	}
	if opts.RetryAttempts == 0 {
		opts.RetryAttempts = defaultRetryAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Manager{
		repo:  NewRepository(s),
		locks: newKeyedMutex(),
		opts:  opts,
	}
}

func (m *Manager) now() time.Time {
	return m.opts.Now().UTC()
}

// CreateExperiment validates cfg and stores a new running experiment.
func (m *Manager) CreateExperiment(ctx context.Context, cfg CreateConfig) (*Experiment, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := m.now()
	exp := &Experiment{
		ID:              uuid.NewString(),
		Name:            cfg.Name,
		Description:     cfg.Description,
		ContentType:     cfg.ContentType,
		Status:          StatusRunning,
		ConfidenceLevel: cfg.ConfidenceLevel,
		MinSampleSize:   cfg.MinSampleSize,
		Control: Variant{
			ID:          ControlID,
			Name:        cfg.Control.Name,
			Description: cfg.Control.Description,
			Value:       cfg.Control.Value,
			Status:      VariantRunning,
		},
		Variants:  make([]Variant, len(cfg.Variants)),
		CreatedAt: now,
		StartedAt: &now,
	}
	for i, v := range cfg.Variants {
		exp.Variants[i] = Variant{
			ID:          variantID(i),
			Name:        v.Name,
			Description: v.Description,
			Value:       v.Value,
			Status:      VariantRunning,
		}
	}
	if len(cfg.TrafficSplit) > 0 {
		exp.TrafficSplit = make(map[string]float64, len(cfg.TrafficSplit))
		for id, pct := range cfg.TrafficSplit {
			exp.TrafficSplit[id] = pct
		}
	}

	err := m.withRetry(ctx, "create", func(ctx context.Context) error {
		return m.repo.Create(ctx, exp)
	})
	if err != nil {
		return nil, err
	}

	log.Infof("created experiment %s (%s) with %d variants", exp.ID, exp.Name, len(exp.Variants))
	return exp, nil
}

// RecordVisit adds one visitor to an arm.
func (m *Manager) RecordVisit(ctx context.Context, experimentID, variantID string) error {
	_, err := m.mutate(ctx, "visit", experimentID, func(exp *Experiment) ([]store.ConversionEvent, error) {
		if err := writable(exp); err != nil {
			return nil, err
		}
		arm, ok := exp.Arm(variantID)
		if !ok {
			return nil, fmt.Errorf("%w: variant %s in experiment %s", ErrNotFound, variantID, exp.ID)
		}
		arm.Visitors++
		return nil, nil
	})

	eventsTotal.WithLabelValues("visit", resultLabel(err)).Inc()
	return err
}

// RecordConversion adds one conversion to an arm, recomputes significance
// over every arm and pauses losing variants when a non-control winner
// emerges. The count, the result, the pauses and the audit event commit
// together or not at all. weight is the event value; non-positive means 1.
func (m *Manager) RecordConversion(ctx context.Context, experimentID, variantID string, weight float64) (stats.Result, error) {
	if weight <= 0 {
		weight = 1
	}

	var (
		result stats.Result
		paused []string
	)
	exp, err := m.mutate(ctx, "conversion", experimentID, func(exp *Experiment) ([]store.ConversionEvent, error) {
		if err := writable(exp); err != nil {
			return nil, err
		}
		arm, ok := exp.Arm(variantID)
		if !ok {
			return nil, fmt.Errorf("%w: variant %s in experiment %s", ErrNotFound, variantID, exp.ID)
		}
		if arm.Conversions+1 > arm.Visitors {
			return nil, fmt.Errorf("%w: variant %s has %d visitors and %d conversions", ErrPreconditionFailed, arm.ID, arm.Visitors, arm.Conversions)
		}
		arm.Conversions++

		now := m.now()
		result = evaluate(exp, now)
		paused = autoPause(exp, result)

		return []store.ConversionEvent{{
			ExperimentID: exp.ID,
			VariantID:    variantID,
			Value:        weight,
			Timestamp:    now,
		}}, nil
	})

	eventsTotal.WithLabelValues("conversion", resultLabel(err)).Inc()
	if err != nil {
		return stats.Result{}, err
	}

	if len(paused) > 0 {
		autoPausedTotal.Add(float64(len(paused)))
		log.Infof("experiment %s: %s is significant (p=%.3f), auto-paused %v", exp.ID, result.WinnerID, result.PValue, paused)
	}
	return result, nil
}

// PauseExperiment stops the experiment as a whole. Variant statuses are untouched.
func (m *Manager) PauseExperiment(ctx context.Context, experimentID string) error {
	_, err := m.mutate(ctx, "pause", experimentID, func(exp *Experiment) ([]store.ConversionEvent, error) {
		if err := toggleable(exp); err != nil {
			return nil, err
		}
		exp.Status = StatusPaused
		return nil, nil
	})
	return err
}

// ResumeExperiment restarts a paused experiment. Variants paused by the
// significance routine stay paused.
func (m *Manager) ResumeExperiment(ctx context.Context, experimentID string) error {
	_, err := m.mutate(ctx, "resume", experimentID, func(exp *Experiment) ([]store.ConversionEvent, error) {
		if err := toggleable(exp); err != nil {
			return nil, err
		}
		exp.Status = StatusRunning
		return nil, nil
	})
	return err
}

// SelectWinner ends the experiment with winnerID as the winning arm. It
// requires a significant last result.
func (m *Manager) SelectWinner(ctx context.Context, experimentID, winnerID string) error {
	_, err := m.mutate(ctx, "select_winner", experimentID, func(exp *Experiment) ([]store.ConversionEvent, error) {
		if err := writable(exp); err != nil {
			return nil, err
		}
		if exp.Results == nil || !exp.Results.IsSignificant {
			return nil, fmt.Errorf("%w: experiment %s has no significant result yet", ErrPreconditionFailed, exp.ID)
		}
		arm, ok := exp.Arm(winnerID)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not an arm of experiment %s", ErrPreconditionFailed, winnerID, exp.ID)
		}

		now := m.now()
		arm.Status = VariantWinner
		exp.Status = StatusWinnerSelected
		exp.EndedAt = &now
		return nil, nil
	})
	if err != nil {
		return err
	}

	log.Infof("experiment %s: winner %s selected", experimentID, winnerID)
	return nil
}

// DeleteExperiment removes the experiment record. The conversion log is kept.
func (m *Manager) DeleteExperiment(ctx context.Context, experimentID string) error {
	unlock := m.locks.Lock(experimentID)
	defer unlock()

	err := m.withRetry(ctx, "delete", func(ctx context.Context) error {
		return m.repo.Delete(ctx, experimentID)
	})
	if err != nil {
		return err
	}

	log.Infof("deleted experiment %s", experimentID)
	return nil
}

func (m *Manager) GetExperiment(ctx context.Context, experimentID string) (*Experiment, error) {
	var exp *Experiment
	err := m.withRetry(ctx, "get", func(ctx context.Context) error {
		var err error
		exp, err = m.repo.Get(ctx, experimentID)
		return err
	})
	return exp, err
}

func (m *Manager) GetExperimentsByTag(ctx context.Context, tag string) ([]*Experiment, error) {
	var experiments []*Experiment
	err := m.withRetry(ctx, "list_by_tag", func(ctx context.Context) error {
		var err error
		experiments, err = m.repo.ListByTag(ctx, tag)
		return err
	})
	return experiments, err
}

func (m *Manager) ListExperiments(ctx context.Context) ([]*Experiment, error) {
	var experiments []*Experiment
	err := m.withRetry(ctx, "list", func(ctx context.Context) error {
		var err error
		experiments, err = m.repo.List(ctx)
		return err
	})
	return experiments, err
}

// History returns conversion events newest first; an empty id returns all.
func (m *Manager) History(ctx context.Context, experimentID string) ([]store.ConversionEvent, error) {
	var events []store.ConversionEvent
	err := m.withRetry(ctx, "history", func(ctx context.Context) error {
		var err error
		events, err = m.repo.Events(ctx, experimentID)
		return err
	})
	return events, err
}

// mutate runs read-modify-write under the experiment's lock. Each attempt
// re-reads the experiment, so a retried operation never applies fn to stale
// counts.
func (m *Manager) mutate(ctx context.Context, op, experimentID string, fn func(*Experiment) ([]store.ConversionEvent, error)) (*Experiment, error) {
	unlock := m.locks.Lock(experimentID)
	defer unlock()

	var updated *Experiment
	err := m.withRetry(ctx, op, func(ctx context.Context) error {
		exp, err := m.repo.Get(ctx, experimentID)
		if err != nil {
			return err
		}
		events, err := fn(exp)
		if err != nil {
			return err
		}
		if err := m.repo.Update(ctx, exp, events...); err != nil {
			return err
		}
		updated = exp
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debugf("%s applied to experiment %s (version %d)", op, experimentID, updated.Version)
	return updated, nil
}

// withRetry gives each attempt its own store timeout and retries only
// transient failures.
func (m *Manager) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	defer func() {
		operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	return retry.Do(
		func() error {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
			attemptCtx, cancel := context.WithTimeout(ctx, m.opts.StoreTimeout)
			defer cancel()

			err := fn(attemptCtx)
			if err != nil && !Retryable(err) && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %s timed out: %v", ErrStoreUnavailable, op, err)
			}
			return err
		},
		retry.Attempts(m.opts.RetryAttempts),
		retry.Delay(m.opts.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return Retryable(err) && ctx.Err() == nil
		}),
		retry.OnRetry(func(n uint, err error) {
			cause := "unavailable"
			if errors.Is(err, ErrConcurrentModification) {
				cause = "conflict"
			}
			storeRetriesTotal.WithLabelValues(cause).Inc()
			log.Warnf("%s attempt %d failed, retrying: %v", op, n+1, err)
		}),
	)
}

func writable(exp *Experiment) error {
	if exp.Status == StatusWinnerSelected {
		return fmt.Errorf("%w: experiment %s already has a winner", ErrTerminalState, exp.ID)
	}
	return nil
}

func toggleable(exp *Experiment) error {
	if err := writable(exp); err != nil {
		return err
	}
	if exp.Status == StatusCompleted {
		return fmt.Errorf("%w: experiment %s is completed", ErrPreconditionFailed, exp.ID)
	}
	return nil
}

// evaluate recomputes significance over every arm and stores it on exp.
func evaluate(exp *Experiment, now time.Time) stats.Result {
	variants := make([]stats.Arm, len(exp.Variants))
	for i, v := range exp.Variants {
		variants[i] = v.statsArm()
	}

	result := stats.Calculate(exp.Control.statsArm(), variants, exp.MinSampleSize, exp.ConfidenceLevel)
	result.ComputedAt = now
	exp.Results = &result
	return result
}

// autoPause pauses every running variant other than a non-control winner.
// The control is never touched here.
func autoPause(exp *Experiment, result stats.Result) []string {
	if !result.IsSignificant || result.WinnerID == "" || result.WinnerID == ControlID {
		return nil
	}

	var paused []string
	for i := range exp.Variants {
		v := &exp.Variants[i]
		if v.ID != result.WinnerID && v.Status == VariantRunning {
			v.Status = VariantPaused
			paused = append(paused, v.ID)
		}
	}
	return paused
}
