package experiment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/headline-goat/abengine/internal/store"
)

// Repository stores Experiment documents as JSON in a store.Store.
type Repository struct {
	store store.Store
}

func NewRepository(s store.Store) *Repository {
	return &Repository{store: s}
}

func (r *Repository) Create(ctx context.Context, exp *Experiment) error {
	data, err := json.Marshal(exp)
	if err != nil {
		return fmt.Errorf("failed to marshal experiment: %w", err)
	}

	rec, err := r.store.Create(ctx, exp.ID, data)
	if err != nil {
		return mapStoreErr(err, exp.ID)
	}
	exp.Version = rec.Version
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Experiment, error) {
	rec, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err, id)
	}
	return decode(rec)
}

// Update writes exp if nobody else has written since exp.Version was read.
// Events are appended in the same step. On success exp.Version is advanced.
func (r *Repository) Update(ctx context.Context, exp *Experiment, events ...store.ConversionEvent) error {
	data, err := json.Marshal(exp)
	if err != nil {
		return fmt.Errorf("failed to marshal experiment: %w", err)
	}

	rec, err := r.store.CompareAndSwap(ctx, exp.ID, exp.Version, data, events...)
	if err != nil {
		return mapStoreErr(err, exp.ID)
	}
	exp.Version = rec.Version
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	return mapStoreErr(r.store.Delete(ctx, id), id)
}

func (r *Repository) List(ctx context.Context) ([]*Experiment, error) {
	records, err := r.store.List(ctx)
	if err != nil {
		return nil, mapStoreErr(err, "")
	}

	experiments := make([]*Experiment, 0, len(records))
	for _, rec := range records {
		exp, err := decode(rec)
		if err != nil {
			return nil, err
		}
		experiments = append(experiments, exp)
	}
	return experiments, nil
}

// ListByTag returns the experiments whose contentType equals tag.
func (r *Repository) ListByTag(ctx context.Context, tag string) ([]*Experiment, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]*Experiment, 0, len(all))
	for _, exp := range all {
		if exp.ContentType == tag {
			matched = append(matched, exp)
		}
	}
	return matched, nil
}

func (r *Repository) Events(ctx context.Context, experimentID string) ([]store.ConversionEvent, error) {
	events, err := r.store.Events(ctx, experimentID)
	if err != nil {
		return nil, mapStoreErr(err, experimentID)
	}
	return events, nil
}

func decode(rec *store.Record) (*Experiment, error) {
	var exp Experiment
	if err := json.Unmarshal(rec.Data, &exp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal experiment %s: %w", rec.Key, err)
	}
	exp.Version = rec.Version
	return &exp, nil
}
