package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrExists      = errors.New("already exists")
	ErrConflict    = errors.New("version conflict")
	ErrUnavailable = errors.New("store unavailable")
)

// Record is a stored experiment document together with its version.
// Versions start at 1 and increase by one on every successful write.
type Record struct {
	Key     string
	Version uint64
	Data    []byte
}

// ConversionEvent is one entry of the append-only conversion log.
type ConversionEvent struct {
	ExperimentID string    `json:"experimentId"`
	VariantID    string    `json:"variantId"`
	Value        float64   `json:"value"`
	Timestamp    time.Time `json:"timestamp"`
}

// Store defines the interface for experiment storage operations
type Store interface {
	// Document operations
	Get(ctx context.Context, key string) (*Record, error)
	Create(ctx context.Context, key string, data []byte) (*Record, error)
	// CompareAndSwap replaces the document only if its current version equals
	// expected. Events are appended in the same atomic step.
	CompareAndSwap(ctx context.Context, key string, expected uint64, data []byte, events ...ConversionEvent) (*Record, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]*Record, error)

	// Event log operations
	Append(ctx context.Context, event ConversionEvent) error
	// Events returns the log newest first. An empty experimentID returns every event.
	Events(ctx context.Context, experimentID string) ([]ConversionEvent, error)

	// Lifecycle
	Close() error
}

// Open returns the backend named by kind.
func Open(kind, path string) (Store, error) {
	switch kind {
	case "", "sqlite":
		return OpenSQLite(path)
	case "badger":
		return OpenBadger(path)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, errors.New("unknown store backend: " + kind)
	}
}

// checkContext reports an expired or cancelled context as ErrUnavailable.
func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	return nil
}
