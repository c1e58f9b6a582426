package experiment

import (
	"errors"
	"fmt"

	"github.com/headline-goat/abengine/internal/store"
)

var (
	ErrInvalidConfig          = errors.New("invalid experiment config")
	ErrNotFound               = errors.New("not found")
	ErrTerminalState          = errors.New("experiment is in a terminal state")
	ErrPreconditionFailed     = errors.New("precondition failed")
	ErrStoreUnavailable       = errors.New("store unavailable")
	ErrConcurrentModification = errors.New("concurrent modification")
)

// Retryable reports whether err may succeed if the whole operation is repeated.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrConcurrentModification)
}

// mapStoreErr translates backend errors into the engine's taxonomy.
func mapStoreErr(err error, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: experiment %s", ErrNotFound, id)
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("%w: experiment %s", ErrConcurrentModification, id)
	case errors.Is(err, store.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return err
	}
}
