package dataset

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by every *NotFoundError.
	ErrNotFound = errors.New("sample not found")

	// ErrNotConfigured is returned when the root directory of a dataset
	// cannot be resolved from configuration.
	ErrNotConfigured = errors.New("dataset directory not configured")

	// ErrUnknownProvider is returned by Registry.Get for names that were
	// never registered.
	ErrUnknownProvider = errors.New("unknown dataset provider")
)

// NotFoundError is returned by Provider.Sample when no file exists for the
// requested hash.
type NotFoundError struct {
	Provider string
	Hash     string
	Path     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: cannot find sample %s at %s", e.Provider, e.Hash, e.Path)
}

// Is makes errors.Is(err, ErrNotFound) true for any *NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
