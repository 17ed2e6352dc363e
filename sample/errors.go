package sample

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidHash is returned when a supplied hash is not a well formed
	// hex digest.
	ErrInvalidHash = errors.New("invalid hash")

	// ErrHashMismatch is matched by every *HashError.
	ErrHashMismatch = errors.New("hash mismatch")
)

// HashError is returned when a verified sample's content does not match the
// hash it was created with.
type HashError struct {
	Path      string
	Algorithm Algorithm
	Want      string
	Got       string
}

func (e *HashError) Error() string {
	return fmt.Sprintf("%s mismatch for %s: want %s, got %s", e.Algorithm, e.Path, e.Want, e.Got)
}

// Is makes errors.Is(err, ErrHashMismatch) true for any *HashError.
func (e *HashError) Is(target error) bool {
	return target == ErrHashMismatch
}
