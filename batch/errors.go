package batch

import (
	"fmt"

	"github.com/MasterOfBinary/malbatch/sample"
)

// TransformError is returned when the transform fails on a sample. It ends
// the run.
type TransformError struct {
	Sample *sample.Sample
	Err    error
}

// NewTransformError wraps err in a TransformError for s. Executors use it so
// the caller of Run can tell which sample failed.
func NewTransformError(s *sample.Sample, err error) *TransformError {
	return &TransformError{Sample: s, Err: err}
}

func (e TransformError) Error() string {
	if e.Sample == nil {
		return fmt.Sprintf("transform error: %v", e.Err)
	}
	return fmt.Sprintf("transform error on %s: %v", e.Sample, e.Err)
}

func (e TransformError) Unwrap() error {
	return e.Err
}

// SourceError is returned when enumerating the dataset fails.
type SourceError struct {
	Err error
}

func (e SourceError) Error() string {
	return fmt.Sprintf("source error: %v", e.Err)
}

func (e SourceError) Unwrap() error {
	return e.Err
}
