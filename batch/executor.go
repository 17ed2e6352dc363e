package batch

import (
	"context"

	"github.com/MasterOfBinary/malbatch/dataset"
	"github.com/MasterOfBinary/malbatch/sample"
)

// Transform is applied to every sample of a run.
type Transform interface {
	// Apply computes the result for one sample. p is the provider the
	// sample came from.
	Apply(ctx context.Context, p dataset.Provider, s *sample.Sample) (interface{}, error)
}

// TransformFunc adapts an ordinary function to the Transform interface.
type TransformFunc func(ctx context.Context, p dataset.Provider, s *sample.Sample) (interface{}, error)

// Apply implements the Transform interface.
func (f TransformFunc) Apply(ctx context.Context, p dataset.Provider, s *sample.Sample) (interface{}, error) {
	return f(ctx, p, s)
}

// Executor runs a Transform over one batch of samples. Implementations
// decide where the transform runs: on the calling goroutine, on a pool of
// goroutines or in worker processes.
type Executor interface {
	// Execute applies t to every sample and returns exactly one value per
	// sample, in the same order as samples.
	//
	// progress is called on the calling goroutine with done = 1..n, each
	// time the next result in input order is available.
	//
	// If the transform fails on any sample, Execute returns an error
	// (normally a *TransformError) and no values.
	Execute(ctx context.Context, p dataset.Provider, t Transform, samples []*sample.Sample, progress func(done int)) ([]interface{}, error)

	// Shutdown waits for all in-flight work to finish and releases the
	// executor's resources. Execute must not be called afterwards.
	Shutdown(ctx context.Context) error
}

// SequentialExecutor runs the transform on the calling goroutine, one
// sample at a time. It is the Executor used by Batch when none is set.
type SequentialExecutor struct{}

// Execute implements the Executor interface.
func (SequentialExecutor) Execute(ctx context.Context, p dataset.Provider, t Transform, samples []*sample.Sample, progress func(done int)) ([]interface{}, error) {
	values := make([]interface{}, len(samples))
	for i, s := range samples {
		v, err := t.Apply(ctx, p, s)
		if err != nil {
			return nil, NewTransformError(s, err)
		}
		values[i] = v
		if progress != nil {
			progress(i + 1)
		}
	}
	return values, nil
}

// Shutdown implements the Executor interface. There is nothing to release.
func (SequentialExecutor) Shutdown(context.Context) error {
	return nil
}
