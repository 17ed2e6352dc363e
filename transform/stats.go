package transform

import (
	"context"
	"time"

	"github.com/MasterOfBinary/malbatch/batch"
	"github.com/MasterOfBinary/malbatch/dataset"
	"github.com/MasterOfBinary/malbatch/sample"
)

// Observer receives the outcome of every transform application.
// *metrics.Collector implements it.
type Observer interface {
	ObserveSample(transform string, duration time.Duration, err error)
}

// Stats wraps another transform and reports how long each application took
// to an Observer.
type Stats struct {
	// Transform is the wrapped transform that does the actual work.
	Transform batch.Transform

	// Observer receives the measurements. If nil, nothing is recorded.
	Observer Observer
}

// Apply implements the batch.Transform interface by delegating to the
// wrapped transform and timing it.
func (st *Stats) Apply(ctx context.Context, p dataset.Provider, s *sample.Sample) (interface{}, error) {
	if st.Observer == nil {
		return st.Transform.Apply(ctx, p, s)
	}

	start := time.Now()
	v, err := st.Transform.Apply(ctx, p, s)
	st.Observer.ObserveSample(Name(st.Transform), time.Since(start), err)
	return v, err
}

// TransformName returns the name of the wrapped transform.
func (st *Stats) TransformName() string {
	return Name(st.Transform)
}

// WithStats wraps a transform with timing.
//
// Example:
//
//	collector := metrics.NewCollector()
//	wrapped := transform.WithStats(t, collector)
func WithStats(t batch.Transform, observer Observer) *Stats {
	return &Stats{
		Transform: t,
		Observer:  observer,
	}
}
