package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MasterOfBinary/malbatch/batch"
	"github.com/MasterOfBinary/malbatch/dataset"
	"github.com/MasterOfBinary/malbatch/sample"
)

// ErrClosed is returned by Execute after Shutdown has been called.
var ErrClosed = errors.New("executor: closed")

// PoolConfig provides configuration options for creating a Pool.
type PoolConfig struct {
	// Workers is the maximum number of samples transformed at the same
	// time. If zero, runtime.NumCPU() is used.
	Workers int
}

// Validate checks if the PoolConfig is valid.
func (c PoolConfig) Validate() error {
	if c.Workers < 0 {
		return errors.New("workers cannot be negative")
	}
	return nil
}

// Pool is a batch.Executor that runs the transform on a fixed number of
// goroutines. Create one with NewPool.
type Pool struct {
	workers int

	mu     sync.Mutex
	closed bool
	active sync.WaitGroup
}

// NewPool creates a Pool with the given configuration.
// It validates the configuration and returns an error if invalid.
//
// Example:
//
//	pool, err := executor.NewPool(executor.PoolConfig{Workers: 8})
//	if err != nil {
//		// handle error
//	}
//	b := batch.New(config).WithExecutor(pool)
func NewPool(config PoolConfig) (*Pool, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool config: %w", err)
	}

	workers := config.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}

	return &Pool{workers: workers}, nil
}

// Workers returns the size of the pool.
func (p *Pool) Workers() int {
	return p.workers
}

// Execute implements the batch.Executor interface. On the first failure no
// new samples are started; Execute waits for the ones already running and
// returns the failure.
func (p *Pool) Execute(ctx context.Context, prov dataset.Provider, t batch.Transform, samples []*sample.Sample, progress func(done int)) ([]interface{}, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	p.active.Add(1)
	p.mu.Unlock()
	defer p.active.Done()

	n := len(samples)
	values := make([]interface{}, n)
	errs := make([]error, n)
	done := make([]chan struct{}, n)
	for i := range done {
		done[i] = make(chan struct{})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	// g.Go blocks once the limit is reached, so samples are started from a
	// separate goroutine while this one reports progress in order.
	launched := make(chan struct{})
	go func() {
		defer close(launched)
		for i, s := range samples {
			if gctx.Err() != nil {
				return
			}
			g.Go(func() error {
				v, err := t.Apply(gctx, prov, s)
				if err != nil {
					errs[i] = batch.NewTransformError(s, err)
				} else {
					values[i] = v
				}
				close(done[i])
				return errs[i]
			})
		}
	}()

	completed := 0
wait:
	for i := range samples {
		select {
		case <-done[i]:
			if errs[i] != nil {
				break wait
			}
		case <-gctx.Done():
			break wait
		}
		completed++
		if progress != nil {
			progress(completed)
		}
	}

	<-launched
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if completed < n {
		return nil, ctx.Err()
	}

	return values, nil
}

// Shutdown implements the batch.Executor interface. It waits for a running
// Execute call to return.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		p.active.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
