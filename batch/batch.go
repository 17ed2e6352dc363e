package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MasterOfBinary/malbatch/dataset"
	"github.com/MasterOfBinary/malbatch/sample"
)

// Result pairs a sample with the value the transform produced for it.
type Result struct {
	Sample *sample.Sample `json:"sample"`
	Value  interface{}    `json:"value"`
}

// Batch runs a Transform over every sample of a dataset Provider. Samples
// are read lazily and grouped into batches of Config.BatchSize; each batch
// is handed to the Executor, and the results of all batches are returned in
// enumeration order.
//
// To create a new Batch, call New. Creating one using &Batch{} will also work.
//
//	// The following are equivalent:
//	defaultBatch1 := &batch.Batch{}
//	defaultBatch2 := batch.New(nil)
//	defaultBatch3 := batch.New(batch.NewConstantConfig(&batch.ConfigValues{}))
//
// If the Executor is nil, samples are processed one at a time on the
// calling goroutine (SequentialExecutor).
//
// A run stops early after Config.MaxBatches batches; the rest of the
// dataset is never read. Either way the Executor is shut down before Run
// returns. If the transform fails on a sample or enumeration fails, Run
// returns the error with no results and leaves the Executor open.
type Batch struct {
	config   Config
	executor Executor
	logger   *slog.Logger
	stats    StatsCollector

	mu      sync.Mutex
	running bool
}

// New creates a new Batch using the provided config. If config is nil,
// a default configuration is used.
func New(config Config) *Batch {
	return &Batch{
		config: config,
	}
}

// WithExecutor sets the Executor used to process each batch.
//
// Panics if called while Run is in progress.
func (b *Batch) WithExecutor(executor Executor) *Batch {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		panic("batch: WithExecutor cannot be called while Run is in progress")
	}

	b.executor = executor
	return b
}

// WithLogger sets the logger for the Batch. If not set, no logging occurs.
//
// Panics if called while Run is in progress.
func (b *Batch) WithLogger(logger *slog.Logger) *Batch {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		panic("batch: WithLogger cannot be called while Run is in progress")
	}

	b.logger = logger
	return b
}

// WithStats sets a custom stats collector for the Batch.
// If not set, no statistics are collected.
//
// Example:
//
//	stats := batch.NewMemoryStats()
//	b := batch.New(config).WithStats(stats)
//
//	// Later, retrieve statistics
//	snapshot := stats.Snapshot()
//
// Panics if called while Run is in progress.
func (b *Batch) WithStats(stats StatsCollector) *Batch {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		panic("batch: WithStats cannot be called while Run is in progress")
	}

	b.stats = stats
	return b
}

// Run applies t to every sample of p and returns one Result per sample.
//
// Run blocks until the run is complete. It must only be called once at a
// time; calling Run again while a run is in progress will cause a panic.
func (b *Batch) Run(ctx context.Context, p dataset.Provider, t Transform) ([]Result, error) {
	if p == nil {
		return nil, errors.New("batch: provider cannot be nil")
	}
	if t == nil {
		return nil, errors.New("batch: transform cannot be nil")
	}

	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		panic("batch: Run called while already running")
	}
	b.running = true
	r, err := b.newRun(p, t)
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
	}()

	if err != nil {
		return nil, err
	}

	return r.run(ctx)
}

// newRun snapshots the Batch settings for one run. Must be called with
// b.mu held.
func (b *Batch) newRun(p dataset.Provider, t Transform) (*run, error) {
	var values ConfigValues
	if b.config != nil {
		values = b.config.Get()
	}
	if err := values.Validate(); err != nil {
		return nil, fmt.Errorf("batch: invalid config: %w", err)
	}
	values = fixConfig(values)

	executor := b.executor
	if executor == nil {
		executor = SequentialExecutor{}
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	stats := b.stats
	if stats == nil {
		stats = DiscardStats{}
	}

	return &run{
		values:    values,
		executor:  executor,
		logger:    logger.With("run_id", uuid.NewString(), "provider", p.Name()),
		stats:     stats,
		provider:  p,
		transform: t,
		results:   []Result{},
	}, nil
}

// run holds the state of a single call to Run.
type run struct {
	values    ConfigValues
	executor  Executor
	logger    *slog.Logger
	stats     StatsCollector
	provider  dataset.Provider
	transform Transform

	batches int
	results []Result
}

func (r *run) run(ctx context.Context) ([]Result, error) {
	results, done, err := r.consume(ctx)
	reason := stopReason(ctx, err, done)
	r.stats.RecordStop(reason)
	r.logger.Debug("run stopped", "reason", reason)
	return results, err
}

// consume reads the dataset and dispatches full batches. On success it also
// returns why reading stopped.
func (r *run) consume(ctx context.Context) ([]Result, StopReason, error) {
	srcCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.logger.Info("run started", "batch_size", r.values.BatchSize, "max_batches", r.values.MaxBatches)

	samples, errs := r.provider.Samples(srcCtx)
	pending := make([]*sample.Sample, 0, r.values.BatchSize)

	for s := range samples {
		r.stats.RecordSampleRead()
		pending = append(pending, s)
		if len(pending) < r.values.BatchSize {
			continue
		}

		if err := r.dispatch(ctx, pending); err != nil {
			return nil, StopFailed, err
		}
		pending = make([]*sample.Sample, 0, r.values.BatchSize)

		if r.values.MaxBatches > 0 && r.batches >= r.values.MaxBatches {
			r.logger.Info("max batches reached, stopping", "batches", r.batches)
			cancel()
			results, err := r.finish(ctx, nil)
			return results, StopMaxBatches, err
		}
	}

	if err := <-errs; err != nil {
		r.stats.RecordSourceError(err)
		r.logger.Error("enumeration failed", "error", err)
		return nil, StopSourceError, &SourceError{Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, StopCanceled, err
	}

	results, err := r.finish(ctx, pending)
	return results, StopExhausted, err
}

// finish dispatches the partial batch, if any, and shuts the executor down.
func (r *run) finish(ctx context.Context, pending []*sample.Sample) ([]Result, error) {
	if len(pending) > 0 {
		if err := r.dispatch(ctx, pending); err != nil {
			return nil, err
		}
	}

	if err := r.executor.Shutdown(ctx); err != nil {
		return r.results, fmt.Errorf("batch: executor shutdown: %w", err)
	}

	r.logger.Info("run complete", "batches", r.batches, "samples", len(r.results))
	return r.results, nil
}

func (r *run) dispatch(ctx context.Context, samples []*sample.Sample) error {
	r.batches++
	n := len(samples)
	logger := r.logger.With("batch", r.batches)

	logger.Info("batch started", "samples", n)
	r.stats.RecordBatchStart(n)

	start := time.Now()
	progress := func(done int) {
		dt := time.Since(start).Seconds()
		logger.Info("batch progress", "done", done, "eta_seconds", ETA(n, done, dt))
	}

	values, err := r.executor.Execute(ctx, r.provider, r.transform, samples, progress)
	if err != nil {
		var transformErr *TransformError
		if ctx.Err() == nil && errors.As(err, &transformErr) {
			r.stats.RecordSampleFailure(transformErr.Sample, transformErr.Err)
		}
		logger.Error("batch failed", "error", err)
		return err
	}
	if len(values) != n {
		return fmt.Errorf("batch: executor returned %d values for %d samples", len(values), n)
	}

	for i, s := range samples {
		r.results = append(r.results, Result{Sample: s, Value: values[i]})
	}

	duration := time.Since(start)
	r.stats.RecordBatchComplete(n, duration)
	logger.Info("batch complete", "samples", n, "duration", duration)
	return nil
}
