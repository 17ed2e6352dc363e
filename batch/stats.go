package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MasterOfBinary/malbatch/sample"
)

// StopReason tells why a run ended.
type StopReason string

const (
	// StopExhausted means every sample of the dataset was processed.
	StopExhausted StopReason = "exhausted"

	// StopMaxBatches means the run stopped after MaxBatches batches. Samples
	// read into the next, undispatched batch are counted as unprocessed.
	StopMaxBatches StopReason = "max_batches"

	// StopFailed means the transform or the executor failed.
	StopFailed StopReason = "failed"

	// StopSourceError means enumerating the dataset failed.
	StopSourceError StopReason = "source_error"

	// StopCanceled means the context of the run was canceled.
	StopCanceled StopReason = "canceled"
)

// stopReason classifies how a run that returned err ended. done is the
// reason used when err is nil.
func stopReason(ctx context.Context, err error, done StopReason) StopReason {
	var srcErr *SourceError
	switch {
	case err == nil:
		return done
	case ctx.Err() != nil:
		return StopCanceled
	case errors.As(err, &srcErr):
		return StopSourceError
	default:
		return StopFailed
	}
}

// StatsCollector collects statistics about runs. Implementations can keep
// them in memory (MemoryStats) or export them to a monitoring system. If
// none is set, no statistics are collected.
//
// A collector may be shared by several runs, including concurrent ones.
type StatsCollector interface {
	// RecordSampleRead is called for every sample received from the
	// provider, whether or not it ends up in a dispatched batch.
	RecordSampleRead()

	// RecordBatchStart is called when a batch of size samples is handed to
	// the executor.
	RecordBatchStart(size int)

	// RecordBatchComplete is called when the executor returned a value for
	// every sample of the batch.
	RecordBatchComplete(size int, duration time.Duration)

	// RecordSampleFailure is called when the transform fails on s.
	RecordSampleFailure(s *sample.Sample, err error)

	// RecordSourceError is called when enumerating the dataset fails.
	RecordSourceError(err error)

	// RecordStop is called once when a run ends.
	RecordStop(reason StopReason)

	// Snapshot returns a copy of the current statistics.
	Snapshot() Stats
}

// Failure is a sample the transform failed on.
type Failure struct {
	Sample *sample.Sample
	Err    error
	Time   time.Time
}

// Stats holds aggregated statistics about one or more runs.
type Stats struct {
	// SamplesRead counts samples received from providers.
	SamplesRead uint64

	// SamplesProcessed counts samples whose batch completed and whose
	// result was collected.
	SamplesProcessed uint64

	BatchesStarted   uint64
	BatchesCompleted uint64

	// Failures holds every sample the transform failed on, oldest first.
	Failures []Failure

	SourceErrors uint64

	// Stops counts finished runs by the reason they ended.
	Stops map[StopReason]uint64

	// BatchTime is the time spent in completed batches.
	BatchTime    time.Duration
	MinBatchTime time.Duration
	MaxBatchTime time.Duration

	// Started is when the collector was created and Updated when it last
	// recorded anything.
	Started time.Time
	Updated time.Time
}

// Runs returns the number of finished runs.
func (s Stats) Runs() uint64 {
	var n uint64
	for _, c := range s.Stops {
		n += c
	}
	return n
}

// Unprocessed returns the number of samples that were read but have no
// result: the partial batch dropped on a max-batch stop, or the batch a
// run failed in.
func (s Stats) Unprocessed() uint64 {
	if s.SamplesProcessed > s.SamplesRead {
		return 0
	}
	return s.SamplesRead - s.SamplesProcessed
}

// AverageBatchTime returns the mean duration of completed batches.
func (s Stats) AverageBatchTime() time.Duration {
	if s.BatchesCompleted == 0 {
		return 0
	}
	return s.BatchTime / time.Duration(s.BatchesCompleted)
}

// SamplesPerSecond returns the processing rate over the time spent in
// completed batches.
func (s Stats) SamplesPerSecond() float64 {
	if s.BatchTime <= 0 {
		return 0
	}
	return float64(s.SamplesProcessed) / s.BatchTime.Seconds()
}

// FailureRate returns the percentage of attempted samples the transform
// failed on.
func (s Stats) FailureRate() float64 {
	failed := uint64(len(s.Failures))
	if s.SamplesProcessed+failed == 0 {
		return 0
	}
	return float64(failed) / float64(s.SamplesProcessed+failed) * 100
}

// Elapsed returns the time between creating the collector and its last
// update.
func (s Stats) Elapsed() time.Duration {
	return s.Updated.Sub(s.Started)
}

// DiscardStats is a StatsCollector that records nothing. Runs use it when no
// collector is set.
type DiscardStats struct{}

func (DiscardStats) RecordSampleRead() {}
func (DiscardStats) RecordBatchStart(int) {}
func (DiscardStats) RecordBatchComplete(int, time.Duration) {}
func (DiscardStats) RecordSampleFailure(*sample.Sample, error) {}
func (DiscardStats) RecordSourceError(error) {}
func (DiscardStats) RecordStop(StopReason) {}
func (DiscardStats) Snapshot() Stats { return Stats{} }

// MemoryStats is a StatsCollector that keeps statistics in memory. It is
// safe for concurrent use. Create one with NewMemoryStats.
type MemoryStats struct {
	mu    sync.Mutex
	stats Stats
}

// NewMemoryStats creates an empty MemoryStats.
func NewMemoryStats() *MemoryStats {
	now := time.Now()
	return &MemoryStats{
		stats: Stats{
			Stops:   make(map[StopReason]uint64),
			Started: now,
			Updated: now,
		},
	}
}

// update runs f with the lock held and stamps the update time.
func (m *MemoryStats) update(f func(s *Stats)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f(&m.stats)
	m.stats.Updated = time.Now()
}

// RecordSampleRead implements the StatsCollector interface.
func (m *MemoryStats) RecordSampleRead() {
	m.update(func(s *Stats) { s.SamplesRead++ })
}

// RecordBatchStart implements the StatsCollector interface.
func (m *MemoryStats) RecordBatchStart(int) {
	m.update(func(s *Stats) { s.BatchesStarted++ })
}

// RecordBatchComplete implements the StatsCollector interface.
func (m *MemoryStats) RecordBatchComplete(size int, duration time.Duration) {
	m.update(func(s *Stats) {
		if s.BatchesCompleted == 0 || duration < s.MinBatchTime {
			s.MinBatchTime = duration
		}
		if duration > s.MaxBatchTime {
			s.MaxBatchTime = duration
		}
		s.BatchesCompleted++
		s.SamplesProcessed += uint64(size)
		s.BatchTime += duration
	})
}

// RecordSampleFailure implements the StatsCollector interface.
func (m *MemoryStats) RecordSampleFailure(smp *sample.Sample, err error) {
	m.update(func(s *Stats) {
		s.Failures = append(s.Failures, Failure{Sample: smp, Err: err, Time: time.Now()})
	})
}

// RecordSourceError implements the StatsCollector interface.
func (m *MemoryStats) RecordSourceError(error) {
	m.update(func(s *Stats) { s.SourceErrors++ })
}

// RecordStop implements the StatsCollector interface.
func (m *MemoryStats) RecordStop(reason StopReason) {
	m.update(func(s *Stats) { s.Stops[reason]++ })
}

// Snapshot implements the StatsCollector interface.
func (m *MemoryStats) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.stats
	out.Failures = append([]Failure(nil), m.stats.Failures...)
	out.Stops = make(map[StopReason]uint64, len(m.stats.Stops))
	for k, v := range m.stats.Stops {
		out.Stops[k] = v
	}
	return out
}
