// Package metrics exports batch run statistics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MasterOfBinary/malbatch/batch"
	"github.com/MasterOfBinary/malbatch/sample"
)

// Config holds configuration for a Collector.
type Config struct {
	Namespace string `yaml:"namespace" json:"namespace"`
	Subsystem string `yaml:"subsystem" json:"subsystem"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{Namespace: "malbatch"}
}

// Collector implements batch.StatsCollector and transform.Observer on top of
// its own Prometheus registry. It also keeps a batch.MemoryStats, which
// Snapshot returns.
type Collector struct {
	*batch.MemoryStats

	registry *prometheus.Registry

	SamplesRead       prometheus.Counter
	SamplesProcessed  prometheus.Counter
	SampleFailures    prometheus.Counter
	BatchesStarted    prometheus.Counter
	BatchesCompleted  prometheus.Counter
	BatchDuration     prometheus.Histogram
	BatchSize         prometheus.Histogram
	SourceErrors      prometheus.Counter
	RunStops          *prometheus.CounterVec
	TransformDuration *prometheus.HistogramVec
	TransformTotal    *prometheus.CounterVec
}

// NewCollector creates a Collector with the default configuration.
func NewCollector() *Collector {
	return NewCollectorWithConfig(DefaultConfig())
}

// NewCollectorWithConfig creates a Collector with the given configuration.
func NewCollectorWithConfig(cfg Config) *Collector {
	reg := prometheus.NewRegistry()
	ns, sub := cfg.Namespace, cfg.Subsystem

	c := &Collector{
		MemoryStats: batch.NewMemoryStats(),
		registry:    reg,

		SamplesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "samples_read_total",
			Help:      "Total number of samples received from dataset providers",
		}),
		BatchesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "batches_started_total",
			Help:      "Total number of batches dispatched",
		}),
		BatchesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "batches_completed_total",
			Help:      "Total number of batches that completed without error",
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "batch_duration_seconds",
			Help:      "Duration of completed batches in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "batch_size_samples",
			Help:      "Number of samples in dispatched batches",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		SamplesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "samples_processed_total",
			Help:      "Total number of samples in completed batches",
		}),
		SampleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "sample_failures_total",
			Help:      "Total number of samples the transform failed on",
		}),
		SourceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "source_errors_total",
			Help:      "Total number of dataset enumeration failures",
		}),
		RunStops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "runs_total",
			Help:      "Total number of finished runs by stop reason",
		}, []string{"reason"}),
		TransformDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "transform_duration_seconds",
			Help:      "Duration of single transform applications in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"transform"}),
		TransformTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "transform_applications_total",
			Help:      "Total number of transform applications",
		}, []string{"transform", "status"}),
	}

	reg.MustRegister(
		c.SamplesRead,
		c.SamplesProcessed,
		c.SampleFailures,
		c.BatchesStarted,
		c.BatchesCompleted,
		c.BatchDuration,
		c.BatchSize,
		c.SourceErrors,
		c.RunStops,
		c.TransformDuration,
		c.TransformTotal,
	)
	return c
}

// Registry returns the registry the metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler that serves the metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordSampleRead implements the batch.StatsCollector interface.
func (c *Collector) RecordSampleRead() {
	c.MemoryStats.RecordSampleRead()
	c.SamplesRead.Inc()
}

// RecordBatchStart implements the batch.StatsCollector interface.
func (c *Collector) RecordBatchStart(size int) {
	c.MemoryStats.RecordBatchStart(size)
	c.BatchesStarted.Inc()
	c.BatchSize.Observe(float64(size))
}

// RecordBatchComplete implements the batch.StatsCollector interface.
func (c *Collector) RecordBatchComplete(size int, duration time.Duration) {
	c.MemoryStats.RecordBatchComplete(size, duration)
	c.BatchesCompleted.Inc()
	c.SamplesProcessed.Add(float64(size))
	c.BatchDuration.Observe(duration.Seconds())
}

// RecordSampleFailure implements the batch.StatsCollector interface.
func (c *Collector) RecordSampleFailure(s *sample.Sample, err error) {
	c.MemoryStats.RecordSampleFailure(s, err)
	c.SampleFailures.Inc()
}

// RecordSourceError implements the batch.StatsCollector interface.
func (c *Collector) RecordSourceError(err error) {
	c.MemoryStats.RecordSourceError(err)
	c.SourceErrors.Inc()
}

// RecordStop implements the batch.StatsCollector interface.
func (c *Collector) RecordStop(reason batch.StopReason) {
	c.MemoryStats.RecordStop(reason)
	c.RunStops.WithLabelValues(string(reason)).Inc()
}

// ObserveSample implements the transform.Observer interface.
func (c *Collector) ObserveSample(transform string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	if transform == "" {
		transform = "unnamed"
	}
	c.TransformTotal.WithLabelValues(transform, status).Inc()
	c.TransformDuration.WithLabelValues(transform).Observe(duration.Seconds())
}
