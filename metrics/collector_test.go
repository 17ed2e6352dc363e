package metrics_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MasterOfBinary/malbatch/batch"
	"github.com/MasterOfBinary/malbatch/dataset"
	"github.com/MasterOfBinary/malbatch/metrics"
	"github.com/MasterOfBinary/malbatch/sample"
	"github.com/MasterOfBinary/malbatch/transform"
)

var (
	_ batch.StatsCollector = (*metrics.Collector)(nil)
	_ transform.Observer   = (*metrics.Collector)(nil)
)

func TestCollector_Batches(t *testing.T) {
	c := metrics.NewCollector()
	bad, err := sample.New("/data/bad.exe")
	require.NoError(t, err)
	errBad := errors.New("truncated header")

	for i := 0; i < 14; i++ {
		c.RecordSampleRead()
	}
	c.RecordBatchStart(10)
	c.RecordBatchComplete(10, 2*time.Second)
	c.RecordBatchStart(4)
	c.RecordSampleFailure(bad, errBad)
	c.RecordStop(batch.StopFailed)
	c.RecordSourceError(errors.New("disk gone"))
	c.RecordStop(batch.StopSourceError)

	assert.Equal(t, 14.0, testutil.ToFloat64(c.SamplesRead))
	assert.Equal(t, 10.0, testutil.ToFloat64(c.SamplesProcessed))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SampleFailures))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.BatchesStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.BatchesCompleted))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SourceErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.RunStops.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.RunStops.WithLabelValues("source_error")))

	stats := c.Snapshot()
	assert.Equal(t, uint64(14), stats.SamplesRead)
	assert.Equal(t, uint64(10), stats.SamplesProcessed)
	assert.Equal(t, uint64(4), stats.Unprocessed())
	assert.Equal(t, uint64(2), stats.BatchesStarted)
	assert.Equal(t, uint64(1), stats.BatchesCompleted)
	assert.Equal(t, 2*time.Second, stats.BatchTime)
	require.Len(t, stats.Failures, 1)
	assert.Same(t, bad, stats.Failures[0].Sample)
	assert.ErrorIs(t, stats.Failures[0].Err, errBad)
	assert.Equal(t, uint64(2), stats.Runs())
}

func TestCollector_ObserveSample(t *testing.T) {
	c := metrics.NewCollector()

	c.ObserveSample("scan", 10*time.Millisecond, nil)
	c.ObserveSample("scan", 20*time.Millisecond, nil)
	c.ObserveSample("scan", time.Millisecond, errors.New("not a PE file"))
	c.ObserveSample("", time.Millisecond, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.TransformTotal.WithLabelValues("scan", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.TransformTotal.WithLabelValues("scan", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.TransformTotal.WithLabelValues("unnamed", "success")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.TransformDuration))
}

func TestCollector_Handler(t *testing.T) {
	c := metrics.NewCollectorWithConfig(metrics.Config{Namespace: "test"})
	c.RecordBatchStart(3)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "test_batches_started_total 1")
	assert.Contains(t, string(body), "test_batch_size_samples_count 1")
}

type listProvider struct{ samples []*sample.Sample }

func (p listProvider) Name() string         { return "list" }
func (p listProvider) Dir() (string, error) { return "", nil }
func (p listProvider) Sample(_ context.Context, hash string) (*sample.Sample, error) {
	return nil, &dataset.NotFoundError{Provider: "list", Hash: hash}
}
func (p listProvider) Samples(ctx context.Context) (<-chan *sample.Sample, <-chan error) {
	out := make(chan *sample.Sample)
	errs := make(chan error)
	go func() {
		defer close(out)
		defer close(errs)
		for _, s := range p.samples {
			select {
			case out <- s:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, errs
}

func TestCollector_WithBatch(t *testing.T) {
	var p listProvider
	for i := 0; i < 5; i++ {
		s, err := sample.New("/data/sample.exe")
		require.NoError(t, err)
		p.samples = append(p.samples, s)
	}

	c := metrics.NewCollector()
	noop := transform.Named("noop", batch.TransformFunc(func(context.Context, dataset.Provider, *sample.Sample) (interface{}, error) {
		return nil, nil
	}))

	b := batch.New(batch.NewConstantConfig(&batch.ConfigValues{BatchSize: 2})).WithStats(c)
	results, err := b.Run(context.Background(), p, transform.WithStats(noop, c))
	require.NoError(t, err)
	assert.Len(t, results, 5)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.BatchesStarted))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.BatchesCompleted))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.SamplesRead))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.SamplesProcessed))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.RunStops.WithLabelValues(string(batch.StopExhausted))))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.TransformTotal.WithLabelValues("noop", "success")))
}
