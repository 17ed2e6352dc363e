package transform_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MasterOfBinary/malbatch/batch"
	"github.com/MasterOfBinary/malbatch/dataset"
	"github.com/MasterOfBinary/malbatch/sample"
	"github.com/MasterOfBinary/malbatch/transform"
)

var errBroken = errors.New("broken")

var failing = batch.TransformFunc(func(context.Context, dataset.Provider, *sample.Sample) (interface{}, error) {
	return nil, errBroken
})

func TestLogging(t *testing.T) {
	const hash = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	s := writeSample(t, "x", hash)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ok := transform.WithLogging(transform.Named("const", constant), logger)
	v, err := ok.Apply(context.Background(), nil, s)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	bad := transform.WithLogging(failing, logger)
	_, err = bad.Apply(context.Background(), nil, s)
	assert.ErrorIs(t, err, errBroken)

	out := buf.String()
	assert.Contains(t, out, `level=DEBUG msg="transform applied" transform=const sample=`+hash)
	assert.Contains(t, out, `level=WARN msg="transform failed" transform=batch.TransformFunc`)
	assert.Contains(t, out, "error=broken")
}

func TestLogging_LevelFiltered(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	l := transform.WithLogging(constant, logger)
	_, err := l.Apply(context.Background(), nil, writeSample(t, "x", ""))
	require.NoError(t, err)
	assert.Empty(t, buf.String())

	l.Level = slog.LevelInfo
	_, err = l.Apply(context.Background(), nil, writeSample(t, "x", ""))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "transform applied")
}

func TestLogging_NilLogger(t *testing.T) {
	l := &transform.Logging{Transform: constant}
	v, err := l.Apply(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

type observation struct {
	transform string
	duration  time.Duration
	err       error
}

type recordingObserver struct {
	observations []observation
}

func (o *recordingObserver) ObserveSample(name string, d time.Duration, err error) {
	o.observations = append(o.observations, observation{name, d, err})
}

func TestStats(t *testing.T) {
	obs := &recordingObserver{}

	_, err := transform.WithStats(transform.Named("const", constant), obs).Apply(context.Background(), nil, nil)
	require.NoError(t, err)
	_, err = transform.WithStats(transform.Named("failing", failing), obs).Apply(context.Background(), nil, nil)
	assert.ErrorIs(t, err, errBroken)

	require.Len(t, obs.observations, 2)
	assert.Equal(t, "const", obs.observations[0].transform)
	assert.NoError(t, obs.observations[0].err)
	assert.GreaterOrEqual(t, obs.observations[0].duration, time.Duration(0))
	assert.Equal(t, "failing", obs.observations[1].transform)
	assert.ErrorIs(t, obs.observations[1].err, errBroken)
}

func TestStats_NilObserver(t *testing.T) {
	v, err := transform.WithStats(constant, nil).Apply(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}
