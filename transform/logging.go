package transform

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MasterOfBinary/malbatch/batch"
	"github.com/MasterOfBinary/malbatch/dataset"
	"github.com/MasterOfBinary/malbatch/sample"
)

// Logging wraps another transform and logs every sample it is applied to,
// along with the time it took and any error.
type Logging struct {
	// Transform is the wrapped transform that does the actual work.
	Transform batch.Transform

	// Logger is used to log events. If nil, no logging occurs.
	Logger *slog.Logger

	// Level is the level successful samples are logged at. Failures are
	// always logged at slog.LevelWarn.
	Level slog.Level
}

// Apply implements the batch.Transform interface by delegating to the
// wrapped transform and logging the operation.
func (l *Logging) Apply(ctx context.Context, p dataset.Provider, s *sample.Sample) (interface{}, error) {
	if l.Logger == nil {
		return l.Transform.Apply(ctx, p, s)
	}

	start := time.Now()
	v, err := l.Transform.Apply(ctx, p, s)
	duration := time.Since(start)

	if err != nil {
		l.Logger.Warn("transform failed",
			"transform", l.name(), "sample", s.String(), "duration", duration, "error", err)
		return v, err
	}

	l.Logger.Log(ctx, l.Level, "transform applied",
		"transform", l.name(), "sample", s.String(), "duration", duration)
	return v, nil
}

// TransformName returns the name of the wrapped transform.
func (l *Logging) TransformName() string {
	return Name(l.Transform)
}

func (l *Logging) name() string {
	if n := Name(l.Transform); n != "" {
		return n
	}
	return fmt.Sprintf("%T", l.Transform)
}

// WithLogging wraps a transform with logging at debug level.
//
// Example:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
//	wrapped := transform.WithLogging(t, logger)
func WithLogging(t batch.Transform, logger *slog.Logger) *Logging {
	return &Logging{
		Transform: t,
		Logger:    logger,
		Level:     slog.LevelDebug,
	}
}
