package batch

import (
	"errors"
)

// Config retrieves the config values used by Batch. If these values are
// constant, NewConstantConfig can be used to create an implementation
// of the interface.
//
// Get is called once at the start of every run; the values stay fixed for
// the rest of that run so that every batch but the last has the same size.
type Config interface {
	// Get returns the values for configuration.
	Get() ConfigValues
}

// ConfigValues is a struct that contains the Batch config values.
type ConfigValues struct {
	// BatchSize is the number of samples dispatched to the Executor at a
	// time. The last batch of a run may be smaller. If zero,
	// DefaultBatchSize is used.
	BatchSize int `json:"batchSize" yaml:"size"`

	// MaxBatches stops the run after that many batches have been
	// processed; any samples not read yet are discarded. If zero, all
	// samples are processed.
	MaxBatches int `json:"maxBatches" yaml:"max_batches"`
}

// Validate checks if the ConfigValues are valid.
func (c ConfigValues) Validate() error {
	if c.BatchSize < 0 {
		return errors.New("batch size cannot be negative")
	}
	if c.MaxBatches < 0 {
		return errors.New("max batches cannot be negative")
	}
	return nil
}

// NewConstantConfig returns a Config with constant values. If values
// is nil, the default values are used as described in Batch.
func NewConstantConfig(values *ConfigValues) *ConstantConfig {
	if values == nil {
		return &ConstantConfig{}
	}

	return &ConstantConfig{
		values: *values,
	}
}

// ConstantConfig is a Config with constant values. Create one with
// NewConstantConfig.
//
// This implementation is safe to use concurrently since the values
// never change after initialization.
type ConstantConfig struct {
	values ConfigValues
}

// Get implements the Config interface.
func (b *ConstantConfig) Get() ConfigValues {
	return b.values
}

// fixConfig fills in defaults for zero values.
func fixConfig(c ConfigValues) ConfigValues {
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	return c
}
