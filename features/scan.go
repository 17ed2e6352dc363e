package features

import (
	"context"

	"github.com/MasterOfBinary/malbatch/batch"
	"github.com/MasterOfBinary/malbatch/dataset"
	"github.com/MasterOfBinary/malbatch/sample"
)

// ScanName is the name Scan is registered under.
const ScanName = "scan"

// Scan is the transform that extracts a *Record from every sample.
var Scan = batch.TransformFunc(func(_ context.Context, _ dataset.Provider, s *sample.Sample) (interface{}, error) {
	return Extract(s.Path())
})
