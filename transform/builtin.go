package transform

import (
	"context"
	"fmt"
	"os"

	"github.com/MasterOfBinary/malbatch/batch"
	"github.com/MasterOfBinary/malbatch/dataset"
	"github.com/MasterOfBinary/malbatch/features"
	"github.com/MasterOfBinary/malbatch/sample"
)

// Names of the built-in transforms.
const (
	HashName = "hash"
	SizeName = "size"
	ScanName = features.ScanName
)

// Hash computes the MD5 and SHA256 digests of the sample's content.
var Hash = batch.TransformFunc(func(_ context.Context, _ dataset.Provider, s *sample.Sample) (interface{}, error) {
	sums, err := sample.HashFile(s.Path())
	if err != nil {
		return nil, err
	}
	return sums, nil
})

// SizeResult is the value returned by Size.
type SizeResult struct {
	Size int64 `json:"size" yaml:"size"`
}

// Size returns the size of the sample in bytes.
var Size = batch.TransformFunc(func(_ context.Context, _ dataset.Provider, s *sample.Sample) (interface{}, error) {
	info, err := os.Stat(s.Path())
	if err != nil {
		return nil, fmt.Errorf("stat sample: %w", err)
	}
	return SizeResult{Size: info.Size()}, nil
})

// Default returns a Registry with the built-in transforms: hash, size and
// scan.
func Default() *Registry {
	r := NewRegistry()
	r.MustRegister(HashName, Hash)
	r.MustRegister(SizeName, Size)
	r.MustRegister(ScanName, features.Scan)
	return r
}
