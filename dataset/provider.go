package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MasterOfBinary/malbatch/sample"
)

// Provider produces Samples from a dataset root directory.
type Provider interface {
	// Name identifies the provider. Worker processes use it to look the
	// provider up again in their own Registry.
	Name() string

	// Samples enumerates every sample in the dataset. It returns two
	// channels, one for samples and one for errors; both are always
	// created and always closed when enumeration finishes or ctx is
	// canceled. Receivers should drain the sample channel first.
	//
	// Every call scans the directory again. Samples are emitted in
	// lexical file name order.
	Samples(ctx context.Context) (<-chan *sample.Sample, <-chan error)

	// Sample returns the sample with the given hash without scanning the
	// directory. A *NotFoundError is returned if the file does not exist.
	Sample(ctx context.Context, hash string) (*sample.Sample, error)

	// Dir resolves the root directory of the dataset.
	Dir() (string, error)
}

// FileConfig provides configuration options for creating a FileProvider.
type FileConfig struct {
	// Name identifies the provider. This field is required.
	Name string

	// Resolver resolves the root directory. This field is required.
	Resolver Resolver

	// Codec maps file names to hashes. This field is required.
	Codec Codec

	// Check enables verification of every sample's hash against the file
	// content. It makes enumeration read every file.
	Check bool

	// Logger receives warnings about skipped files. If nil, nothing is
	// logged.
	Logger *slog.Logger
}

// Validate checks if the FileConfig is valid.
func (c FileConfig) Validate() error {
	if c.Name == "" {
		return errors.New("name cannot be empty")
	}
	if c.Resolver == nil {
		return errors.New("resolver cannot be nil")
	}
	if c.Codec == nil {
		return errors.New("codec cannot be nil")
	}
	return nil
}

// FileProvider is a Provider for datasets stored as one file per sample in
// a single directory. Its behavior is fully described by a Resolver for the
// root directory and a Codec for file names, so derived datasets are built
// by composing those rather than by wrapping another provider.
type FileProvider struct {
	name     string
	resolver Resolver
	codec    Codec
	check    bool
	logger   *slog.Logger
}

// NewFile creates a FileProvider with the given configuration.
// It validates the configuration and returns an error if invalid.
//
// Example:
//
//	p, err := dataset.NewFile(dataset.FileConfig{
//		Name:     "mine",
//		Resolver: dataset.StaticDir("/data/samples"),
//		Codec:    dataset.StemCodec{Ext: "bin"},
//	})
func NewFile(config FileConfig) (*FileProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid file provider config: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &FileProvider{
		name:     config.Name,
		resolver: config.Resolver,
		codec:    config.Codec,
		check:    config.Check,
		logger:   logger,
	}, nil
}

// Name implements the Provider interface.
func (p *FileProvider) Name() string {
	return p.name
}

// Dir implements the Provider interface.
func (p *FileProvider) Dir() (string, error) {
	return p.resolver()
}

// Codec returns the file name convention of the provider.
func (p *FileProvider) Codec() Codec {
	return p.codec
}

// Samples implements the Provider interface. Files whose name does not
// follow the provider's Codec, or does not map back to itself through
// FilenameFromHash, are skipped with a warning. Directories are
// skipped silently. Any other error, including a hash mismatch when Check
// is enabled, ends the enumeration and is sent on the error channel.
func (p *FileProvider) Samples(ctx context.Context) (<-chan *sample.Sample, <-chan error) {
	out := make(chan *sample.Sample)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		if err := p.enumerate(ctx, out); err != nil {
			errs <- err
		}
	}()

	return out, errs
}

func (p *FileProvider) enumerate(ctx context.Context, out chan<- *sample.Sample) error {
	dir, err := p.Dir()
	if err != nil {
		return fmt.Errorf("%s: %w", p.name, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("%s: read dataset directory: %w", p.name, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		hash := p.codec.HashFromFilename(name)
		if !p.codec.Valid(hash) {
			p.logger.Warn("skipping invalid filename", "provider", p.name, "filename", name)
			continue
		}
		// Sample looks files up by FilenameFromHash, so anything else
		// (another extension, a trailing suffix) could not be found again.
		if p.codec.FilenameFromHash(hash) != name {
			p.logger.Warn("skipping filename not produced by codec", "provider", p.name, "filename", name)
			continue
		}

		s, err := p.newSample(filepath.Join(dir, name), hash)
		if err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}

		select {
		case <-ctx.Done():
			return nil
		case out <- s:
		}
	}

	return nil
}

// Sample implements the Provider interface.
func (p *FileProvider) Sample(_ context.Context, hash string) (*sample.Sample, error) {
	if !p.codec.Valid(hash) {
		return nil, fmt.Errorf("%s: %w: %q", p.name, sample.ErrInvalidHash, hash)
	}

	dir, err := p.Dir()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.name, err)
	}

	path := filepath.Join(dir, p.codec.FilenameFromHash(hash))
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, &NotFoundError{Provider: p.name, Hash: hash, Path: path}
	}

	return p.newSample(path, hash)
}

func (p *FileProvider) newSample(path, hash string) (*sample.Sample, error) {
	opts := []sample.Option{sample.WithCheck(p.check)}
	if sample.IsMD5(hash) {
		opts = append(opts, sample.WithMD5(hash))
	} else {
		opts = append(opts, sample.WithSHA256(hash))
	}
	return sample.New(path, opts...)
}
