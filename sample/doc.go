// Package sample contains Sample, the handle used throughout malbatch to
// refer to one binary on disk.
//
// A Sample is addressed by content hash. The hash can be trusted, as when it
// is decoded from a file name, or verified against the file content:
//
//	s, err := sample.New(path, sample.WithSHA256(h), sample.WithCheck(true))
//	if errors.Is(err, sample.ErrHashMismatch) {
//		// the file does not have the expected content
//	}
package sample
