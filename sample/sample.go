package sample

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// Sample is a handle to one binary on disk, identified by its path and
// content hashes. A Sample is immutable once created; create one with New.
type Sample struct {
	path    string
	md5     string
	sha256  string
	checked bool
}

// Option configures a Sample created with New.
type Option func(*options)

type options struct {
	md5    string
	sha256 string
	check  bool
}

// WithMD5 sets the MD5 hash of the sample. The hash is kept exactly as
// given, so Hash returns the same string it was looked up by.
func WithMD5(md5 string) Option {
	return func(o *options) { o.md5 = md5 }
}

// WithSHA256 sets the SHA-256 hash of the sample. The hash is kept exactly
// as given.
func WithSHA256(sha256 string) Option {
	return func(o *options) { o.sha256 = sha256 }
}

// WithCheck controls whether the supplied hashes are verified against the
// content of the file. Verification reads the whole file.
func WithCheck(check bool) Option {
	return func(o *options) { o.check = check }
}

// New creates a Sample for the file at path.
//
// Supplied hashes must be well formed, otherwise ErrInvalidHash is returned.
// If WithCheck(true) is given, every supplied hash is recomputed from the
// file and a *HashError is returned on the first mismatch.
func New(path string, opts ...Option) (*Sample, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.md5 != "" && !IsMD5(o.md5) {
		return nil, fmt.Errorf("%w: md5 %q", ErrInvalidHash, o.md5)
	}
	if o.sha256 != "" && !IsSHA256(o.sha256) {
		return nil, fmt.Errorf("%w: sha256 %q", ErrInvalidHash, o.sha256)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve sample path %q: %w", path, err)
	}

	s := &Sample{
		path:   abs,
		md5:    o.md5,
		sha256: o.sha256,
	}

	if o.check {
		if err := s.verify(); err != nil {
			return nil, err
		}
		s.checked = true
	}

	return s, nil
}

func (s *Sample) verify() error {
	if s.md5 == "" && s.sha256 == "" {
		return nil
	}

	sums, err := HashFile(s.path)
	if err != nil {
		return err
	}

	// Hex digits may be either case.
	if s.md5 != "" && !strings.EqualFold(sums.MD5, s.md5) {
		return &HashError{Path: s.path, Algorithm: AlgorithmMD5, Want: s.md5, Got: sums.MD5}
	}
	if s.sha256 != "" && !strings.EqualFold(sums.SHA256, s.sha256) {
		return &HashError{Path: s.path, Algorithm: AlgorithmSHA256, Want: s.sha256, Got: sums.SHA256}
	}
	return nil
}

// Path returns the absolute path of the sample file.
func (s *Sample) Path() string { return s.path }

// MD5 returns the MD5 hash, or "" if it is unknown.
func (s *Sample) MD5() string { return s.md5 }

// SHA256 returns the SHA-256 hash, or "" if it is unknown.
func (s *Sample) SHA256() string { return s.sha256 }

// Checked reports whether the hashes were verified against the file content
// when the sample was created.
func (s *Sample) Checked() bool { return s.checked }

// Hash returns the identifying hash of the sample. SHA-256 is preferred over
// MD5. It returns "" when the sample carries no hash.
func (s *Sample) Hash() string {
	if s.sha256 != "" {
		return s.sha256
	}
	return s.md5
}

func (s *Sample) String() string {
	if h := s.Hash(); h != "" {
		return h
	}
	return s.path
}

type wireSample struct {
	Path    string `json:"path"`
	MD5     string `json:"md5,omitempty"`
	SHA256  string `json:"sha256,omitempty"`
	Checked bool   `json:"checked,omitempty"`
}

// MarshalJSON implements json.Marshaler so samples can be sent to worker
// processes and written to reports.
func (s *Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireSample{
		Path:    s.path,
		MD5:     s.md5,
		SHA256:  s.sha256,
		Checked: s.checked,
	})
}

// UnmarshalJSON implements json.Unmarshaler. The decoded hashes are trusted;
// they are syntax checked but not verified against the file.
func (s *Sample) UnmarshalJSON(data []byte) error {
	var w wireSample
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.MD5 != "" && !IsMD5(w.MD5) {
		return fmt.Errorf("%w: md5 %q", ErrInvalidHash, w.MD5)
	}
	if w.SHA256 != "" && !IsSHA256(w.SHA256) {
		return fmt.Errorf("%w: sha256 %q", ErrInvalidHash, w.SHA256)
	}
	*s = Sample{
		path:    w.Path,
		md5:     w.MD5,
		sha256:  w.SHA256,
		checked: w.Checked,
	}
	return nil
}
