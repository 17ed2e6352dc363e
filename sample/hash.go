package sample

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Algorithm names a content hash algorithm.
type Algorithm string

const (
	// AlgorithmMD5 is the 128-bit MD5 digest.
	AlgorithmMD5 Algorithm = "md5"
	// AlgorithmSHA256 is the 256-bit SHA-2 digest.
	AlgorithmSHA256 Algorithm = "sha256"
)

// Sums holds the hex-encoded digests of a file.
type Sums struct {
	MD5    string `json:"md5" yaml:"md5"`
	SHA256 string `json:"sha256" yaml:"sha256"`
}

// IsMD5 reports whether s is a 32 character hex string.
func IsMD5(s string) bool {
	return isHex(s, md5.Size*2)
}

// IsSHA256 reports whether s is a 64 character hex string.
func IsSHA256(s string) bool {
	return isHex(s, sha256.Size*2)
}

// IsHash reports whether s is a valid MD5 or SHA-256 hex string.
func IsHash(s string) bool {
	return IsMD5(s) || IsSHA256(s)
}

func isHex(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// HashFile computes the MD5 and SHA-256 digests of the file at path in a
// single pass.
func HashFile(path string) (Sums, error) {
	f, err := os.Open(path)
	if err != nil {
		return Sums{}, fmt.Errorf("hash %q: %w", path, err)
	}
	defer f.Close()

	return HashReader(f)
}

// HashReader computes the MD5 and SHA-256 digests of everything read from r.
func HashReader(r io.Reader) (Sums, error) {
	m := md5.New()
	s := sha256.New()
	if _, err := io.Copy(io.MultiWriter(m, s), r); err != nil {
		return Sums{}, fmt.Errorf("hash: %w", err)
	}
	return Sums{
		MD5:    hex.EncodeToString(m.Sum(nil)),
		SHA256: hex.EncodeToString(s.Sum(nil)),
	}, nil
}
