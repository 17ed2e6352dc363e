package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Resolver returns the root directory of a dataset.
type Resolver func() (string, error)

// Rooted is anything with a resolvable root directory. Every Provider is
// Rooted.
type Rooted interface {
	Dir() (string, error)
}

// EnvDir resolves the root directory from the environment variable key. The
// variable is read on every call. ErrNotConfigured is returned when it is
// unset or blank.
func EnvDir(key string) Resolver {
	return func() (string, error) {
		dir := strings.TrimSpace(os.Getenv(key))
		if dir == "" {
			return "", fmt.Errorf("%w: environment variable %s is not set", ErrNotConfigured, key)
		}
		return filepath.Clean(dir), nil
	}
}

// StaticDir always resolves to dir.
func StaticDir(dir string) Resolver {
	return func() (string, error) {
		if strings.TrimSpace(dir) == "" {
			return "", fmt.Errorf("%w: empty directory", ErrNotConfigured)
		}
		return filepath.Clean(dir), nil
	}
}

// SiblingOf resolves to the directory named leaf next to the root of
// ancestor. With an ancestor rooted at /data/samples and leaf "armed" it
// resolves to /data/armed.
//
// The ancestor is resolved on every call, so a derived dataset follows the
// configuration of the dataset it was derived from.
func SiblingOf(ancestor Rooted, leaf string) Resolver {
	return func() (string, error) {
		dir, err := ancestor.Dir()
		if err != nil {
			return "", err
		}
		return filepath.Join(filepath.Dir(dir), leaf), nil
	}
}

// SuffixedSiblingOf resolves to a directory next to the root of ancestor,
// named after the ancestor's root with suffix appended. With an ancestor
// rooted at /data/armed and suffix "_unpacked" it resolves to
// /data/armed_unpacked.
func SuffixedSiblingOf(ancestor Rooted, suffix string) Resolver {
	return func() (string, error) {
		dir, err := ancestor.Dir()
		if err != nil {
			return "", err
		}
		return filepath.Join(filepath.Dir(dir), filepath.Base(dir)+suffix), nil
	}
}
