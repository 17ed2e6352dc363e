package dataset

import (
	"strings"

	"github.com/MasterOfBinary/malbatch/sample"
)

// Codec maps file names in a dataset directory to sample hashes and back.
// Within one directory the mapping must be a bijection: for every file name
// f whose hash is Valid, FilenameFromHash(HashFromFilename(f)) == f.
type Codec interface {
	// HashFromFilename decodes the hash from a file name. It returns "" if
	// the name does not follow the convention.
	HashFromFilename(name string) string

	// FilenameFromHash returns the file name a sample with the given hash
	// is stored under.
	FilenameFromHash(hash string) string

	// Valid reports whether hash is a hash this dataset can be addressed by.
	Valid(hash string) bool
}

// StemCodec stores samples as "<hash>.<Ext>". The hash is the file name up to
// the first dot.
type StemCodec struct {
	// Ext is the file extension without the leading dot. If empty, files are
	// named after the bare hash.
	Ext string

	// Validate checks decoded hashes. If nil, sample.IsHash is used.
	Validate func(hash string) bool
}

// HashFromFilename implements the Codec interface.
func (c StemCodec) HashFromFilename(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	return name
}

// FilenameFromHash implements the Codec interface.
func (c StemCodec) FilenameFromHash(hash string) string {
	if c.Ext == "" {
		return hash
	}
	return hash + "." + c.Ext
}

// Valid implements the Codec interface.
func (c StemCodec) Valid(hash string) bool {
	if c.Validate == nil {
		return sample.IsHash(hash)
	}
	return c.Validate(hash)
}

// PrefixCodec wraps a Codec and adds Prefix in front of every file name.
// Names without the prefix decode to "", so they are rejected instead of
// being mapped to a file name they do not have.
type PrefixCodec struct {
	Prefix string
	Base   Codec
}

// HashFromFilename implements the Codec interface.
func (c PrefixCodec) HashFromFilename(name string) string {
	if !strings.HasPrefix(name, c.Prefix) {
		return ""
	}
	return c.Base.HashFromFilename(strings.TrimPrefix(name, c.Prefix))
}

// FilenameFromHash implements the Codec interface.
func (c PrefixCodec) FilenameFromHash(hash string) string {
	return c.Prefix + c.Base.FilenameFromHash(hash)
}

// Valid implements the Codec interface.
func (c PrefixCodec) Valid(hash string) bool {
	return c.Base.Valid(hash)
}
