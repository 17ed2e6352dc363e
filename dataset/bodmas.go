package dataset

import (
	"log/slog"

	"github.com/MasterOfBinary/malbatch/sample"
)

// Names and settings of the BODMAS dataset family.
const (
	BodmasName         = "bodmas"
	BodmasArmedName    = "bodmas_armed"
	BodmasUnpackedName = "bodmas_unpacked"

	// BodmasDirEnv is the environment variable holding the BODMAS sample
	// directory.
	BodmasDirEnv = "BODMAS_DIR_SAMPLES"

	bodmasArmedLeaf      = "armed"
	bodmasUnpackedSuffix = "_unpacked"
	bodmasUnpackedPrefix = "unpacked_"
)

// BodmasCodec is the BODMAS file name convention, "<sha256>.exe".
func BodmasCodec() Codec {
	return StemCodec{Ext: "exe", Validate: sample.IsSHA256}
}

// Bodmas holds the providers of the BODMAS dataset family.
type Bodmas struct {
	// Base is the original sample set, rooted at the configured directory.
	Base *FileProvider

	// Armed lives in the "armed" directory next to Base and uses the same
	// file names.
	Armed *FileProvider

	// Unpacked lives next to Armed, in Armed's directory name suffixed with
	// "_unpacked", and names files "unpacked_<sha256>.exe".
	Unpacked *FileProvider
}

// NewBodmas creates the BODMAS providers. root resolves the base sample
// directory, usually EnvDir(BodmasDirEnv).
func NewBodmas(root Resolver, logger *slog.Logger) *Bodmas {
	b := &Bodmas{}
	b.Base = mustNewFile(FileConfig{
		Name:     BodmasName,
		Resolver: root,
		Codec:    BodmasCodec(),
		Logger:   logger,
	})
	b.Armed = mustNewFile(FileConfig{
		Name:     BodmasArmedName,
		Resolver: SiblingOf(b.Base, bodmasArmedLeaf),
		Codec:    BodmasCodec(),
		Logger:   logger,
	})
	b.Unpacked = mustNewFile(FileConfig{
		Name:     BodmasUnpackedName,
		Resolver: SuffixedSiblingOf(b.Armed, bodmasUnpackedSuffix),
		Codec:    PrefixCodec{Prefix: bodmasUnpackedPrefix, Base: BodmasCodec()},
		Logger:   logger,
	})
	return b
}

// Providers returns the providers of the family, base first.
func (b *Bodmas) Providers() []Provider {
	return []Provider{b.Base, b.Armed, b.Unpacked}
}

func mustNewFile(config FileConfig) *FileProvider {
	p, err := NewFile(config)
	if err != nil {
		panic(err)
	}
	return p
}
