package features

import (
	"bytes"
	"debug/pe"
	"errors"
	"fmt"
	"os"
)

// ErrNotPE is returned by Extract for files that are not PE images.
var ErrNotPE = errors.New("not a PE file")

// Record is the set of static features extracted from one PE file.
type Record struct {
	// Printable strings of at least five characters.
	NumStrings int      `json:"numstrings" yaml:"numstrings"`
	AvgLength  float64  `json:"avlength" yaml:"avlength"`
	Printables int      `json:"printables" yaml:"printables"`
	Entropy    float64  `json:"entropy" yaml:"entropy"`
	Paths      []string `json:"paths" yaml:"paths"`
	URLs       []string `json:"urls" yaml:"urls"`
	Registry   []string `json:"registry" yaml:"registry"`
	MZ         int      `json:"mz" yaml:"mz"`

	// General file information.
	Size    int64 `json:"size" yaml:"size"`
	Exports int   `json:"exports" yaml:"exports"`
	Imports int   `json:"imports" yaml:"imports"`

	// Headers and sections.
	Machine      string   `json:"machine" yaml:"machine"`
	Subsystem    string   `json:"subsystem" yaml:"subsystem"`
	Entry        string   `json:"entry" yaml:"entry"`
	SectionNames []string `json:"section_names" yaml:"section_names"`

	// Imported libraries, imported functions and exported functions.
	ImportLibs  []string `json:"import_libs" yaml:"import_libs"`
	ImportFuncs []string `json:"import_funcs" yaml:"import_funcs"`
	ExportFuncs []string `json:"export_funcs" yaml:"export_funcs"`
}

// Extract reads the file at path and extracts its features. It returns an
// error wrapping ErrNotPE if the file cannot be parsed as a PE image.
func Extract(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sample: %w", err)
	}
	return ExtractBytes(data)
}

// ExtractBytes is like Extract for a file already in memory.
func ExtractBytes(data []byte) (*Record, error) {
	f, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPE, err)
	}
	defer f.Close()

	strs := extractStrings(data)
	rec := &Record{
		NumStrings:   strs.numStrings,
		AvgLength:    strs.avgLength,
		Printables:   strs.printables,
		Entropy:      strs.entropy,
		Paths:        strs.paths,
		URLs:         strs.hosts,
		Registry:     strs.registry,
		MZ:           strs.mz,
		Size:         int64(len(data)),
		Machine:      machineName(f.Machine),
		SectionNames: sectionNames(f),
	}

	entry, subsystem, dirs := headerInfo(f)
	rec.Subsystem = subsystemName(subsystem)
	if s := sectionAt(f, entry); s != nil {
		rec.Entry = s.Name
	}

	libs, err := imports(f)
	if err != nil {
		return nil, fmt.Errorf("%w: imports: %v", ErrNotPE, err)
	}
	for _, lib := range sortedKeys(libs) {
		rec.ImportLibs = append(rec.ImportLibs, lib)
		rec.ImportFuncs = append(rec.ImportFuncs, libs[lib]...)
	}
	rec.Imports = len(rec.ImportFuncs)

	rec.ExportFuncs, err = exports(f, dirs)
	if err != nil {
		return nil, fmt.Errorf("%w: exports: %v", ErrNotPE, err)
	}
	rec.Exports = len(rec.ExportFuncs)

	return rec, nil
}
