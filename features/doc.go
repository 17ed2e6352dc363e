// Package features extracts static features from PE files: statistics of
// the printable strings, general file information, header fields, section
// names, imports and exports.
//
// Files that are not PE images are rejected with ErrNotPE; the scan
// transform therefore fails on them, which ends a batch run.
package features
