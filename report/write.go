package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Formats accepted by WriteFile.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// EncodeJSON writes r to w as indented JSON.
func (r *Report) EncodeJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(r)
}

// EncodeYAML writes r to w as YAML.
func (r *Report) EncodeYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(4)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

// WriteJSON writes r to <dir>/<title>_stats.json and returns the path.
func WriteJSON(dir, title string, r *Report) (string, error) {
	return WriteFile(dir, title, FormatJSON, r)
}

// WriteYAML writes r to <dir>/<title>_stats.yaml and returns the path.
func WriteYAML(dir, title string, r *Report) (string, error) {
	return WriteFile(dir, title, FormatYAML, r)
}

// WriteFile writes r to <dir>/<title>_stats.<format> and returns the path.
func WriteFile(dir, title, format string, r *Report) (string, error) {
	var encode func(io.Writer) error
	switch format {
	case FormatJSON:
		encode = r.EncodeJSON
	case FormatYAML:
		encode = r.EncodeYAML
	default:
		return "", fmt.Errorf("report: unknown format %q", format)
	}
	if title == "" {
		return "", errors.New("report: title cannot be empty")
	}

	path := filepath.Join(dir, title+"_stats."+format)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("report: %w", err)
	}
	if err := encode(f); err != nil {
		f.Close()
		return "", fmt.Errorf("report: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("report: %w", err)
	}
	return path, nil
}
