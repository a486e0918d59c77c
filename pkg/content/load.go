package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is an on-disk encoding for content tables.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported content file extension: %s", filepath.Base(path))
}

// Decode parses a table without validating it. Unknown fields are rejected
// in both formats.
func Decode(data []byte, format Format) (*Table, error) {
	var t Table
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&t); err != nil {
			return nil, fmt.Errorf("failed to decode json content: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&t); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to decode yaml content: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported content format %q", format)
	}
	t.normalize()
	return &t, nil
}

// normalize fills scene ids from table keys and coerces flag values.
func (t *Table) normalize() {
	for key, s := range t.Scenes {
		if s == nil {
			continue
		}
		if s.ID == "" {
			s.ID = key
		}
		for i := range s.Choices {
			c := &s.Choices[i]
			for flag, value := range c.SetFlags {
				if norm, ok := NormalizeFlagValue(value); ok {
					c.SetFlags[flag] = norm
				}
			}
			if c.Condition != nil {
				if norm, ok := NormalizeFlagValue(c.Condition.Value); ok {
					c.Condition.Value = norm
				}
			}
		}
	}
}

// LoadFile reads and decodes a content file, choosing the format by extension.
func LoadFile(path string) (*Table, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("content file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read content file: %w", err)
	}
	t, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// Load reads, decodes and validates a content file. Hosts call this once at
// startup and refuse to run on error.
func Load(path string) (*Table, []Warning, error) {
	t, err := LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	warnings, err := Validate(t)
	if err != nil {
		return nil, warnings, err
	}
	return t, warnings, nil
}
