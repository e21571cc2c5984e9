// Package inventory loads host and package definitions from YAML files.
// This is part of the Imperative Shell - it reads files and hands label
// collections to the pure selection core.
package inventory

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/artpar/deploy-pipeline/internal/core/labels"
	"gopkg.in/yaml.v3"
)

// Top-level sections of an inventory file.
const (
	SectionHosts    = "hosts"
	SectionPackages = "packages"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrReadFailed is returned when an inventory file cannot be read.
	ErrReadFailed = errors.New("failed to read inventory file")

	// ErrInvalidYAML is returned when an inventory file is not a YAML mapping.
	ErrInvalidYAML = errors.New("invalid inventory YAML")

	// ErrMissingSection is returned when no file defines hosts or packages.
	ErrMissingSection = errors.New("missing inventory section")

	// ErrInvalidEntry is returned for an entry that is not a mapping.
	ErrInvalidEntry = errors.New("invalid inventory entry")
)

// LoadError wraps errors with the file or section that failed.
type LoadError struct {
	Path    string // file path or section name
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Inventory
// =============================================================================

// Inventory is the merged content of all inventory files.
type Inventory struct {
	Hosts    labels.Collection
	Packages labels.Collection

	// Raw holds every top-level key after merging, for passthrough settings.
	Raw map[string]any
}

// Loader reads inventory files.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new Loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load reads and merges paths in order. Top-level keys of later files replace
// those of earlier ones; sections are not merged entry by entry.
func (l *Loader) Load(paths ...string) (*Inventory, error) {
	merged := make(map[string]any)
	for _, path := range paths {
		l.logger.Debug("reading inventory file", "path", path)

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &LoadError{Path: path, Message: err.Error(), Err: ErrReadFailed}
		}
		doc, err := Parse(data)
		if err != nil {
			return nil, &LoadError{Path: path, Message: err.Error(), Err: err}
		}
		for k, v := range doc {
			merged[k] = v
		}
	}

	return FromMap(merged)
}

// Parse decodes a single inventory document. An empty document is an empty map.
func Parse(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if doc == nil {
		doc = make(map[string]any)
	}
	return doc, nil
}

// FromMap extracts the host and package collections from merged inventory data.
func FromMap(raw map[string]any) (*Inventory, error) {
	hosts, err := collection(raw, SectionHosts)
	if err != nil {
		return nil, err
	}
	packages, err := collection(raw, SectionPackages)
	if err != nil {
		return nil, err
	}
	return &Inventory{Hosts: hosts, Packages: packages, Raw: raw}, nil
}

func collection(raw map[string]any, section string) (labels.Collection, error) {
	value, ok := raw[section]
	if !ok {
		return nil, &LoadError{Path: section, Message: "section not defined", Err: ErrMissingSection}
	}

	entries, ok := value.(map[string]any)
	if !ok {
		return nil, &LoadError{Path: section, Message: "expected a mapping of keys to entries", Err: ErrInvalidEntry}
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make(labels.Collection, len(entries))
	for _, key := range keys {
		switch record := entries[key].(type) {
		case map[string]any:
			result[key] = labels.Record(record)
		case nil:
			result[key] = labels.Record{}
		default:
			return nil, &LoadError{
				Path:    fmt.Sprintf("%s.%s", section, key),
				Message: "expected a mapping",
				Err:     ErrInvalidEntry,
			}
		}
	}
	return result, nil
}
