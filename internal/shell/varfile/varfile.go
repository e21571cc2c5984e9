// Package varfile collects template variables from files, arguments and the
// process environment. This is part of the Imperative Shell - the merge rules
// live in the vars core package.
package varfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/artpar/deploy-pipeline/internal/core/vars"
)

var (
	// ErrReadFailed is returned when a variable file cannot be read.
	ErrReadFailed = errors.New("failed to read variable file")

	// ErrInvalidJSON is returned when a variable file is not a JSON object.
	ErrInvalidJSON = errors.New("variable file must contain a JSON object")
)

// Sources lists every variable layer, lowest precedence first.
type Sources struct {
	Files   []string
	Args    []string // "key=value"
	Environ []string // "NAME=value", usually os.Environ()
}

// Collect merges files, then args, then prefixed environment entries.
func Collect(src Sources, logger *slog.Logger) (vars.Vars, error) {
	if logger == nil {
		logger = slog.Default()
	}

	result := vars.Vars{}
	for _, path := range src.Files {
		layer, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		logger.Debug("merged variable file", "path", path, "keys", len(layer))
		result = vars.With(result, layer)
	}

	for _, arg := range src.Args {
		var err error
		if result, err = vars.WithArg(result, arg); err != nil {
			return nil, err
		}
	}

	result = vars.WithEnviron(result, src.Environ)
	logger.Debug("variables collected", "count", len(result))
	return result, nil
}

// ReadFile decodes a single JSON variable file.
func ReadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}

	var layer map[string]any
	if err := json.Unmarshal(data, &layer); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidJSON, path, err)
	}
	if layer == nil {
		// "null" decodes to a nil map
		return nil, fmt.Errorf("%w: %s", ErrInvalidJSON, path)
	}
	return layer, nil
}
