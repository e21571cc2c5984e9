package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Phase errors
	ErrDuplicatePhase = errors.New("duplicate phase name")
	ErrInvalidPhase   = errors.New("invalid phase name")

	// Job errors
	ErrDuplicateJob = errors.New("duplicate job name")
	ErrEmptyJobName = errors.New("job name is required")

	// Config validation errors
	ErrInvalidConfig = errors.New("invalid pipeline config")
)

// ValidationKind names the layer of the pipeline file a ValidationError came from.
type ValidationKind string

const (
	KindRoot     ValidationKind = "root"
	KindJob      ValidationKind = "job"
	KindSelector ValidationKind = "selector"
)

// RootPath is the first element of every validation path.
const RootPath = "<root>"

// ValidationError wraps errors with context about where validation failed.
type ValidationError struct {
	Kind    ValidationKind
	Path    []string // e.g. ["<root>", "jobs", "deploy", "selectors", "host"]
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if e.Err != nil && !errors.Is(e.Err, ErrInvalidConfig) {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return fmt.Sprintf("%s [Path: %s]", msg, strings.Join(e.Path, "->"))
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is lets every ValidationError match ErrInvalidConfig.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

func newValidationError(kind ValidationKind, path []string, message string, err error) *ValidationError {
	if err == nil {
		err = ErrInvalidConfig
	}
	return &ValidationError{
		Kind:    kind,
		Path:    append([]string(nil), path...),
		Message: message,
		Err:     err,
	}
}
