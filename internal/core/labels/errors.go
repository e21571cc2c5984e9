package labels

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrMalformedSelector is returned when a structured selector lacks a required field.
	ErrMalformedSelector = errors.New("malformed selector")

	// ErrUnknownOperator is returned when an operator name is not one of In, NotIn, Exists, DoesNotExist.
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrEmptySelector is returned when a compact selector has no label key.
	ErrEmptySelector = errors.New("selector has no label key")

	// ErrMissingLabel is returned when grouping hits an entity without the grouping label.
	ErrMissingLabel = errors.New("missing grouping label")

	// ErrMissingJoinField is returned when a record lacks the named join field.
	ErrMissingJoinField = errors.New("missing join field")
)

// SelectorError describes a structured selector that could not be turned into a Query.
type SelectorError struct {
	Field string // offending field, e.g. "key" or "operator"
	Value any    // offending value, if any
	Err   error
}

func (e *SelectorError) Error() string {
	switch {
	case e.Value != nil:
		return fmt.Sprintf("%v: field %q: %v", e.Err, e.Field, e.Value)
	case e.Field != "":
		return fmt.Sprintf("%v: missing field %q", e.Err, e.Field)
	default:
		return e.Err.Error()
	}
}

func (e *SelectorError) Unwrap() error {
	return e.Err
}

// MissingLabelError reports the entity that could not be placed into a group.
type MissingLabelError struct {
	Key   string
	Label string
}

func (e *MissingLabelError) Error() string {
	return fmt.Sprintf("%v: %q has no label %q", ErrMissingLabel, e.Key, e.Label)
}

func (e *MissingLabelError) Unwrap() error {
	return ErrMissingLabel
}

// MissingJoinFieldError reports the record that has no join values.
type MissingJoinFieldError struct {
	Key   string
	Field string
}

func (e *MissingJoinFieldError) Error() string {
	return fmt.Sprintf("%v: %q has no field %q", ErrMissingJoinField, e.Key, e.Field)
}

func (e *MissingJoinFieldError) Unwrap() error {
	return ErrMissingJoinField
}
