package planerrors

import (
	"errors"
	"fmt"
)

var (
	ErrMissingInputField    = errors.New("missing input field")
	ErrInvalidNumericInput  = errors.New("invalid numeric input")
	ErrInconsistentTopology = errors.New("inconsistent topology")
)

// MissingFieldError names a required key that was absent from the input record.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingInputField, e.Field)
}

func (e *MissingFieldError) Unwrap() error {
	return ErrMissingInputField
}

// NumericInputError is returned when a sizing value cannot be parsed.
type NumericInputError struct {
	Name  string
	Value string
	Cause error
}

func (e *NumericInputError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s=%q: %s", ErrInvalidNumericInput, e.Name, e.Value, e.Cause)
	}
	return fmt.Sprintf("%s: %s=%q", ErrInvalidNumericInput, e.Name, e.Value)
}

func (e *NumericInputError) Unwrap() error {
	return ErrInvalidNumericInput
}

// TopologyError reports a node layout that the role allocator cannot satisfy.
type TopologyError struct {
	ClusterType string
	Reason      string
}

func (e *TopologyError) Error() string {
	if e.ClusterType == "" {
		return fmt.Sprintf("%s: %s", ErrInconsistentTopology, e.Reason)
	}
	return fmt.Sprintf("%s: %s cluster: %s", ErrInconsistentTopology, e.ClusterType, e.Reason)
}

func (e *TopologyError) Unwrap() error {
	return ErrInconsistentTopology
}

func NewTopologyError(clusterType, format string, args ...interface{}) error {
	return &TopologyError{
		ClusterType: clusterType,
		Reason:      fmt.Sprintf(format, args...),
	}
}
