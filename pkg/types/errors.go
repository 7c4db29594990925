package types

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput marks a price or category value outside its grammar.
	ErrMalformedInput = errors.New("malformed input")

	// ErrUnresolvedLabel marks an image whose label could not be joined.
	ErrUnresolvedLabel = errors.New("unresolved label")

	// ErrShapeMismatch marks persisted arrays of inconsistent dimensions.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrConfiguration marks an invalid run parameter.
	ErrConfiguration = errors.New("invalid configuration")
)

// IOError reports a filesystem failure with the operation and path involved.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// WrapIO returns nil for a nil err, otherwise an *IOError.
func WrapIO(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Path: path, Err: err}
}

// Malformed builds an error wrapping ErrMalformedInput.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedInput, fmt.Sprintf(format, args...))
}

// Configuration builds an error wrapping ErrConfiguration.
func Configuration(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
