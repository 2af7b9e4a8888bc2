package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMatch reports that input did not structurally match a node or
	// decoder. It triggers backtracking and is never shown to users.
	ErrNoMatch = errors.New("no match")

	// ErrInvalidInput reports a token in the right position that failed
	// strict decoding (for example a numeric id that overflows).
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingParameter reports execution-time access to an argument that
	// was never bound. It indicates a registration error.
	ErrMissingParameter = errors.New("missing required parameter")
)

// InvalidInputError carries the offending token of an ErrInvalidInput.
type InvalidInputError struct {
	Name  string // argument name, filled in by the dispatcher
	Token string // raw token that failed to decode
	Err   error  // underlying parse error
}

// Error implements error.
func (e *InvalidInputError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("invalid value %q for %s: %v", e.Token, e.Name, e.Err)
	}
	return fmt.Sprintf("invalid value %q: %v", e.Token, e.Err)
}

// Is matches ErrInvalidInput.
func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// Unwrap returns the underlying parse error.
func (e *InvalidInputError) Unwrap() error { return e.Err }

// MissingParameterError names the argument that was required but unbound.
type MissingParameterError struct {
	Name string
}

// Error implements error.
func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingParameter, e.Name)
}

// Unwrap returns ErrMissingParameter.
func (e *MissingParameterError) Unwrap() error { return ErrMissingParameter }

// ParameterTypeError reports an argument that is bound with a different type
// than the one requested.
type ParameterTypeError struct {
	Name string
	Want string
	Got  string
}

// Error implements error.
func (e *ParameterTypeError) Error() string {
	return fmt.Sprintf("parameter %s has type %s, requested %s", e.Name, e.Got, e.Want)
}

// ExecutionError is a leaf executor fault after containment. Timestamp is the
// correlation token shown to the user; everything else stays server-side.
type ExecutionError struct {
	Timestamp    int64  // unix milliseconds
	InvocationID string // dispatch invocation id
	Command      string // matched command path
	Err          error  // executor error, or the recovered panic value as error
	Stack        []byte // stack at recovery time for panics
}

// Error implements error.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("command %q failed at %d: %v", e.Command, e.Timestamp, e.Err)
}

// Unwrap returns the executor error.
func (e *ExecutionError) Unwrap() error { return e.Err }

// PanicError wraps a recovered panic value.
type PanicError struct {
	Value any
}

// Error implements error.
func (p *PanicError) Error() string { return fmt.Sprintf("panic: %v", p.Value) }

// Unwrap exposes panic values that are themselves errors.
func (p *PanicError) Unwrap() error {
	if err, ok := p.Value.(error); ok {
		return err
	}
	return nil
}
