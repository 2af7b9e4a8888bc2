package dispatch

import "github.com/hupe1980/cmdmesh/core"

// Status is the outcome class of a dispatch.
type Status int

const (
	// StatusUnhandled means no command matched the input.
	StatusUnhandled Status = iota
	// StatusHandled means an executor ran and returned without error.
	StatusHandled
	// StatusInvalid means a command shape matched but an argument failed
	// strict decoding and no other branch took the input.
	StatusInvalid
	// StatusFaulted means the executor failed or panicked. The fault was
	// contained and a correlation response was sent.
	StatusFaulted
)

// String returns the lower-case status name.
func (s Status) String() string {
	switch s {
	case StatusUnhandled:
		return "unhandled"
	case StatusHandled:
		return "handled"
	case StatusInvalid:
		return "invalid"
	case StatusFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Result describes a completed dispatch.
type Result struct {
	Status       Status
	InvocationID string
	// Command is the literal path of the executed node, e.g. "switch move".
	Command string
	// Response is what the executor returned, or the generated failure
	// response for StatusInvalid and StatusFaulted.
	Response core.Response
	// Invalid is set for StatusInvalid.
	Invalid *core.InvalidInputError
	// Fault is set for StatusFaulted.
	Fault *core.ExecutionError
}

// Handled reports whether the input was consumed by a command, including
// invalid and faulted outcomes.
func (r Result) Handled() bool { return r.Status != StatusUnhandled }
