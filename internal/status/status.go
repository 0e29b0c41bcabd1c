// Package status defines the result code taxonomy shared by every layer of
// the flow runtime, from the region and flowstore packages up through the
// public API. Keeping it dependency-free avoids an import cycle between the
// root package and the internal packages that need to return these codes.
package status

import "errors"

// Code is a result code returned by flow runtime operations in place of an
// ad-hoc error for expected, typed outcomes (races, timeouts, not-found).
// Unexpected failures are still reported as plain errors via Go's error
// interface; Code is for outcomes callers are expected to branch on.
type Code int

const (
	OK Code = iota
	InvalidArg
	FlowNotFound
	FlowInvalid
	PermissionDenied
	OutOfRangeTooEarly
	OutOfRangeTooLate
	Timeout
	AlreadyExists
	Internal
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case InvalidArg:
		return "INVALID_ARG"
	case FlowNotFound:
		return "FLOW_NOT_FOUND"
	case FlowInvalid:
		return "FLOW_INVALID"
	case PermissionDenied:
		return "PERMISSION_DENIED"
	case OutOfRangeTooEarly:
		return "OUT_OF_RANGE_TOO_EARLY"
	case OutOfRangeTooLate:
		return "OUT_OF_RANGE_TOO_LATE"
	case Timeout:
		return "TIMEOUT"
	case AlreadyExists:
		return "ALREADY_EXISTS"
	case Internal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// Error wraps a Code as a Go error, optionally carrying an underlying
// cause for diagnostics. Callers that need to branch on the outcome should
// use errors.As to recover the Code rather than compare error strings.
type Error struct {
	Code  Code
	Cause error
}

func New(code Code) *Error { return &Error{Code: code} }

func Wrap(code Code, cause error) *Error { return &Error{Code: code, Cause: cause} }

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Code.String() + ": " + e.Cause.Error()
	}
	return e.Code.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether err is a *Error carrying code.
func Is(err error, code Code) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}
