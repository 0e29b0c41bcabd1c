package mxl

import "github.com/mlefebvre1/mxl/internal/status"

// Code is a result code returned by flow runtime operations in place of an
// ad-hoc error for outcomes callers are expected to branch on (races,
// timeouts, not-found), as opposed to unexpected internal failures, which
// are still plain errors.
type Code = status.Code

// Error wraps a Code as a Go error. Use errors.As to recover the Code.
type Error = status.Error

const (
	OK                 = status.OK
	InvalidArg         = status.InvalidArg
	FlowNotFound       = status.FlowNotFound
	FlowInvalid        = status.FlowInvalid
	PermissionDenied   = status.PermissionDenied
	OutOfRangeTooEarly = status.OutOfRangeTooEarly
	OutOfRangeTooLate  = status.OutOfRangeTooLate
	Timeout            = status.Timeout
	AlreadyExists      = status.AlreadyExists
	Internal           = status.Internal
)

// Is reports whether err is an *Error carrying code.
func Is(err error, code Code) bool { return status.Is(err, code) }
