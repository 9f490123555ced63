// Package sparkerrors defines the error taxonomy of the client engine.
//
// Every failure surfaced to a caller is one of the types below, so the caller
// can distinguish a broken plan from a network fault from a caller-initiated
// cancellation using errors.Is / errors.As alone.
package sparkerrors

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
)

// ErrCancelled is returned by runs the caller cancelled. It is not a failure:
// batches yielded before cancellation remain valid.
var ErrCancelled = errors.New("operation cancelled")

// MalformedPlanError reports an invalid plan tree detected at construction
// time. It is never sent to the server and never retried.
type MalformedPlanError struct {
	Op     string // Builder operation that rejected its arguments.
	Reason string
}

func (e *MalformedPlanError) Error() string {
	return fmt.Sprintf("malformed plan: %s: %s", e.Op, e.Reason)
}

// Malformed creates a new MalformedPlanError.
func Malformed(op, format string, args ...any) *MalformedPlanError {
	return &MalformedPlanError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// UnsupportedTypeError reports a value the plan codec cannot represent on the
// wire. It names the offending node so the caller can locate it.
type UnsupportedTypeError struct {
	Node string // Node kind being encoded, e.g. "literal".
	Type string // Offending type.
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported type: cannot encode %s in %s node", e.Type, e.Node)
}

// TransportError reports a connection-level failure, distinct from a
// protocol-level rejection of the plan. Retryable controls whether the
// execution engine may reattach.
type TransportError struct {
	Code      codes.Code
	Retryable bool
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error (%s): %v", e.Code, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AnalysisError reports that the server rejected the plan during analysis.
// Message carries the server diagnostic verbatim. Never retried.
type AnalysisError struct {
	Message string
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis error: %s", e.Message)
}

// ExecutionError reports that the server failed while executing the plan.
// Message carries the server diagnostic verbatim. Never retried, since the
// plan is presumed at fault.
type ExecutionError struct {
	Message string
	Code    string // Optional server-side error class.
}

func (e *ExecutionError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("execution error (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("execution error: %s", e.Message)
}

// MessageTooLargeError reports an inbound message exceeding the configured
// limit. Local guard, non-retryable.
type MessageTooLargeError struct {
	Size  uint64
	Limit uint64
}

func (e *MessageTooLargeError) Error() string {
	if e.Size == 0 {
		return fmt.Sprintf("message too large: exceeds limit of %d bytes", e.Limit)
	}
	return fmt.Sprintf("message too large: %d bytes exceeds limit of %d bytes", e.Size, e.Limit)
}

// Retryable reports whether the execution engine may retry after err.
// Only transport errors classified retryable qualify; every other kind is
// terminal on first occurrence.
func Retryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}
	return false
}

// RetryableCode reports whether a gRPC status code describes a transient
// connection-level condition worth a reattach attempt.
func RetryableCode(code codes.Code) bool {
	switch code {
	case codes.Unavailable, codes.Aborted, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}
