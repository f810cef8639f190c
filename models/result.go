package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the core can surface. Each operation
// maps to exactly one kind plus a human-readable detail string.
type ErrorKind string

const (
	// KindNotFound - host, container, stack, or service unknown
	KindNotFound ErrorKind = "not_found"

	// KindConflict - duplicate Compose project name on a host
	KindConflict ErrorKind = "conflict"

	// KindHostUnreachable - transport-level connect or auth failure
	KindHostUnreachable ErrorKind = "host_unreachable"

	// KindRemoteCommand - the remote process ran but exited nonzero
	KindRemoteCommand ErrorKind = "remote_command_error"

	// KindTimeout - the configured deadline elapsed before completion
	KindTimeout ErrorKind = "timeout"

	// KindCancelled - the caller's context was cancelled mid-call
	KindCancelled ErrorKind = "cancelled"

	// KindInvalidDefinition - malformed Compose content, detected before dispatch
	KindInvalidDefinition ErrorKind = "invalid_definition"
)

// Error is the typed failure returned by core operations. It carries the
// ErrorKind taxonomy plus optional remote process detail (exit code, stderr).
type Error struct {
	Kind     ErrorKind `json:"kind"`
	Detail   string    `json:"detail"`
	ExitCode int       `json:"exitCode,omitempty"`
	Stderr   string    `json:"stderr,omitempty"`
	cause    error
}

func (e *Error) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Detail, e.Stderr)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.cause }

// NewError creates a typed error with a formatted detail message.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// WrapError creates a typed error preserving the underlying cause.
func WrapError(kind ErrorKind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), cause: cause}
}

// RemoteCommandError creates a KindRemoteCommand error carrying the exit
// code and the full stderr text for operator diagnosis.
func RemoteCommandError(exitCode int, stderr, detail string) *Error {
	return &Error{Kind: KindRemoteCommand, Detail: detail, ExitCode: exitCode, Stderr: stderr}
}

// KindOf extracts the ErrorKind from an error chain. Untyped errors
// classify as KindHostUnreachable since they originate below the executors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindHostUnreachable
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// OperationResult is the uniform outcome envelope returned by every core
// operation. It is produced per call and never persisted.
type OperationResult struct {
	// Success is false when ErrorKind is set
	Success bool `json:"success"`

	// Operation is the logical operation kind (list_containers, stack_up, ...)
	Operation string `json:"operation"`

	// Payload is the structured result (container list, status, ...)
	Payload interface{} `json:"payload,omitempty"`

	// ErrorKind classifies the failure when Success is false
	ErrorKind ErrorKind `json:"errorKind,omitempty"`

	// Detail is the human-readable failure detail
	Detail string `json:"detail,omitempty"`
}

// OKResult builds a successful OperationResult.
func OKResult(operation string, payload interface{}) *OperationResult {
	return &OperationResult{Success: true, Operation: operation, Payload: payload}
}

// FailResult builds a failed OperationResult from a typed or untyped error.
func FailResult(operation string, err error) *OperationResult {
	res := &OperationResult{Success: false, Operation: operation, ErrorKind: KindOf(err)}
	var e *Error
	if errors.As(err, &e) {
		res.Detail = e.Detail
		if e.Stderr != "" {
			res.Detail = res.Detail + ": " + e.Stderr
		}
	} else if err != nil {
		res.Detail = err.Error()
	}
	return res
}
