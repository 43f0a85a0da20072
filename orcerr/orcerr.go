// Package orcerr centralizes the error taxonomy used across the orchestration
// engine. Each failure mode is both a sentinel error (for errors.Is) and a
// constructor for a *Error that preserves a message and an optional cause
// (for errors.As and structured reporting), following the teacher engine's
// toolerrors.ToolError pattern.
package orcerr

import (
	"errors"
	"fmt"
)

// Code enumerates the well-known failure categories in the engine.
type Code string

const (
	CodeUnknownTool          Code = "unknown_tool"
	CodeInvalidArgs          Code = "invalid_args"
	CodeToolExecutionFailed  Code = "tool_execution_failed"
	CodeTimeout              Code = "timeout"
	CodeCancelled            Code = "cancelled"
	CodeCyclicPlan           Code = "cyclic_plan"
	CodeInvalidReference     Code = "invalid_reference"
	CodeUnresolvedDependency Code = "unresolved_dependency"
	CodeNoToolCalls          Code = "no_tool_calls"
	CodeSessionNotFound      Code = "session_not_found"
	CodeStoreFailure         Code = "store_failure"
	CodeUnstartablePlan      Code = "unstartable_plan"
)

// Error is a structured engine failure. It implements error, Unwrap (for
// errors.Is/As chains) and carries a Code so callers can branch on failure
// category without string matching.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// New constructs an *Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs an *Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error that chains an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" && e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause for errors.Is/As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is reports whether target is the sentinel for e's Code, allowing
// errors.Is(err, orcerr.ErrUnknownTool) to match a *Error{Code: CodeUnknownTool}
// without requiring identical pointers.
func (e *Error) Is(target error) bool {
	sentinel, ok := target.(*sentinelError)
	if !ok {
		return false
	}
	return e.Code == sentinel.code
}

// sentinelError is a lightweight error used purely as an errors.Is target.
type sentinelError struct{ code Code }

func (s *sentinelError) Error() string { return string(s.code) }

func sentinel(code Code) error { return &sentinelError{code: code} }

// Sentinel errors for errors.Is comparisons against any *Error of that Code.
var (
	ErrUnknownTool          = sentinel(CodeUnknownTool)
	ErrInvalidArgs          = sentinel(CodeInvalidArgs)
	ErrToolExecutionFailed  = sentinel(CodeToolExecutionFailed)
	ErrTimeout              = sentinel(CodeTimeout)
	ErrCancelled            = sentinel(CodeCancelled)
	ErrCyclicPlan           = sentinel(CodeCyclicPlan)
	ErrInvalidReference     = sentinel(CodeInvalidReference)
	ErrUnresolvedDependency = sentinel(CodeUnresolvedDependency)
	ErrNoToolCalls          = sentinel(CodeNoToolCalls)
	ErrSessionNotFound      = sentinel(CodeSessionNotFound)
	ErrStoreFailure         = sentinel(CodeStoreFailure)
	ErrUnstartablePlan      = sentinel(CodeUnstartablePlan)
)

// CodeOf returns the Code carried by err if it is (or wraps) an *Error,
// otherwise the empty Code.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
