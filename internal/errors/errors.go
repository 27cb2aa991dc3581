// Package errors provides structured error handling for portsweep operations.
// It defines error codes and a coded error type that carries the failing
// target and the underlying cause, so callers can branch on the code while
// still unwrapping to the original error.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeTimeout       ErrorCode = "TIMEOUT"

	// Input specification errors.
	CodeInvalidHostSpec ErrorCode = "INVALID_HOST_SPEC"
	CodeInvalidPortSpec ErrorCode = "INVALID_PORT_SPEC"
	CodeTooManyHosts    ErrorCode = "TOO_MANY_HOSTS"

	// Scan execution errors.
	CodeProbeError    ErrorCode = "PROBE_ERROR"
	CodeWorkerFailure ErrorCode = "WORKER_FAILURE"
	CodeScanNotFound  ErrorCode = "SCAN_NOT_FOUND"
	CodeTooManyScans  ErrorCode = "TOO_MANY_SCANS"

	// Service errors.
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"
)

// ScanError represents an error that occurred while preparing or running a scan.
type ScanError struct {
	Code    ErrorCode
	Message string
	Target  string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Target != "" {
		msg = fmt.Sprintf("[%s] %s (target: %s)", e.Code, e.Message, e.Target)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a ScanError carrying the same code.
func (e *ScanError) Is(target error) bool {
	var other *ScanError
	if !stderrors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// WithContext adds context information to the error.
func (e *ScanError) WithContext(key string, value interface{}) *ScanError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewScanError creates a new scan error with the specified code and message.
func NewScanError(code ErrorCode, message string) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// NewScanErrorWithTarget creates a scan error for a specific target.
func NewScanErrorWithTarget(code ErrorCode, message, target string) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Target:  target,
		Context: make(map[string]interface{}),
	}
}

// WrapScanError wraps an existing error as a scan error.
func WrapScanError(code ErrorCode, message string, err error) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// WrapScanErrorWithTarget wraps an error with target information.
func WrapScanErrorWithTarget(code ErrorCode, message, target string, err error) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Target:  target,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// Sentinel values usable with errors.Is.
var (
	ErrInvalidHostSpec = NewScanError(CodeInvalidHostSpec, "no valid IPv4 addresses in host specification")
	ErrInvalidPortSpec = NewScanError(CodeInvalidPortSpec, "no valid ports in port specification")
	ErrScanNotFound    = NewScanError(CodeScanNotFound, "scan not found")
)

// GetCode extracts the error code from an error chain, or CodeUnknown.
func GetCode(err error) ErrorCode {
	var scanErr *ScanError
	if stderrors.As(err, &scanErr) {
		return scanErr.Code
	}
	return CodeUnknown
}

// IsCode reports whether any ScanError in the chain carries code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && GetCode(err) == code
}

// IsUserError reports whether the error was caused by bad input rather than
// by the scanner itself.
func IsUserError(err error) bool {
	switch GetCode(err) {
	case CodeValidation, CodeInvalidHostSpec, CodeInvalidPortSpec, CodeTooManyHosts:
		return true
	default:
		return false
	}
}

// Is and As re-export the standard library helpers so callers need a single import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return stderrors.As(err, target) }

// New returns a plain error, mirroring the standard library.
func New(text string) error { return stderrors.New(text) }
