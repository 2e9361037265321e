// Package engine provides the core types and interfaces for the LeadForge
// outreach engine. It models the sales pipeline stage graph, drip campaign
// definitions, per-prospect memberships, and the scheduler that turns timed
// campaign steps into outreach sends.
package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an error for retry and recovery logic.
type ErrorClass string

const (
	// ErrorClassTransient indicates a temporary failure that may succeed on retry.
	// Examples: network timeouts, temporary sender unavailability.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassThrottled indicates rate limiting by an outreach transport.
	// Should be retried with backoff.
	ErrorClassThrottled ErrorClass = "throttled"

	// ErrorClassConflict indicates a state conflict.
	// Examples: concurrent modifications, duplicate membership inserts.
	ErrorClassConflict ErrorClass = "conflict"

	// ErrorClassPermanent indicates a non-recoverable error.
	// Examples: invalid stage transition, membership not found.
	ErrorClassPermanent ErrorClass = "permanent"
)

// OutreachError represents a classified error with context.
type OutreachError struct {
	// Class is the error classification for retry logic.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Resource is the entity ID that caused the error, if applicable.
	Resource string `json:"resource,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *OutreachError) Error() string {
	if e.Resource != "" && e.Operation != "" {
		return fmt.Sprintf("[%s] %s (resource=%s, operation=%s): %s",
			e.Class, e.Message, e.Resource, e.Operation, e.unwrapMessage())
	}
	if e.Resource != "" {
		return fmt.Sprintf("[%s] %s (resource=%s): %s",
			e.Class, e.Message, e.Resource, e.unwrapMessage())
	}
	return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, e.unwrapMessage())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *OutreachError) Unwrap() error {
	return e.Err
}

func (e *OutreachError) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Is implements error equality checking for errors.Is.
func (e *OutreachError) Is(target error) bool {
	t, ok := target.(*OutreachError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *OutreachError {
	return &OutreachError{
		Class:   ErrorClassTransient,
		Message: message,
		Err:     err,
	}
}

// NewThrottledError creates a new throttled error.
func NewThrottledError(message string, err error) *OutreachError {
	return &OutreachError{
		Class:   ErrorClassThrottled,
		Message: message,
		Err:     err,
	}
}

// NewConflictError creates a new conflict error.
func NewConflictError(message string, err error) *OutreachError {
	return &OutreachError{
		Class:   ErrorClassConflict,
		Message: message,
		Err:     err,
	}
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *OutreachError {
	return &OutreachError{
		Class:   ErrorClassPermanent,
		Message: message,
		Err:     err,
	}
}

// WithResource adds resource context to an error.
func (e *OutreachError) WithResource(resourceID string) *OutreachError {
	e.Resource = resourceID
	return e
}

// WithOperation adds operation context to an error.
func (e *OutreachError) WithOperation(operation string) *OutreachError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *OutreachError) WithCode(code string) *OutreachError {
	e.Code = code
	return e
}

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	var e *OutreachError
	if errors.As(err, &e) {
		return e.Class == ErrorClassTransient
	}
	return false
}

// IsThrottled returns true if the error is classified as throttled.
func IsThrottled(err error) bool {
	var e *OutreachError
	if errors.As(err, &e) {
		return e.Class == ErrorClassThrottled
	}
	return false
}

// IsConflict returns true if the error is classified as a conflict.
func IsConflict(err error) bool {
	var e *OutreachError
	if errors.As(err, &e) {
		return e.Class == ErrorClassConflict
	}
	return false
}

// IsPermanent returns true if the error is classified as permanent.
func IsPermanent(err error) bool {
	var e *OutreachError
	if errors.As(err, &e) {
		return e.Class == ErrorClassPermanent
	}
	return false
}

// IsRetryable returns true if the error can be retried.
// Transient, throttled, and conflict errors are retryable.
func IsRetryable(err error) bool {
	return IsTransient(err) || IsThrottled(err) || IsConflict(err)
}

// HasCode returns true if the error carries the given code.
func HasCode(err error, code string) bool {
	var e *OutreachError
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// ClassOf returns the classification of err. Unclassified errors are
// treated as permanent.
func ClassOf(err error) ErrorClass {
	var e *OutreachError
	if errors.As(err, &e) {
		return e.Class
	}
	return ErrorClassPermanent
}

// CodeOf returns the code carried by err, or empty for unclassified errors.
func CodeOf(err error) string {
	var e *OutreachError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Common error codes.
const (
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeInvalidTransition   = "INVALID_TRANSITION"
	ErrCodeInvalidState        = "INVALID_CAMPAIGN_STATE"
	ErrCodeDuplicateMembership = "DUPLICATE_MEMBERSHIP"
	ErrCodeMembershipNotFound  = "MEMBERSHIP_NOT_FOUND"
	ErrCodeInvalidAdvancement  = "INVALID_ADVANCEMENT"
	ErrCodeSendFailed          = "SEND_FAILED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)
