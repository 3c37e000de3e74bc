package helpers

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type MCPError struct {
	Message string
	Cause   error
}

func (e *MCPError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *MCPError) Unwrap() error {
	return e.Cause
}

// -----------------------------------------------------------------------------

// ConnectionError: an adapter cannot establish or maintain a session.
// Retried lazily on the next call, never proactively.
type ConnectionError struct{ MCPError }

// CapabilityError: the requested operation is unsupported by a provider or
// broker. Used for pre-filtering, never silently attempted.
type CapabilityError struct{ MCPError }

// NotFoundError: unknown broker, provider or subscription id.
type NotFoundError struct{ MCPError }

// UpstreamError: a remote API returned a non-success status.
type UpstreamError struct {
	MCPError
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.MCPError.Error(), e.StatusCode)
}

// -----------------------------------------------------------------------------
// Constructors
// -----------------------------------------------------------------------------

func NewConnectionError(message string, cause error) *ConnectionError {
	return &ConnectionError{MCPError{Message: message, Cause: cause}}
}

func NewCapabilityError(format string, args ...any) *CapabilityError {
	return &CapabilityError{MCPError{Message: fmt.Sprintf(format, args...)}}
}

func NewNotFoundError(format string, args ...any) *NotFoundError {
	return &NotFoundError{MCPError{Message: fmt.Sprintf(format, args...)}}
}

func NewUpstreamError(message string, statusCode int, body string) *UpstreamError {
	return &UpstreamError{
		MCPError:   MCPError{Message: message},
		StatusCode: statusCode,
		Body:       body,
	}
}

// -----------------------------------------------------------------------------
// Discrimination helpers
// -----------------------------------------------------------------------------

func IsConnectionError(err error) bool {
	var target *ConnectionError
	return errors.As(err, &target)
}

func IsCapabilityError(err error) bool {
	var target *CapabilityError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsUpstreamError(err error) bool {
	var target *UpstreamError
	return errors.As(err, &target)
}
