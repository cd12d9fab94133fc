package shared

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
)

// Event delivery errors. These are sentinel values so callers can branch
// with errors.Is regardless of how many times the error was wrapped.
var (
	// ErrUnknownEventType means a stored or received message's (name, version)
	// has no registered mapping. The message must be left unprocessed, never
	// deleted.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrSerialization means a payload could not be (de)serialized against its
	// registered type. Retried like ErrUnknownEventType but logged distinctly:
	// it indicates a schema-compatibility bug, not a missing registration.
	ErrSerialization = errors.New("event serialization failed")

	// ErrHandlerFailure wraps an error returned by an event handler.
	ErrHandlerFailure = errors.New("event handler failed")
)

// ConfigurationError is a fatal startup-time misconfiguration of the event
// registry, e.g. a payload type without a (name, version) identity or two
// types claiming the same identity. It must stop the process; running with
// a broken registry silently corrupts delivery.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("event configuration error: %s", e.Reason)
}

// NewConfigurationError creates a ConfigurationError with a formatted reason.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}
