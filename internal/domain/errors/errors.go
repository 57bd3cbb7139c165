package errors

import (
	"errors"
	"fmt"
)

var (
	// Transaction errors
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrDuplicateReference     = errors.New("duplicate transaction reference")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrTransactionBusy        = errors.New("transaction is being updated")

	// Gateway errors
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// Authentication errors
	ErrInvalidSignature = errors.New("invalid signature")
	ErrUnauthorized     = errors.New("unauthorized")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// GatewayError is returned when the payment provider could not complete a call.
// Message is safe to show to API callers: it is either the provider's own message
// or a generic one for the operation.
type GatewayError struct {
	Op         string
	Message    string
	StatusCode int
	Network    bool
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("gateway %s: %s", e.Op, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the same call may succeed.
func (e *GatewayError) Temporary() bool {
	return e.Network || e.StatusCode >= 500
}

// NewGatewayError creates a gateway error for a provider-reported failure.
func NewGatewayError(op, message string, statusCode int) *GatewayError {
	return &GatewayError{
		Op:         op,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewNetworkGatewayError creates a gateway error for a transport failure or timeout.
func NewNetworkGatewayError(op, message string, err error) *GatewayError {
	return &GatewayError{
		Op:      op,
		Message: message,
		Network: true,
		Err:     err,
	}
}
