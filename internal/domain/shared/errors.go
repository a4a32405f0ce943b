package shared

import "errors"

// DomainError represents a business-rule rejection that callers may surface to users
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Unwrap exposes the sentinel the error was built from, if any
func (e *DomainError) Unwrap() error {
	return e.err
}

// Is matches two domain errors by code
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy carrying structured details (e.g. the list of short items)
func (e *DomainError) WithDetails(details any) *DomainError {
	cp := *e
	cp.Details = details
	return &cp
}

// Wrap returns a domain error with the given code and message that unwraps to err
func Wrap(err error, code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, err: err}
}

// Error codes
const (
	CodeNotFound            = "NOT_FOUND"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeInvalidState        = "INVALID_STATE"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeInsufficientStock   = "INSUFFICIENT_STOCK"
	CodeAlreadyPaid         = "ALREADY_PAID"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeOrderLocked         = "ORDER_LOCKED"
)

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidInput        = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrInsufficientStock   = NewDomainError(CodeInsufficientStock, "Insufficient stock available")
)
