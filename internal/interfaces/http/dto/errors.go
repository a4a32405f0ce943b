package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeUpstream is used when the supplier or payment gateway is unreachable
	ErrCodeUpstream = "ERR_UPSTREAM_UNAVAILABLE"
)

// Validation error codes
const (
	ErrCodeValidation = "ERR_VALIDATION"
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for input rejected by domain rules
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodePayloadTooLarge is used when the body exceeds the configured limit
	ErrCodePayloadTooLarge = "ERR_PAYLOAD_TOO_LARGE"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeInvalidState        = "ERR_INVALID_STATE"
	ErrCodeInsufficientStock   = "ERR_INSUFFICIENT_STOCK"
)

// Payment error codes
const (
	ErrCodeAlreadyPaid       = "ERR_ALREADY_PAID"
	ErrCodeOrderLocked       = "ERR_ORDER_LOCKED"
	ErrCodeCardInvalid       = "ERR_CARD_INVALID"
	ErrCodeCardDeclined      = "ERR_CARD_DECLINED"
	ErrCodeUnsupportedMethod = "ERR_UNSUPPORTED_PAYMENT_METHOD"
	ErrCodePaymentFailed     = "ERR_PAYMENT_FAILED"
	ErrCodeInvalidSignature  = "ERR_INVALID_SIGNATURE"
)

// Rate limiting error codes
const (
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,
	ErrCodeUpstream: http.StatusServiceUnavailable,

	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodePayloadTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeInvalidState:        http.StatusConflict,
	ErrCodeInsufficientStock:   http.StatusConflict,

	ErrCodeAlreadyPaid:       http.StatusConflict,
	ErrCodeOrderLocked:       http.StatusConflict,
	ErrCodeCardInvalid:       http.StatusUnprocessableEntity,
	ErrCodeCardDeclined:      http.StatusUnprocessableEntity,
	ErrCodeUnsupportedMethod: http.StatusBadRequest,
	ErrCodePaymentFailed:     http.StatusUnprocessableEntity,
	ErrCodeInvalidSignature:  http.StatusBadRequest,

	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":                  ErrCodeNotFound,
	"INVALID_INPUT":              ErrCodeInvalidInput,
	"INVALID_STATE":              ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT":       ErrCodeConcurrencyConflict,
	"INSUFFICIENT_STOCK":         ErrCodeInsufficientStock,
	"ALREADY_PAID":               ErrCodeAlreadyPaid,
	"ORDER_LOCKED":               ErrCodeOrderLocked,
	"UPSTREAM_UNAVAILABLE":       ErrCodeUpstream,
	"INVALID_CARD_NUMBER":        ErrCodeCardInvalid,
	"INVALID_CARD_EXPIRY":        ErrCodeCardInvalid,
	"INVALID_CVV":                ErrCodeCardInvalid,
	"CARD_DECLINED":              ErrCodeCardDeclined,
	"INSUFFICIENT_LIMIT":         ErrCodeCardDeclined,
	"UNSUPPORTED_PAYMENT_METHOD": ErrCodeUnsupportedMethod,
	"PAYMENT_FAILED":             ErrCodePaymentFailed,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Unknown codes are returned as-is.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
