package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of an exchange error.
type ErrorType int

// Error type constants categorize errors returned by the exchange.
const (
	// ErrorTypeUnknown indicates an unclassified error.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeNetwork indicates a network connectivity issue.
	ErrorTypeNetwork
	// ErrorTypeRateLimit indicates rate limit was exceeded.
	ErrorTypeRateLimit
	// ErrorTypeAuthentication indicates invalid or expired credentials or a bad signature.
	ErrorTypeAuthentication
	// ErrorTypeBadRequest indicates invalid request parameters.
	ErrorTypeBadRequest
	// ErrorTypeNotFound indicates the requested resource does not exist.
	ErrorTypeNotFound
	// ErrorTypeServerError indicates a server-side error.
	ErrorTypeServerError
	// ErrorTypeInvalidOrder indicates the order was rejected by the matching engine.
	ErrorTypeInvalidOrder
)

// String returns the string representation of the error type.
func (t ErrorType) String() string {
	return [...]string{
		"UNKNOWN",
		"NETWORK",
		"RATE_LIMIT",
		"AUTHENTICATION",
		"BAD_REQUEST",
		"NOT_FOUND",
		"SERVER_ERROR",
		"INVALID_ORDER",
	}[t]
}

// Sentinel errors for every validation failure. A *ValidationError unwraps to
// the sentinel matching its code, so errors.Is works on either form.
var (
	ErrInvalidFormat        = errors.New("invalid format")
	ErrInvalidEnum          = errors.New("invalid enum value")
	ErrMissingArgument      = errors.New("missing argument")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrRequiredFieldMissing = errors.New("required field missing")
	ErrAPIKeyRequired       = errors.New("api key required")
	ErrSecretKeyRequired    = errors.New("secret key required")
	ErrURLRequired          = errors.New("url required")
	ErrDataType             = errors.New("data type error")
	ErrPathRequired         = errors.New("path required")
	ErrCallbackRequired     = errors.New("callback required")

	// ErrClientClosed is returned when attempting to use a closed client.
	ErrClientClosed = errors.New("client is closed")
	// ErrCircuitBreakerOpen is returned when the circuit breaker rejects a request.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
)

var sentinels = map[ErrorCode]error{
	ErrCodeInvalidFormat:        ErrInvalidFormat,
	ErrCodeInvalidEnum:          ErrInvalidEnum,
	ErrCodeMissingArgument:      ErrMissingArgument,
	ErrCodeInvalidArgument:      ErrInvalidArgument,
	ErrCodeRequiredFieldMissing: ErrRequiredFieldMissing,
	ErrCodeAPIKeyRequired:       ErrAPIKeyRequired,
	ErrCodeSecretKeyRequired:    ErrSecretKeyRequired,
	ErrCodeURLRequired:          ErrURLRequired,
	ErrCodeDataType:             ErrDataType,
	ErrCodePathRequired:         ErrPathRequired,
	ErrCodeCallbackRequired:     ErrCallbackRequired,
}

// ValidationError is returned synchronously when caller input or client
// state does not allow an operation to proceed.
type ValidationError struct {
	// Code identifies the failure kind.
	Code ErrorCode `json:"code"`
	// Param names the offending parameter, if any.
	Param string `json:"param,omitempty"`
	// Message is the human-readable description.
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

// Unwrap returns the sentinel error for the validation code.
func (e *ValidationError) Unwrap() error {
	return sentinels[e.Code]
}

// NewValidationError creates a ValidationError with a formatted message.
func NewValidationError(code ErrorCode, param, format string, args ...any) *ValidationError {
	return &ValidationError{
		Code:    code,
		Param:   param,
		Message: fmt.Sprintf(format, args...),
	}
}

// Common validation errors with fixed messages.
func APIKeyRequired() *ValidationError {
	return NewValidationError(ErrCodeAPIKeyRequired, "apiKey", "API key is required for this method")
}

func SecretKeyRequired() *ValidationError {
	return NewValidationError(ErrCodeSecretKeyRequired, "secretKey", "Secret key is required for this method")
}

// ExchangeError represents a structured error returned from the exchange.
type ExchangeError struct {
	// Type categorizes the error for programmatic handling.
	Type ErrorType `json:"type"`
	// StatusCode is the HTTP status code from the response.
	StatusCode int `json:"status_code"`
	// Code is the Binance error code, zero when the body carried none.
	Code int `json:"code"`
	// Message is the human-readable error description.
	Message string `json:"message"`
	// Timestamp is when the error occurred.
	Timestamp time.Time `json:"timestamp"`
}

// Error returns a formatted string with error type, status code, and message.
func (e *ExchangeError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("binance: %s (%d/%d): %s", e.Type, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("binance: %s (%d): %s", e.Type, e.StatusCode, e.Message)
}

// NewExchangeError creates a new ExchangeError. The timestamp is set to now.
func NewExchangeError(errorType ErrorType, statusCode, code int, message string) *ExchangeError {
	return &ExchangeError{
		Type:       errorType,
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Timestamp:  time.Now(),
	}
}

// IsRateLimitError returns true if the error is a rate limit violation.
// Rate limit errors should be retried after a delay.
func IsRateLimitError(err error) bool {
	var e *ExchangeError
	return errors.As(err, &e) && e.Type == ErrorTypeRateLimit
}

// IsAuthenticationError returns true if the error is an authentication failure.
func IsAuthenticationError(err error) bool {
	var e *ExchangeError
	return errors.As(err, &e) && e.Type == ErrorTypeAuthentication
}

// IsValidationError returns true if the error was raised before any request was sent.
func IsValidationError(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}
