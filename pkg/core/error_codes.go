package core

import (
	"errors"
	"strconv"
)

// ErrorCode is a stable, machine-readable identifier for a failure. Validation
// errors carry one of the constants below; an exchange error answers to its
// ErrorType name (e.g. "RATE_LIMIT") and to its Binance code (e.g. "-1003").
type ErrorCode string

// Validation error codes.
const (
	// ErrCodeInvalidFormat indicates an API key that does not match the key format.
	ErrCodeInvalidFormat ErrorCode = "INVALID_FORMAT"
	// ErrCodeInvalidEnum indicates a value outside its allowed set.
	ErrCodeInvalidEnum ErrorCode = "INVALID_ENUM"
	// ErrCodeMissingArgument indicates absent or non-object call data.
	ErrCodeMissingArgument ErrorCode = "MISSING_ARGUMENT"
	// ErrCodeInvalidArgument indicates a malformed argument.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeRequiredFieldMissing indicates a required parameter absent from call data.
	ErrCodeRequiredFieldMissing ErrorCode = "REQUIRED_FIELD_MISSING"

	// Credential errors
	ErrCodeAPIKeyRequired    ErrorCode = "API_KEY_REQUIRED"
	ErrCodeSecretKeyRequired ErrorCode = "SECRET_KEY_REQUIRED"

	// Query builder errors
	ErrCodeURLRequired ErrorCode = "URL_REQUIRED"
	ErrCodeDataType    ErrorCode = "DATA_TYPE_ERROR"

	// Socket registry errors
	ErrCodePathRequired     ErrorCode = "PATH_REQUIRED"
	ErrCodeCallbackRequired ErrorCode = "CALLBACK_REQUIRED"
)

// IsErrorCode reports whether err is a *ValidationError carrying code or an
// *ExchangeError whose type name or Binance code equals code.
func IsErrorCode(err error, code ErrorCode) bool {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Code == code
	}
	var eErr *ExchangeError
	if errors.As(err, &eErr) {
		if ErrorCode(eErr.Type.String()) == code {
			return true
		}
		return eErr.Code != 0 && ErrorCode(strconv.Itoa(eErr.Code)) == code
	}
	return false
}

// IsExchangeCode reports whether err is an *ExchangeError with the given
// Binance error code.
func IsExchangeCode(err error, code int) bool {
	var eErr *ExchangeError
	return errors.As(err, &eErr) && eErr.Code == code
}
