// Package validate checks caller-supplied keys, enum values and required
// parameters before any request is built. Every failure is a
// *core.ValidationError.
package validate

import (
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"mbxkit/pkg/core"
)

// keyFormat is the shape of Binance API and secret keys.
const keyFormat = "len=64,alphanum"

var validate = validator.New()

// CheckKey returns key unchanged when it is well formed. An empty key means
// "not provided" and yields ("", nil).
func CheckKey(key string) (string, error) {
	if key == "" {
		return "", nil
	}
	if err := validate.Var(key, keyFormat); err != nil {
		return "", core.NewValidationError(core.ErrCodeInvalidFormat, "key", "Bad key format %s", key)
	}
	return key, nil
}

// CheckEnum fails when value is not one of allowed.
func CheckEnum(allowed []string, value, name string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	return core.NewValidationError(core.ErrCodeInvalidEnum, name,
		"%s is not valid, possible values are %s", name, strings.Join(allowed, ", "))
}

// CheckParams verifies that data is a parameter container holding every
// field in required. Fields are checked in the order given and the first
// missing one is reported. A nil required list is not an error.
func CheckParams(data any, required []string) error {
	values, ok := core.ToValues(data)
	if !ok {
		return core.NewValidationError(core.ErrCodeMissingArgument, "data",
			"data args is required and should be an object")
	}
	if slices.Contains(required, "") {
		return core.NewValidationError(core.ErrCodeInvalidArgument, "required",
			"required args is required and should be an array of names")
	}
	for _, field := range required {
		if !values.Has(field) {
			return core.NewValidationError(core.ErrCodeRequiredFieldMissing, field,
				"%s parameters is required for this method", field)
		}
	}
	return nil
}
