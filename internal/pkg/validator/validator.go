// Package validator wraps go-playground/validator with the client's custom rules and a
// standardized multi-error format.
//
// Besides the built-in tags it understands:
//   - tol_address: a 50 character hexadecimal Tolar address (no 0x prefix);
//   - hexdata: an optional hexadecimal payload, with or without the 0x prefix.
package validator

import (
	"errors"
	"fmt"
	"regexp"

	gvalidator "github.com/go-playground/validator/v10"
)

// ErrValidationFailed is returned as the first error in a multi-error chain when validation fails.
var ErrValidationFailed = errors.New("struct validation failed")

// validator is a singleton instance of the go-playground validator,
// initialized automatically on package load.
var validator *gvalidator.Validate

// errStringFormat defines the template used to describe individual validation errors.
//
// Example: "'ReceiverAddress': value '54ab' does not meet the requirements for the 'tol_address' validation"
const errStringFormat = "'%s': value '%v' does not meet the requirements for the '%s' validation"

var (
	addressPattern = regexp.MustCompile(`^[0-9a-fA-F]{50}$`)
	hexDataPattern = regexp.MustCompile(`^(0[xX])?([0-9a-fA-F]{2})*$`)
)

func init() {
	validator = gvalidator.New(gvalidator.WithRequiredStructEnabled())

	validator.RegisterValidation("tol_address", func(fl gvalidator.FieldLevel) bool {
		return addressPattern.MatchString(fl.Field().String())
	})
	validator.RegisterValidation("hexdata", func(fl gvalidator.FieldLevel) bool {
		return hexDataPattern.MatchString(fl.Field().String())
	})
}

// formatError transforms a raw validator error into a human-readable multi-error chain
// rooted at ErrValidationFailed. Other errors are returned unchanged.
func formatError(err error) error {
	var validationErrors gvalidator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	errs := []error{ErrValidationFailed}
	for _, validationErr := range validationErrors {
		err := fmt.Errorf(errStringFormat,
			validationErr.Field(),
			validationErr.Value(),
			validationErr.Tag(),
		)

		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Validate checks if the given struct satisfies its validation tags.
//
// It returns nil if all fields pass validation. Otherwise, it returns a combined error that includes
// ErrValidationFailed and one formatted message for each field that failed validation.
func Validate(v any) error {
	if err := validator.Struct(v); err != nil {
		return formatError(err)
	}

	return nil
}
