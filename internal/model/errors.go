package model

import (
	"errors"
	"fmt"
)

// Business-rule violations. They are never retried and always reach the caller
// wrapped in a *ValidationError.
var (
	ErrNonPositiveAmount = errors.New("non-positive amount")
	ErrOverpayment       = errors.New("overpayment")
	ErrDuplicateID       = errors.New("duplicate id")
	ErrUnknownReference  = errors.New("unknown reference")
	ErrRequired          = errors.New("required")
	ErrInvalidMethod     = errors.New("invalid payment method")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvoiceClosed     = errors.New("invoice already reconciled")
	ErrSubCentAmount     = errors.New("amount has more than two decimal places")
)

// ValidationError reports which field broke a business rule.
type ValidationError struct {
	Field string
	Value any
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %v (value: %v)", e.Field, e.Err, e.Value)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func NewValidationError(field string, value any, err error) *ValidationError {
	return &ValidationError{
		Field: field,
		Value: value,
		Err:   err,
	}
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
