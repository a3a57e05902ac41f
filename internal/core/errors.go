package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidDay        = errors.New("invalid day")
	ErrInvalidMonth      = errors.New("invalid month")
	ErrEmptyDescription  = errors.New("empty description")
	ErrEmptyName         = errors.New("empty name")
	ErrEmptyCode         = errors.New("empty member code")
	ErrInvalidCategory   = errors.New("invalid category")
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrAlreadyConfirmed  = errors.New("transaction already confirmed")
	ErrMemberCodeTaken   = errors.New("member code already exists")
	ErrMissingExternalID = errors.New("electronic transaction requires an external id")
	ErrUpstreamFetch     = errors.New("payment gateway lookup failed")
	ErrNotConfigured     = errors.New("payment processing is not configured")
)

// ValidationError reports a missing or malformed field in an operator action
// or report request. errors.Is(err, ErrValidation) matches any of them.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Invalid wraps a field problem into a ValidationError.
func Invalid(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Reason: err.Error(), Err: err}
}
