package model

import (
	"errors"
	"fmt"
)

// Error kinds. Every rejection wraps exactly one of them.
var (
	ErrInvariantViolation  = errors.New("invariant violation")
	ErrValidation          = errors.New("validation error")
	ErrPricing             = errors.New("pricing error")
	ErrStateConflict       = errors.New("state conflict")
	ErrGateway             = errors.New("gateway error")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotFound            = errors.New("not found")
)

// Error names the precondition that failed.
type Error struct {
	Kind   error
	Field  string
	Reason string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Reason)
}

func (e *Error) Unwrap() error { return e.Kind }

func InvariantViolation(field, reason string) error {
	return &Error{Kind: ErrInvariantViolation, Field: field, Reason: reason}
}

func ValidationError(field, reason string) error {
	return &Error{Kind: ErrValidation, Field: field, Reason: reason}
}

func PricingError(field, reason string) error {
	return &Error{Kind: ErrPricing, Field: field, Reason: reason}
}

func StateConflict(field, reason string) error {
	return &Error{Kind: ErrStateConflict, Field: field, Reason: reason}
}

func GatewayError(reason string) error {
	return &Error{Kind: ErrGateway, Reason: reason}
}

func InsufficientBalance(field, reason string) error {
	return &Error{Kind: ErrInsufficientBalance, Field: field, Reason: reason}
}

func NotFound(entity string, id any) error {
	return &Error{Kind: ErrNotFound, Field: entity, Reason: fmt.Sprintf("id %v does not exist", id)}
}

// KindName maps an error to the short name exposed to API clients.
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrInvariantViolation):
		return "invariant_violation"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrPricing):
		return "pricing_error"
	case errors.Is(err, ErrStateConflict):
		return "state_conflict"
	case errors.Is(err, ErrGateway):
		return "gateway_error"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	}
	return "internal"
}
