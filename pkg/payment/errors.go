package payment

import (
	"errors"
	"fmt"
)

// Ledger error taxonomy. Every failure returned by the ledger, the validation
// engine or the service matches exactly one of these with errors.Is.
var (
	// ErrValidation is returned when a request is malformed. The concrete error
	// is a *validation.Error carrying field-level detail.
	ErrValidation = errors.New("ledger: validation failed")

	// ErrInvalidTransition is returned when a state machine rule is violated
	ErrInvalidTransition = errors.New("ledger: invalid transition")

	// ErrPaymentNotSettled is returned when a refund targets a payment that is not settled
	ErrPaymentNotSettled = errors.New("ledger: payment not settled")

	// ErrRefundExceedsBalance is returned when completed refunds would exceed the payment amount
	ErrRefundExceedsBalance = errors.New("ledger: refund exceeds available amount")

	// ErrNotFound is returned for unknown identifiers
	ErrNotFound = errors.New("ledger: not found")
)

// TransitionError names the current and requested states of a rejected transition.
type TransitionError struct {
	Kind Kind
	ID   string
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("ledger: %s %s cannot move from %s to %s", e.Kind, e.ID, e.From, e.To)
}

// Unwrap lets errors.Is match ErrInvalidTransition.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ClassifyError returns a short label for err, suitable for metrics and logs.
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrPaymentNotSettled):
		return "payment_not_settled"
	case errors.Is(err, ErrRefundExceedsBalance):
		return "refund_exceeds_balance"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
