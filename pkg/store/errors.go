package store

import (
	"errors"
	"fmt"
	"strings"

	"payment-ledger/pkg/payment"
)

// Store operation errors.
var (
	// ErrInvalidRecord is returned when a record has no id or a kind/body mismatch
	ErrInvalidRecord = errors.New("store: invalid record")

	// ErrUnavailable is returned when a backend is temporarily unreachable
	ErrUnavailable = errors.New("store: backend unavailable")

	// ErrTimeout is returned when a store operation exceeds its deadline
	ErrTimeout = errors.New("store: operation timeout")

	// ErrCircuitOpen is returned while the circuit breaker rejects calls
	ErrCircuitOpen = errors.New("store: circuit breaker open")
)

// NotFound wraps payment.ErrNotFound with the missing id.
func NotFound(id string) error {
	return fmt.Errorf("store: record %q: %w", id, payment.ErrNotFound)
}

// ClassifyError returns a label for store failures, used by metrics.
func ClassifyError(err error) string {
	if err == nil {
		return "none"
	}

	switch {
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_breaker_open"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, payment.ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrInvalidRecord):
		return "invalid_record"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "connection", "connect", "dial"):
		return "connection"
	case containsAny(msg, "marshal", "unmarshal", "encode", "decode"):
		return "serialization"
	case containsAny(msg, "redis", "sql", "database"):
		return "backend"
	default:
		return "other"
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// WrapError adds the store name and operation to err.
func WrapError(err error, name, op string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("store %s %s: %w", name, op, err)
}
