package metrics

import (
	"time"
)

// Collector defines the interface for collecting ledger metrics.
// Implementations can export metrics to various backends.
type Collector interface {
	// Ledger state machines
	RecordTransition(kind, from, to string)
	RecordRejectedTransition(kind, reason string)
	RecordValidationFailure(kind, field, rule string)
	RecordRefundOutcome(status string)

	// Record stores
	RecordStoreOp(store, op string, success bool, duration time.Duration)
	RecordCacheLookup(store string, hit bool)
	RecordBloomSkip(store string)
	RecordCircuitState(store string, state CircuitState)

	// Event publisher
	RecordQueueDepth(publisher string, depth int)
	RecordEventDropped(publisher string)
	RecordEventDelivery(sink string, success bool, duration time.Duration)
}

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed means the circuit breaker is allowing requests through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the circuit breaker is blocking requests.
	CircuitOpen
	// CircuitHalfOpen means the circuit breaker is testing if the backend has recovered.
	CircuitHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// NoOpCollector discards everything. It is the default when metrics are not needed.
type NoOpCollector struct{}

func (NoOpCollector) RecordTransition(kind, from, to string) {}
func (NoOpCollector) RecordRejectedTransition(kind, reason string) {}
func (NoOpCollector) RecordValidationFailure(kind, field, rule string) {}
func (NoOpCollector) RecordRefundOutcome(status string) {}
func (NoOpCollector) RecordStoreOp(store, op string, success bool, duration time.Duration) {}
func (NoOpCollector) RecordCacheLookup(store string, hit bool) {}
func (NoOpCollector) RecordBloomSkip(store string) {}
func (NoOpCollector) RecordCircuitState(store string, state CircuitState) {}
func (NoOpCollector) RecordQueueDepth(publisher string, depth int) {}
func (NoOpCollector) RecordEventDropped(publisher string) {}
func (NoOpCollector) RecordEventDelivery(sink string, success bool, duration time.Duration) {}
