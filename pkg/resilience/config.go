package resilience

import (
	"time"
)

// Config configures resilience features for a record store.
type Config struct {
	// Timeout bounds each store operation. Zero disables it.
	Timeout time.Duration

	// CircuitBreaker configures the circuit breaker behavior
	CircuitBreaker CircuitBreakerConfig
}

// CircuitBreakerConfig configures circuit breaker behavior.
type CircuitBreakerConfig struct {
	// MaxRequests is the maximum number of requests allowed to pass through
	// when the CircuitBreaker is half-open.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state after which the
	// internal counts are cleared. If Interval is 0, it never clears.
	Interval time.Duration

	// Timeout is the period of the open state after which the state becomes half-open.
	Timeout time.Duration

	// ReadyToTrip is called with a copy of Counts whenever a request fails.
	// If nil, the breaker trips after ConsecutiveFailures failures in a row.
	ReadyToTrip func(counts Counts) bool

	// ConsecutiveFailures is the trip threshold used when ReadyToTrip is nil
	ConsecutiveFailures uint32
}

// Counts holds the numbers of requests and their successes/failures.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// DefaultConfig returns the defaults used for the primary record store.
func DefaultConfig() Config {
	return Config{
		Timeout: 2 * time.Second,
		CircuitBreaker: CircuitBreakerConfig{
			MaxRequests:         1,
			Interval:            60 * time.Second,
			Timeout:             10 * time.Second,
			ConsecutiveFailures: 5,
		},
	}
}

// WithTimeout returns a copy of the config with the specified timeout.
func (c Config) WithTimeout(timeout time.Duration) Config {
	c.Timeout = timeout
	return c
}

// WithCircuitBreakerTimeout returns a copy of the config with the specified open-state timeout.
func (c Config) WithCircuitBreakerTimeout(timeout time.Duration) Config {
	c.CircuitBreaker.Timeout = timeout
	return c
}

func (c CircuitBreakerConfig) readyToTrip(counts Counts) bool {
	if c.ReadyToTrip != nil {
		return c.ReadyToTrip(counts)
	}
	threshold := c.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	return counts.ConsecutiveFailures >= threshold
}
