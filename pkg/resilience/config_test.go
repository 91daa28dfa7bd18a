package resilience

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Timeout != 2*time.Second {
		t.Errorf("Expected timeout 2s, got %v", config.Timeout)
	}
	if config.CircuitBreaker.MaxRequests != 1 {
		t.Errorf("Expected MaxRequests 1, got %d", config.CircuitBreaker.MaxRequests)
	}
	if config.CircuitBreaker.Timeout != 10*time.Second {
		t.Errorf("Expected CB timeout 10s, got %v", config.CircuitBreaker.Timeout)
	}

	if config.CircuitBreaker.readyToTrip(Counts{ConsecutiveFailures: 4}) {
		t.Error("Should not trip with 4 failures")
	}
	if !config.CircuitBreaker.readyToTrip(Counts{ConsecutiveFailures: 5}) {
		t.Error("Should trip with 5 failures")
	}
}

func TestCircuitBreakerConfig_CustomReadyToTrip(t *testing.T) {
	cb := CircuitBreakerConfig{
		ReadyToTrip: func(counts Counts) bool {
			return counts.Requests >= 10 && counts.TotalFailures*2 >= counts.Requests
		},
	}

	if cb.readyToTrip(Counts{Requests: 4, TotalFailures: 4}) {
		t.Error("Should not trip below the request floor")
	}
	if !cb.readyToTrip(Counts{Requests: 10, TotalFailures: 5}) {
		t.Error("Should trip at 50% failures")
	}
}

func TestConfig_With(t *testing.T) {
	config := DefaultConfig()
	changed := config.WithTimeout(time.Second).WithCircuitBreakerTimeout(time.Minute)

	if changed.Timeout != time.Second || changed.CircuitBreaker.Timeout != time.Minute {
		t.Errorf("Unexpected config %+v", changed)
	}

	// Verify original is unchanged
	if config.Timeout != 2*time.Second {
		t.Errorf("Original config changed: got %v", config.Timeout)
	}
}
