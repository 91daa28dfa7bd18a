package resilience

import (
	"context"
	"errors"
	"time"

	"payment-ledger/pkg/logging"
	"payment-ledger/pkg/metrics"
	"payment-ledger/pkg/payment"
	"payment-ledger/pkg/store"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Store wraps a RecordStore with a circuit breaker and a per-operation
// timeout. Missing records and rejected input are answers, not failures, and
// never count toward tripping the breaker.
type Store struct {
	next    store.RecordStore
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	metrics metrics.Collector
	logger  *logging.Logger
}

// NewStore wraps next with the given configuration and no metrics.
func NewStore(next store.RecordStore, config Config) *Store {
	return NewStoreWithMetrics(next, config, metrics.NoOpCollector{})
}

// NewStoreWithMetrics wraps next and reports operations and breaker state to collector.
func NewStoreWithMetrics(next store.RecordStore, config Config, collector metrics.Collector) *Store {
	logger := logging.L().Named("resilience").With(logging.Store(next.Name()))

	s := &Store{
		next:    next,
		timeout: config.Timeout,
		metrics: collector,
		logger:  logger,
	}

	logger.Info("resilient store initialized",
		zap.Duration("timeout", config.Timeout),
		zap.Uint32("max_requests", config.CircuitBreaker.MaxRequests),
		zap.Duration("circuit_interval", config.CircuitBreaker.Interval),
		zap.Duration("circuit_timeout", config.CircuitBreaker.Timeout),
	)

	s.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: config.CircuitBreaker.MaxRequests,
		Interval:    config.CircuitBreaker.Interval,
		Timeout:     config.CircuitBreaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return config.CircuitBreaker.readyToTrip(Counts{
				Requests:             counts.Requests,
				TotalSuccesses:       counts.TotalSuccesses,
				TotalFailures:        counts.TotalFailures,
				ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
				ConsecutiveFailures:  counts.ConsecutiveFailures,
			})
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, payment.ErrNotFound) ||
				errors.Is(err, store.ErrInvalidRecord)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			s.metrics.RecordCircuitState(name, circuitState(to))
		},
	})

	return s
}

func circuitState(s gobreaker.State) metrics.CircuitState {
	switch s {
	case gobreaker.StateOpen:
		return metrics.CircuitOpen
	case gobreaker.StateHalfOpen:
		return metrics.CircuitHalfOpen
	default:
		return metrics.CircuitClosed
	}
}

// execute runs op through the breaker with the configured timeout, records
// the outcome and maps breaker and deadline errors to store errors.
func execute[T any](s *Store, ctx context.Context, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result, err := s.cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})

	duration := time.Since(start)
	s.metrics.RecordStoreOp(s.next.Name(), op, err == nil || payment.IsNotFound(err), duration)

	var zero T
	if err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			s.logger.Warn("circuit breaker open - request rejected", zap.String("operation", op))
			return zero, store.ErrCircuitOpen
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			s.logger.Warn("operation timeout",
				zap.String("operation", op),
				zap.Duration("timeout", s.timeout),
				zap.Duration("elapsed", duration),
			)
			return zero, store.ErrTimeout
		case payment.IsNotFound(err), errors.Is(err, store.ErrInvalidRecord):
			return zero, err
		}

		s.logger.Error("store operation failed",
			zap.String("operation", op),
			zap.String("error_type", store.ClassifyError(err)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return zero, err
	}

	return result.(T), nil
}

func (s *Store) Put(ctx context.Context, rec payment.Record) (payment.Record, error) {
	return execute(s, ctx, "put", func(ctx context.Context) (payment.Record, error) {
		return s.next.Put(ctx, rec)
	})
}

func (s *Store) Get(ctx context.Context, id string) (payment.Record, error) {
	return execute(s, ctx, "get", func(ctx context.Context) (payment.Record, error) {
		return s.next.Get(ctx, id)
	})
}

func (s *Store) Query(ctx context.Context, f store.Filter) ([]payment.Record, error) {
	return execute(s, ctx, "query", func(ctx context.Context) ([]payment.Record, error) {
		return s.next.Query(ctx, f)
	})
}

// State returns the current circuit breaker state.
func (s *Store) State() metrics.CircuitState {
	return circuitState(s.cb.State())
}

// Name returns the name of the wrapped store.
func (s *Store) Name() string {
	return s.next.Name()
}

// Close closes the wrapped store.
func (s *Store) Close() error {
	return s.next.Close()
}
