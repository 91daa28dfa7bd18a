// Package stack assembles a record store from a backend and the optional
// decorators, ordered from the caller inward:
//
//	read cache -> bloom filter -> resilience -> backend
//
// The cache answers repeated reads, the bloom filter turns definite misses
// into NotFound without a round trip, and the circuit breaker guards the
// backend itself.
package stack

import (
	"context"
	"fmt"

	"payment-ledger/pkg/logging"
	"payment-ledger/pkg/metrics"
	"payment-ledger/pkg/resilience"
	"payment-ledger/pkg/store"
	"payment-ledger/pkg/store/bloom"
	"payment-ledger/pkg/store/cached"
	"payment-ledger/pkg/store/memory"
	"payment-ledger/pkg/store/redis"
	"payment-ledger/pkg/store/sqlstore"

	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// Backend drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config describes the stack. Nil decorator configs leave that layer out.
type Config struct {
	// Driver selects the backend
	Driver string

	Memory memory.Config
	SQL    sqlstore.Config
	Redis  redis.Config

	Resilience *resilience.Config
	Bloom      *bloom.Config
	Cache      *cached.Config

	Metrics metrics.Collector
	Logger  *logging.Logger
}

// Stack is an assembled record store.
type Stack struct {
	top    store.RecordStore
	layers []string
	ping   func(ctx context.Context) error
	redis  rueidis.Client
	bloom  *bloom.Store
	logger *logging.Logger
}

// Open connects the backend and wraps it with the configured decorators.
// A bloom filter that cannot be warmed stays in pass-through mode; that is
// logged, not returned.
func Open(ctx context.Context, config Config) (*Stack, error) {
	if config.Metrics == nil {
		config.Metrics = metrics.NoOpCollector{}
	}
	if config.Logger == nil {
		config.Logger = logging.L()
	}

	s := &Stack{logger: config.Logger.Named("store")}

	backend, err := s.openBackend(ctx, config)
	if err != nil {
		return nil, err
	}
	s.top = backend
	s.layers = []string{backend.Name()}

	if config.Resilience != nil {
		s.top = resilience.NewStoreWithMetrics(s.top, *config.Resilience, config.Metrics)
		s.layers = append(s.layers, "resilience")
	}
	if config.Bloom != nil {
		s.bloom = bloom.New(s.top, *config.Bloom, config.Metrics)
		s.top = s.bloom
		s.layers = append(s.layers, "bloom")

		if err := s.bloom.Warm(ctx); err != nil {
			s.logger.Warn("bloom filter not warmed, passing lookups through", zap.Error(err))
		}
	}
	if config.Cache != nil {
		s.top = cached.New(s.top, *config.Cache, config.Metrics)
		s.layers = append(s.layers, "cache")
	}

	s.logger.Info("record store ready", zap.Strings("layers", s.layers))
	return s, nil
}

func (s *Stack) openBackend(ctx context.Context, config Config) (store.RecordStore, error) {
	switch config.Driver {
	case "", DriverMemory:
		if config.Memory.Name == "" {
			config.Memory.Name = DriverMemory
		}
		s.ping = func(context.Context) error { return nil }
		return memory.New(config.Memory), nil

	case DriverSQLite, DriverPostgres:
		sc := config.SQL
		sc.Dialect = sqlstore.Dialect(config.Driver)
		if sc.Name == "" {
			sc.Name = config.Driver
		}
		db, err := sqlstore.Open(ctx, sc)
		if err != nil {
			return nil, fmt.Errorf("stack: open %s: %w", config.Driver, err)
		}
		s.ping = db.Ping
		return db, nil

	case DriverRedis:
		rs, err := redis.New(config.Redis)
		if err != nil {
			return nil, fmt.Errorf("stack: open redis: %w", err)
		}
		s.ping = rs.Ping
		s.redis = rs.Client()
		return rs, nil

	default:
		return nil, fmt.Errorf("stack: unknown driver %q", config.Driver)
	}
}

// Store returns the outermost layer.
func (s *Stack) Store() store.RecordStore {
	return s.top
}

// Layers names the layers from the backend outward.
func (s *Stack) Layers() []string {
	return append([]string(nil), s.layers...)
}

// Ping checks that the backend is reachable.
func (s *Stack) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

// Redis returns the backend's client when the driver is redis, else nil.
func (s *Stack) Redis() rueidis.Client {
	return s.redis
}

// Bloom returns the bloom layer, or nil when it is disabled.
func (s *Stack) Bloom() *bloom.Store {
	return s.bloom
}

// Close closes every layer down to the backend.
func (s *Stack) Close() error {
	return s.top.Close()
}
