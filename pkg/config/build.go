package config

import (
	"fmt"

	"payment-ledger/pkg/events"
	"payment-ledger/pkg/ledger"
	"payment-ledger/pkg/logging"
	"payment-ledger/pkg/metrics"
	"payment-ledger/pkg/resilience"
	"payment-ledger/pkg/store/bloom"
	"payment-ledger/pkg/store/cached"
	"payment-ledger/pkg/store/redis"
	"payment-ledger/pkg/store/sqlstore"
	"payment-ledger/pkg/store/stack"
	"payment-ledger/pkg/validation"

	"github.com/shopspring/decimal"
)

// OutcomePolicy builds the configured processing policy.
func (c *Config) OutcomePolicy() (ledger.OutcomePolicy, error) {
	switch c.Policy.Mode {
	case "", PolicyApproveAll:
		return ledger.ApproveAll(), nil
	case PolicyDeclineAbove:
		threshold, err := decimal.NewFromString(c.Policy.DeclineAbove)
		if err != nil || !threshold.IsPositive() {
			return nil, fmt.Errorf("policy.decline_above %q must be a positive amount", c.Policy.DeclineAbove)
		}
		return ledger.DeclineAbove(threshold), nil
	case PolicyDeclineCardSuffix:
		if len(c.Policy.CardSuffixes) == 0 {
			return nil, fmt.Errorf("policy.card_suffixes is required for %s", PolicyDeclineCardSuffix)
		}
		return ledger.DeclineCardSuffix(c.Policy.CardSuffixes...), nil
	default:
		return nil, fmt.Errorf("policy.mode %q is not one of %s, %s, %s",
			c.Policy.Mode, PolicyApproveAll, PolicyDeclineAbove, PolicyDeclineCardSuffix)
	}
}

// ValidationLimits converts the limits section.
func (c *Config) ValidationLimits() (validation.Limits, error) {
	limits := validation.DefaultLimits()

	if c.Limits.MaxAmount != "" {
		maxAmount, err := decimal.NewFromString(c.Limits.MaxAmount)
		if err != nil || !maxAmount.IsPositive() {
			return limits, fmt.Errorf("limits.max_amount %q must be a positive amount", c.Limits.MaxAmount)
		}
		limits.MaxAmount = maxAmount
	}
	if c.Limits.MaxIDLength > 0 {
		limits.MaxIDLength = c.Limits.MaxIDLength
	}
	if c.Limits.MaxTextLength > 0 {
		limits.MaxTextLength = c.Limits.MaxTextLength
	}
	return limits, nil
}

// StoreResilience converts the resilience section.
func (c *Config) StoreResilience() resilience.Config {
	rc := resilience.DefaultConfig()
	rc.Timeout = c.Resilience.Timeout
	if c.Resilience.MaxRequests > 0 {
		rc.CircuitBreaker.MaxRequests = c.Resilience.MaxRequests
	}
	rc.CircuitBreaker.Interval = c.Resilience.Interval
	if c.Resilience.OpenTimeout > 0 {
		rc.CircuitBreaker.Timeout = c.Resilience.OpenTimeout
	}
	if c.Resilience.ConsecutiveFailures > 0 {
		rc.CircuitBreaker.ConsecutiveFailures = c.Resilience.ConsecutiveFailures
	}
	return rc
}

// SQLStore converts the store section for the sqlite and postgres drivers.
func (c *Config) SQLStore() sqlstore.Config {
	sc := sqlstore.DefaultConfig()
	sc.Dialect = sqlstore.Postgres
	if c.Store.Driver == DriverSQLite {
		sc.Dialect = sqlstore.SQLite
	}
	sc.DSN = c.Store.DSN
	sc.Name = c.Store.Driver
	if c.Store.Table != "" {
		sc.Table = c.Store.Table
	}
	sc.MaxOpenConns = c.Store.MaxOpenConns
	sc.MaxIdleConns = c.Store.MaxIdleConns
	sc.ConnMaxLifetime = c.Store.ConnMaxLifetime
	return sc
}

// RedisStore converts the redis settings shared by the store and event sink.
func (c *Config) RedisStore() redis.Config {
	rc := redis.DefaultConfig()
	rc.Addr = c.Store.Redis.Addr
	rc.ClusterAddrs = c.Store.Redis.ClusterAddrs
	rc.Username = c.Store.Redis.Username
	rc.Password = c.Store.Redis.Password
	rc.DB = c.Store.Redis.DB
	if c.Store.Redis.KeyPrefix != "" {
		rc.KeyPrefix = c.Store.Redis.KeyPrefix
	}
	if c.Store.Redis.DialTimeout > 0 {
		rc.DialTimeout = c.Store.Redis.DialTimeout
	}
	return rc
}

// ReadCache converts the cache section.
func (c *Config) ReadCache() cached.Config {
	return cached.Config{MaxEntries: c.Cache.MaxEntries, TTL: c.Cache.TTL}
}

// BloomFilter converts the bloom section.
func (c *Config) BloomFilter() bloom.Config {
	return bloom.Config{ExpectedItems: c.Bloom.ExpectedItems, FalsePositiveRate: c.Bloom.FalsePositiveRate}
}

// StoreStack describes the record store stack: the driver's backend wrapped
// by whichever decorators are enabled.
func (c *Config) StoreStack(collector metrics.Collector, logger *logging.Logger) stack.Config {
	sc := stack.Config{
		Driver:  c.Store.Driver,
		SQL:     c.SQLStore(),
		Redis:   c.RedisStore(),
		Metrics: collector,
		Logger:  logger,
	}
	if c.Resilience.Enabled {
		rc := c.StoreResilience()
		sc.Resilience = &rc
	}
	if c.Bloom.Enabled {
		bc := c.BloomFilter()
		sc.Bloom = &bc
	}
	if c.Cache.Enabled {
		cc := c.ReadCache()
		sc.Cache = &cc
	}
	return sc
}

// Publisher converts the events section.
func (c *Config) Publisher() events.PublisherConfig {
	return events.PublisherConfig{
		Name:        "ledger",
		QueueSize:   c.Events.QueueSize,
		Workers:     c.Events.Workers,
		MaxWaitTime: c.Events.MaxWait,
	}
}

// Stream converts the redis stream sink settings.
func (c *Config) Stream() events.RedisStreamConfig {
	return events.RedisStreamConfig{Stream: c.Events.Stream, MaxLen: c.Events.StreamMaxLen}
}
