// Package config loads the server configuration from defaults, an optional
// YAML file and PAYLEDGER_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"payment-ledger/pkg/logging"
	"payment-ledger/pkg/store/stack"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PAYLEDGER_STORE_DRIVER.
const EnvPrefix = "PAYLEDGER"

// Store drivers.
const (
	DriverMemory   = stack.DriverMemory
	DriverSQLite   = stack.DriverSQLite
	DriverPostgres = stack.DriverPostgres
	DriverRedis    = stack.DriverRedis
)

// Outcome policy modes.
const (
	PolicyApproveAll        = "approve_all"
	PolicyDeclineAbove      = "decline_above"
	PolicyDeclineCardSuffix = "decline_card_suffix"
)

// Event sinks.
const (
	SinkLog   = "log"
	SinkRedis = "redis"
)

// Config is the full server configuration.
type Config struct {
	HTTP       HTTPConfig       `mapstructure:"http"`
	Store      StoreConfig      `mapstructure:"store"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Bloom      BloomConfig      `mapstructure:"bloom"`
	Resilience ResilienceConfig `mapstructure:"resilience"`
	Policy     PolicyConfig     `mapstructure:"policy"`
	Limits     LimitsConfig     `mapstructure:"limits"`
	Events     EventsConfig     `mapstructure:"events"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Log        logging.Config   `mapstructure:"log"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// MaxBodyBytes caps request bodies; larger bodies get 413
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// StoreConfig selects and configures the record store backend.
type StoreConfig struct {
	// Driver is memory, sqlite, postgres or redis
	Driver string `mapstructure:"driver"`
	// DSN is used by the sqlite and postgres drivers
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Redis           RedisConfig   `mapstructure:"redis"`
}

// RedisConfig is shared by the redis store and the redis event sink.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	ClusterAddrs []string      `mapstructure:"cluster_addrs"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
}

// CacheConfig configures the in-process read cache in front of the store.
type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	MaxEntries int           `mapstructure:"max_entries"`
	TTL        time.Duration `mapstructure:"ttl"`
}

// BloomConfig configures the known-id filter in front of the store.
type BloomConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	ExpectedItems     uint    `mapstructure:"expected_items"`
	FalsePositiveRate float64 `mapstructure:"false_positive_rate"`
}

// ResilienceConfig configures the circuit breaker around the store.
type ResilienceConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	OpenTimeout         time.Duration `mapstructure:"open_timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
}

// PolicyConfig selects the simulated processing outcome.
type PolicyConfig struct {
	Mode string `mapstructure:"mode"`
	// DeclineAbove is a decimal amount used by decline_above
	DeclineAbove string `mapstructure:"decline_above"`
	// CardSuffixes are used by decline_card_suffix
	CardSuffixes []string `mapstructure:"card_suffixes"`
}

// LimitsConfig bounds payment requests.
type LimitsConfig struct {
	// MaxAmount is a decimal string
	MaxAmount     string `mapstructure:"max_amount"`
	MaxIDLength   int    `mapstructure:"max_id_length"`
	MaxTextLength int    `mapstructure:"max_text_length"`
}

// EventsConfig configures the ledger event publisher.
type EventsConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	QueueSize       int           `mapstructure:"queue_size"`
	Workers         int           `mapstructure:"workers"`
	MaxWait         time.Duration `mapstructure:"max_wait"`
	Sinks           []string      `mapstructure:"sinks"`
	Stream          string        `mapstructure:"stream"`
	StreamMaxLen    int64         `mapstructure:"stream_max_len"`
	FlushOnShutdown time.Duration `mapstructure:"flush_on_shutdown"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// Default returns the built-in configuration: an in-memory store with the
// read cache and circuit breaker enabled.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Store: StoreConfig{
			Driver:          DriverMemory,
			Table:           "ledger_records",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			Redis: RedisConfig{
				Addr:        "localhost:6379",
				KeyPrefix:   "ledger:",
				DialTimeout: 5 * time.Second,
			},
		},
		Cache: CacheConfig{
			Enabled:    true,
			MaxEntries: 10_000,
			TTL:        5 * time.Minute,
		},
		Bloom: BloomConfig{
			Enabled:           false,
			ExpectedItems:     1_000_000,
			FalsePositiveRate: 0.01,
		},
		Resilience: ResilienceConfig{
			Enabled:             true,
			Timeout:             2 * time.Second,
			MaxRequests:         1,
			Interval:            60 * time.Second,
			OpenTimeout:         10 * time.Second,
			ConsecutiveFailures: 5,
		},
		Policy: PolicyConfig{
			Mode: PolicyApproveAll,
		},
		Limits: LimitsConfig{
			MaxAmount:     "1000000",
			MaxIDLength:   100,
			MaxTextLength: 500,
		},
		Events: EventsConfig{
			Enabled:         false,
			QueueSize:       1000,
			Workers:         2,
			MaxWait:         10 * time.Millisecond,
			Sinks:           []string{SinkLog},
			Stream:          "ledger:events",
			StreamMaxLen:    100_000,
			FlushOnShutdown: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "payledger",
			Path:      "/metrics",
		},
		Log: logging.DefaultConfig(),
	}
}

// Load reads configuration. path may be empty, in which case only defaults
// and environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if filepath.Ext(path) == "" {
			v.SetConfigType("yaml")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so that environment variables can
// override values that appear in neither defaults nor the file.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("http.read_timeout", d.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", d.HTTP.WriteTimeout)
	v.SetDefault("http.idle_timeout", d.HTTP.IdleTimeout)
	v.SetDefault("http.shutdown_timeout", d.HTTP.ShutdownTimeout)
	v.SetDefault("http.max_body_bytes", d.HTTP.MaxBodyBytes)

	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("store.table", d.Store.Table)
	v.SetDefault("store.max_open_conns", d.Store.MaxOpenConns)
	v.SetDefault("store.max_idle_conns", d.Store.MaxIdleConns)
	v.SetDefault("store.conn_max_lifetime", d.Store.ConnMaxLifetime)
	v.SetDefault("store.redis.addr", d.Store.Redis.Addr)
	v.SetDefault("store.redis.cluster_addrs", d.Store.Redis.ClusterAddrs)
	v.SetDefault("store.redis.username", d.Store.Redis.Username)
	v.SetDefault("store.redis.password", d.Store.Redis.Password)
	v.SetDefault("store.redis.db", d.Store.Redis.DB)
	v.SetDefault("store.redis.key_prefix", d.Store.Redis.KeyPrefix)
	v.SetDefault("store.redis.dial_timeout", d.Store.Redis.DialTimeout)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.max_entries", d.Cache.MaxEntries)
	v.SetDefault("cache.ttl", d.Cache.TTL)

	v.SetDefault("bloom.enabled", d.Bloom.Enabled)
	v.SetDefault("bloom.expected_items", d.Bloom.ExpectedItems)
	v.SetDefault("bloom.false_positive_rate", d.Bloom.FalsePositiveRate)

	v.SetDefault("resilience.enabled", d.Resilience.Enabled)
	v.SetDefault("resilience.timeout", d.Resilience.Timeout)
	v.SetDefault("resilience.max_requests", d.Resilience.MaxRequests)
	v.SetDefault("resilience.interval", d.Resilience.Interval)
	v.SetDefault("resilience.open_timeout", d.Resilience.OpenTimeout)
	v.SetDefault("resilience.consecutive_failures", d.Resilience.ConsecutiveFailures)

	v.SetDefault("policy.mode", d.Policy.Mode)
	v.SetDefault("policy.decline_above", d.Policy.DeclineAbove)
	v.SetDefault("policy.card_suffixes", d.Policy.CardSuffixes)

	v.SetDefault("limits.max_amount", d.Limits.MaxAmount)
	v.SetDefault("limits.max_id_length", d.Limits.MaxIDLength)
	v.SetDefault("limits.max_text_length", d.Limits.MaxTextLength)

	v.SetDefault("events.enabled", d.Events.Enabled)
	v.SetDefault("events.queue_size", d.Events.QueueSize)
	v.SetDefault("events.workers", d.Events.Workers)
	v.SetDefault("events.max_wait", d.Events.MaxWait)
	v.SetDefault("events.sinks", d.Events.Sinks)
	v.SetDefault("events.stream", d.Events.Stream)
	v.SetDefault("events.stream_max_len", d.Events.StreamMaxLen)
	v.SetDefault("events.flush_on_shutdown", d.Events.FlushOnShutdown)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
	v.SetDefault("metrics.path", d.Metrics.Path)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output_paths", d.Log.OutputPaths)
	v.SetDefault("log.development", d.Log.Development)
	v.SetDefault("log.enable_caller", d.Log.EnableCaller)
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("http.max_body_bytes must be positive"))
	}

	switch c.Store.Driver {
	case DriverMemory, DriverRedis:
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for driver %s", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of memory, sqlite, postgres, redis", c.Store.Driver))
	}
	if c.Store.Driver == DriverRedis && c.Store.Redis.Addr == "" && len(c.Store.Redis.ClusterAddrs) == 0 {
		errs = append(errs, errors.New("store.redis.addr or store.redis.cluster_addrs is required"))
	}

	if c.Bloom.Enabled && (c.Bloom.FalsePositiveRate <= 0 || c.Bloom.FalsePositiveRate >= 1) {
		errs = append(errs, errors.New("bloom.false_positive_rate must be between 0 and 1"))
	}

	if _, err := c.OutcomePolicy(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.ValidationLimits(); err != nil {
		errs = append(errs, err)
	}

	if c.Events.Enabled {
		for _, sink := range c.Events.Sinks {
			if sink != SinkLog && sink != SinkRedis {
				errs = append(errs, fmt.Errorf("events.sinks: unknown sink %q", sink))
			}
		}
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, errors.New("metrics.path must start with /"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
