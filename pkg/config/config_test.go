package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"payment-ledger/pkg/payment"
	"payment-ledger/pkg/store/sqlstore"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.True(t, cfg.Cache.Enabled)
	assert.False(t, cfg.Bloom.Enabled)
	assert.True(t, cfg.Resilience.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Resilience.Timeout)
	assert.Equal(t, PolicyApproveAll, cfg.Policy.Mode)
	assert.Equal(t, []string{SinkLog}, cfg.Events.Sinks)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, int64(1<<20), cfg.HTTP.MaxBodyBytes)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
http:
  addr: ":9090"
  read_timeout: 3s
store:
  driver: sqlite
  dsn: "file:ledger.db"
cache:
  enabled: false
policy:
  mode: decline_above
  decline_above: "250.00"
events:
  enabled: true
  sinks: [log, redis]
log:
  level: debug
  format: console
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 3*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.HTTP.WriteTimeout, "unset keys keep defaults")
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, []string{SinkLog, SinkRedis}, cfg.Events.Sinks)
	assert.Equal(t, "console", cfg.Log.Format)

	policy, err := cfg.OutcomePolicy()
	require.NoError(t, err)
	assert.Equal(t, payment.StatusFailed, policy.Decide(context.Background(), payment.Payment{Amount: decimal.NewFromInt(251)}))
	assert.Equal(t, payment.StatusSettled, policy.Decide(context.Background(), payment.Payment{Amount: decimal.NewFromInt(250)}))

	sc := cfg.SQLStore()
	assert.Equal(t, sqlstore.SQLite, sc.Dialect)
	assert.Equal(t, "file:ledger.db", sc.DSN)
	assert.Equal(t, "ledger_records", sc.Table)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PAYLEDGER_STORE_DRIVER", "redis")
	t.Setenv("PAYLEDGER_STORE_REDIS_ADDR", "cache:6380")
	t.Setenv("PAYLEDGER_HTTP_ADDR", ":7000")
	t.Setenv("PAYLEDGER_RESILIENCE_TIMEOUT", "750ms")
	t.Setenv("PAYLEDGER_BLOOM_ENABLED", "true")

	path := writeFile(t, "http:\n  addr: \":9090\"\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.HTTP.Addr, "environment beats file")
	assert.Equal(t, DriverRedis, cfg.Store.Driver)
	assert.Equal(t, "cache:6380", cfg.RedisStore().Addr)
	assert.Equal(t, 750*time.Millisecond, cfg.StoreResilience().Timeout)
	assert.True(t, cfg.Bloom.Enabled)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "mongo" }, "store.driver"},
		{"sql without dsn", func(c *Config) { c.Store.Driver = DriverPostgres }, "store.dsn"},
		{"redis without address", func(c *Config) {
			c.Store.Driver = DriverRedis
			c.Store.Redis.Addr = ""
		}, "store.redis.addr"},
		{"bad policy", func(c *Config) { c.Policy.Mode = "coin_flip" }, "policy.mode"},
		{"bad threshold", func(c *Config) {
			c.Policy.Mode = PolicyDeclineAbove
			c.Policy.DeclineAbove = "lots"
		}, "policy.decline_above"},
		{"suffix policy without suffixes", func(c *Config) { c.Policy.Mode = PolicyDeclineCardSuffix }, "policy.card_suffixes"},
		{"bad max amount", func(c *Config) { c.Limits.MaxAmount = "-1" }, "limits.max_amount"},
		{"bad sink", func(c *Config) {
			c.Events.Enabled = true
			c.Events.Sinks = []string{"kafka"}
		}, "events.sinks"},
		{"bad bloom rate", func(c *Config) {
			c.Bloom.Enabled = true
			c.Bloom.FalsePositiveRate = 1.5
		}, "bloom.false_positive_rate"},
		{"metrics path", func(c *Config) { c.Metrics.Path = "metrics" }, "metrics.path"},
		{"no addr", func(c *Config) { c.HTTP.Addr = "" }, "http.addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	cfg := Default()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.HTTP.Addr = ""
	cfg.Store.Driver = "mongo"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http.addr")
	assert.Contains(t, err.Error(), "store.driver")
}

func TestBuilders(t *testing.T) {
	cfg := Default()
	cfg.Limits.MaxAmount = "500.50"
	cfg.Limits.MaxTextLength = 0
	cfg.Policy = PolicyConfig{Mode: PolicyDeclineCardSuffix, CardSuffixes: []string{"0002"}}
	cfg.Resilience.ConsecutiveFailures = 9

	limits, err := cfg.ValidationLimits()
	require.NoError(t, err)
	assert.Equal(t, "500.5", limits.MaxAmount.String())
	assert.Equal(t, 500, limits.MaxTextLength, "zero keeps the default")

	policy, err := cfg.OutcomePolicy()
	require.NoError(t, err)
	declined := payment.Payment{Method: payment.MethodDebitCard, CardLastFour: "0002"}
	assert.Equal(t, payment.StatusFailed, policy.Decide(context.Background(), declined))

	assert.EqualValues(t, 9, cfg.StoreResilience().CircuitBreaker.ConsecutiveFailures)
	assert.Equal(t, 10_000, cfg.ReadCache().MaxEntries)
	assert.Equal(t, 0.01, cfg.BloomFilter().FalsePositiveRate)
	assert.Equal(t, "ledger", cfg.Publisher().Name)
	assert.Equal(t, "ledger:events", cfg.Stream().Stream)
	assert.Equal(t, "ledger:", cfg.RedisStore().KeyPrefix)
}

func TestStoreStack(t *testing.T) {
	cfg := Default()
	sc := cfg.StoreStack(nil, nil)
	assert.Equal(t, DriverMemory, sc.Driver)
	assert.NotNil(t, sc.Resilience)
	assert.NotNil(t, sc.Cache)
	assert.Nil(t, sc.Bloom, "bloom is off by default")

	cfg.Cache.Enabled = false
	cfg.Resilience.Enabled = false
	cfg.Bloom.Enabled = true
	sc = cfg.StoreStack(nil, nil)
	assert.Nil(t, sc.Resilience)
	assert.Nil(t, sc.Cache)
	require.NotNil(t, sc.Bloom)
	assert.Equal(t, 0.01, sc.Bloom.FalsePositiveRate)
}
