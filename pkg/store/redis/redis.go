package redis

import (
	"context"
	"fmt"
	"time"

	"payment-ledger/pkg/payment"
	"payment-ledger/pkg/store"

	"github.com/redis/rueidis"
)

// Store keeps each record as JSON under {prefix}record:{id}. Insertion order
// comes from INCR on {prefix}seq and is indexed in the sorted set
// {prefix}index (member id, score seq).
type Store struct {
	client rueidis.Client
	name   string
	config Config
}

type Config struct {
	Name string
	// Addr is the Redis server address for single node mode.
	// For cluster mode, use ClusterAddrs instead.
	Addr string
	// ClusterAddrs enables cluster mode when set.
	ClusterAddrs []string
	Username     string
	Password     string
	// DB is the Redis database number. Cluster mode only supports DB 0.
	DB           int
	KeyPrefix    string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	// SentinelAddrs enables sentinel mode when set.
	SentinelAddrs     []string
	SentinelMasterSet string
	SentinelUsername  string
	SentinelPassword  string
	// ScanBatch is the number of GETs pipelined per round trip during Query
	ScanBatch int
}

func DefaultConfig() Config {
	return Config{
		Name:         "redis",
		Addr:         "localhost:6379",
		KeyPrefix:    "ledger:",
		DialTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
		ScanBatch:    200,
	}
}

// NewClient builds a rueidis client for the configured topology and pings it.
// It is shared by the record store and the event stream sink.
func NewClient(config Config) (rueidis.Client, error) {
	var initAddress []string
	if len(config.ClusterAddrs) > 0 {
		initAddress = config.ClusterAddrs
	} else if len(config.SentinelAddrs) > 0 {
		initAddress = config.SentinelAddrs
	} else if config.Addr != "" {
		initAddress = []string{config.Addr}
	} else {
		return nil, fmt.Errorf("redis: no addresses configured (set Addr, ClusterAddrs, or SentinelAddrs)")
	}

	clientOpts := rueidis.ClientOption{
		InitAddress:      initAddress,
		Username:         config.Username,
		Password:         config.Password,
		SelectDB:         config.DB,
		ConnWriteTimeout: config.WriteTimeout,
		MaxFlushDelay:    100 * time.Microsecond,
	}
	if len(config.SentinelAddrs) > 0 {
		clientOpts.Sentinel = rueidis.SentinelOption{
			MasterSet: config.SentinelMasterSet,
			Username:  config.SentinelUsername,
			Password:  config.SentinelPassword,
		}
	}

	client, err := rueidis.NewClient(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("redis: failed to create client: %w", err)
	}

	timeout := config.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: failed to ping server: %w", err)
	}

	return client, nil
}

// New connects to Redis and returns a record store.
func New(config Config) (*Store, error) {
	client, err := NewClient(config)
	if err != nil {
		return nil, err
	}
	return NewWithClient(client, config), nil
}

// NewWithClient wraps an existing client. Closing the store closes the client.
func NewWithClient(client rueidis.Client, config Config) *Store {
	if config.Name == "" {
		config.Name = "redis"
	}
	if config.ScanBatch <= 0 {
		config.ScanBatch = 200
	}
	return &Store{client: client, name: config.Name, config: config}
}

func (r *Store) recordKey(id string) string { return r.config.KeyPrefix + "record:" + id }
func (r *Store) seqKey() string             { return r.config.KeyPrefix + "seq" }
func (r *Store) indexKey() string           { return r.config.KeyPrefix + "index" }

// Put writes the record. A new id takes the next sequence number; an existing
// id keeps its own. Callers serialize writes per id.
func (r *Store) Put(ctx context.Context, rec payment.Record) (payment.Record, error) {
	if err := store.Validate(rec); err != nil {
		return payment.Record{}, err
	}

	stored := rec.Clone()
	existing, err := r.Get(ctx, stored.ID())
	switch {
	case err == nil:
		stored.Seq = existing.Seq
	case payment.IsNotFound(err):
		seq, err := r.client.Do(ctx, r.client.B().Incr().Key(r.seqKey()).Build()).AsInt64()
		if err != nil {
			return payment.Record{}, fmt.Errorf("redis incr: %w", err)
		}
		stored.Seq = seq
	default:
		return payment.Record{}, err
	}

	data, err := store.Encode(stored)
	if err != nil {
		return payment.Record{}, err
	}

	cmds := rueidis.Commands{
		r.client.B().Set().Key(r.recordKey(stored.ID())).Value(string(data)).Build(),
		r.client.B().Zadd().Key(r.indexKey()).ScoreMember().ScoreMember(float64(stored.Seq), stored.ID()).Build(),
	}
	for _, resp := range r.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return payment.Record{}, fmt.Errorf("redis put %s: %w", stored.ID(), err)
		}
	}

	return stored, nil
}

func (r *Store) Get(ctx context.Context, id string) (payment.Record, error) {
	resp := r.client.Do(ctx, r.client.B().Get().Key(r.recordKey(id)).Build())
	if err := resp.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return payment.Record{}, store.NotFound(id)
		}
		return payment.Record{}, fmt.Errorf("redis get: %w", err)
	}

	data, err := resp.AsBytes()
	if err != nil {
		return payment.Record{}, fmt.Errorf("redis get: failed to read response: %w", err)
	}
	return store.Decode(data)
}

// Query walks the index in seq order and filters records in process. Records
// are fetched with one GET per key, pipelined per batch, so the keys may live
// in different cluster slots.
func (r *Store) Query(ctx context.Context, f store.Filter) ([]payment.Record, error) {
	ids, err := r.IDs(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]payment.Record, 0)
	for start := 0; start < len(ids); start += r.config.ScanBatch {
		end := min(start+r.config.ScanBatch, len(ids))

		cmds := make(rueidis.Commands, 0, end-start)
		for _, id := range ids[start:end] {
			cmds = append(cmds, r.client.B().Get().Key(r.recordKey(id)).Build())
		}

		for i, resp := range r.client.DoMulti(ctx, cmds...) {
			data, err := resp.AsBytes()
			if err != nil {
				// Indexed but already gone.
				if rueidis.IsRedisNil(err) {
					continue
				}
				return nil, fmt.Errorf("redis get %s: %w", ids[start+i], err)
			}
			rec, err := store.Decode(data)
			if err != nil {
				return nil, err
			}
			if f.Match(rec) {
				records = append(records, rec)
			}
		}
	}

	return records, nil
}

// IDs returns every record id in seq order.
func (r *Store) IDs(ctx context.Context) ([]string, error) {
	ids, err := r.client.Do(ctx, r.client.B().Zrange().Key(r.indexKey()).Min("0").Max("-1").Build()).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("redis zrange: %w", err)
	}
	return ids, nil
}

// Client exposes the underlying client so other components can share it.
func (r *Store) Client() rueidis.Client {
	return r.client
}

func (r *Store) Ping(ctx context.Context) error {
	if err := r.client.Do(ctx, r.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Reset removes every record in the index together with the index and the
// sequence. Tests only.
func (r *Store) Reset(ctx context.Context) error {
	ids, err := r.IDs(ctx)
	if err != nil {
		return err
	}

	cmds := make(rueidis.Commands, 0, len(ids)+2)
	for _, id := range ids {
		cmds = append(cmds, r.client.B().Del().Key(r.recordKey(id)).Build())
	}
	cmds = append(cmds,
		r.client.B().Del().Key(r.indexKey()).Build(),
		r.client.B().Del().Key(r.seqKey()).Build(),
	)
	for _, resp := range r.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
	}
	return nil
}

func (r *Store) Name() string {
	return r.name
}

func (r *Store) Close() error {
	r.client.Close()
	return nil
}
