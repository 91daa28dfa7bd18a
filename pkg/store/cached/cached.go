// Package cached puts a bounded in-process read cache in front of a
// RecordStore.
//
// Writes go through to the wrapped store first and are cached only after
// they succeed. Concurrent misses for the same id are collapsed into a
// single backend read. The cache assumes this process is the only writer of
// the wrapped store.
package cached

import (
	"context"
	"sync"
	"time"

	"payment-ledger/pkg/metrics"
	"payment-ledger/pkg/payment"
	"payment-ledger/pkg/store"

	"golang.org/x/sync/singleflight"
)

// Config bounds the cache.
type Config struct {
	// MaxEntries caps the number of cached records (0 = 10000)
	MaxEntries int

	// TTL is how long an entry stays valid (0 = no expiry)
	TTL time.Duration
}

type entry struct {
	rec        payment.Record
	expiresAt  time.Time
	accessedAt time.Time
}

// Store is a read-through, write-through cache over another RecordStore.
type Store struct {
	next    store.RecordStore
	config  Config
	metrics metrics.Collector
	group   singleflight.Group

	mu      sync.Mutex
	entries map[string]*entry

	// epoch increases on every write; a read that started in an older epoch
	// does not populate the cache.
	epoch uint64
}

// New wraps next with a read cache.
func New(next store.RecordStore, config Config, collector metrics.Collector) *Store {
	if config.MaxEntries <= 0 {
		config.MaxEntries = 10_000
	}
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}

	return &Store{
		next:    next,
		config:  config,
		metrics: collector,
		entries: make(map[string]*entry),
	}
}

func (s *Store) Name() string {
	return "cached(" + s.next.Name() + ")"
}

func (s *Store) Get(ctx context.Context, id string) (payment.Record, error) {
	if rec, ok := s.lookup(id); ok {
		s.metrics.RecordCacheLookup(s.next.Name(), true)
		return rec, nil
	}
	s.metrics.RecordCacheLookup(s.next.Name(), false)

	v, err, _ := s.group.Do(id, func() (interface{}, error) {
		s.mu.Lock()
		epoch := s.epoch
		s.mu.Unlock()

		rec, err := s.next.Get(ctx, id)
		if err != nil {
			return payment.Record{}, err
		}

		s.mu.Lock()
		if s.epoch == epoch {
			s.storeLocked(rec)
		}
		s.mu.Unlock()
		return rec, nil
	})
	if err != nil {
		return payment.Record{}, err
	}

	// Shared results are copied for each caller
	return v.(payment.Record).Clone(), nil
}

func (s *Store) Put(ctx context.Context, rec payment.Record) (payment.Record, error) {
	stored, err := s.next.Put(ctx, rec)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	if err != nil {
		// The write may or may not have landed
		delete(s.entries, rec.ID())
		return payment.Record{}, err
	}
	s.storeLocked(stored)
	return stored.Clone(), nil
}

// Query always reads the wrapped store.
func (s *Store) Query(ctx context.Context, f store.Filter) ([]payment.Record, error) {
	return s.next.Query(ctx, f)
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.entries = make(map[string]*entry)
	s.mu.Unlock()
	return s.next.Close()
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) lookup(id string) (payment.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return payment.Record{}, false
	}

	now := time.Now()
	if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
		delete(s.entries, id)
		return payment.Record{}, false
	}
	e.accessedAt = now
	return e.rec.Clone(), true
}

// storeLocked caches rec, evicting the least recently used entry when full.
func (s *Store) storeLocked(rec payment.Record) {
	id := rec.ID()
	if _, exists := s.entries[id]; !exists && len(s.entries) >= s.config.MaxEntries {
		var lruID string
		var lruTime time.Time
		for k, e := range s.entries {
			if lruID == "" || e.accessedAt.Before(lruTime) {
				lruID = k
				lruTime = e.accessedAt
			}
		}
		delete(s.entries, lruID)
	}

	now := time.Now()
	e := &entry{rec: rec.Clone(), accessedAt: now}
	if s.config.TTL > 0 {
		e.expiresAt = now.Add(s.config.TTL)
	}
	s.entries[id] = e
}
