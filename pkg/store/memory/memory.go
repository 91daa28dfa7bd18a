package memory

import (
	"context"
	"sync"

	"payment-ledger/pkg/payment"
	"payment-ledger/pkg/store"
)

// Store is an in-memory RecordStore.
// Records are deep-copied on the way in and on the way out, so callers never
// share memory with the store.
type Store struct {
	// records is keyed by record id
	records map[string]payment.Record

	// order holds ids in insertion order
	order []string

	// seq is the last assigned sequence number
	seq int64

	// mu protects records, order and seq
	mu sync.RWMutex

	name   string
	closed bool
}

// Config holds configuration for the memory store.
type Config struct {
	// Name is the store identifier used in logs and metrics
	Name string

	// InitialCapacity presizes the record map
	InitialCapacity int
}

// New creates an empty in-memory store.
func New(config Config) *Store {
	if config.Name == "" {
		config.Name = "memory"
	}

	return &Store{
		records: make(map[string]payment.Record, config.InitialCapacity),
		order:   make([]string, 0, config.InitialCapacity),
		name:    config.Name,
	}
}

// Put inserts or replaces a record.
func (s *Store) Put(ctx context.Context, rec payment.Record) (payment.Record, error) {
	if err := ctx.Err(); err != nil {
		return payment.Record{}, err
	}
	if err := store.Validate(rec); err != nil {
		return payment.Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return payment.Record{}, store.ErrUnavailable
	}

	id := rec.ID()
	stored := rec.Clone()
	if existing, ok := s.records[id]; ok {
		stored.Seq = existing.Seq
	} else {
		s.seq++
		stored.Seq = s.seq
		s.order = append(s.order, id)
	}
	s.records[id] = stored

	return stored.Clone(), nil
}

// Get returns a copy of the record with the given id.
func (s *Store) Get(ctx context.Context, id string) (payment.Record, error) {
	if err := ctx.Err(); err != nil {
		return payment.Record{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return payment.Record{}, store.ErrUnavailable
	}

	rec, ok := s.records[id]
	if !ok {
		return payment.Record{}, store.NotFound(id)
	}
	return rec.Clone(), nil
}

// Query scans records in insertion order.
func (s *Store) Query(ctx context.Context, f store.Filter) ([]payment.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrUnavailable
	}

	out := make([]payment.Record, 0)
	for _, id := range s.order {
		rec := s.records[id]
		if f.Match(rec) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

// Name returns the store name.
func (s *Store) Name() string {
	return s.name
}

// Close drops all records. Later calls fail with store.ErrUnavailable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.order = nil
	s.closed = true
	return nil
}

// Stats returns current store statistics.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Records: len(s.records), LastSeq: s.seq}
	for _, rec := range s.records {
		switch rec.Kind {
		case payment.KindPayment:
			stats.Payments++
		case payment.KindRefund:
			stats.Refunds++
		}
	}
	return stats
}

// Stats holds store statistics.
type Stats struct {
	Records  int
	Payments int
	Refunds  int
	LastSeq  int64
}
