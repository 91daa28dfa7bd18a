package bloom

import (
	"context"
	"sync"

	"payment-ledger/pkg/metrics"
	"payment-ledger/pkg/payment"
	"payment-ledger/pkg/store"

	"github.com/bits-and-blooms/bloom/v3"
)

// Store answers lookups for ids it has never seen without touching the
// wrapped store. Until Warm succeeds every lookup is passed through, since
// the filter does not yet know the ids already persisted.
type Store struct {
	next    store.RecordStore
	filter  *bloom.BloomFilter
	metrics metrics.Collector
	mu      sync.RWMutex

	warmed bool

	totalQueries   uint64
	bloomRejected  uint64
	falsePositives uint64
}

// Config sizes the filter.
type Config struct {
	ExpectedItems     uint
	FalsePositiveRate float64
}

// New wraps next with a bloom filter sized from config.
func New(next store.RecordStore, config Config, collector metrics.Collector) *Store {
	if config.ExpectedItems == 0 {
		config.ExpectedItems = 100_000
	}
	if config.FalsePositiveRate <= 0 || config.FalsePositiveRate >= 1 {
		config.FalsePositiveRate = 0.01
	}
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}

	return &Store{
		next:    next,
		filter:  bloom.NewWithEstimates(config.ExpectedItems, config.FalsePositiveRate),
		metrics: collector,
	}
}

// Warm loads every persisted id into the filter and enables rejection.
func (s *Store) Warm(ctx context.Context) error {
	recs, err := s.next.Query(ctx, store.Filter{})
	if err != nil {
		return store.WrapError(err, s.Name(), "warm")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range recs {
		s.filter.AddString(rec.ID())
	}
	s.warmed = true
	return nil
}

func (s *Store) Name() string {
	return "bloom(" + s.next.Name() + ")"
}

func (s *Store) Get(ctx context.Context, id string) (payment.Record, error) {
	if err := ctx.Err(); err != nil {
		return payment.Record{}, err
	}

	s.mu.Lock()
	s.totalQueries++
	if s.warmed && !s.filter.TestString(id) {
		s.bloomRejected++
		s.mu.Unlock()
		s.metrics.RecordBloomSkip(s.next.Name())
		return payment.Record{}, store.NotFound(id)
	}
	warmed := s.warmed
	s.mu.Unlock()

	rec, err := s.next.Get(ctx, id)
	if warmed && payment.IsNotFound(err) {
		s.mu.Lock()
		s.falsePositives++
		s.mu.Unlock()
	}
	return rec, err
}

// Put adds the id to the filter before writing, so a concurrent Get can
// never be rejected for a record that is being stored.
func (s *Store) Put(ctx context.Context, rec payment.Record) (payment.Record, error) {
	if err := ctx.Err(); err != nil {
		return payment.Record{}, err
	}

	s.mu.Lock()
	s.filter.AddString(rec.ID())
	s.mu.Unlock()

	return s.next.Put(ctx, rec)
}

func (s *Store) Query(ctx context.Context, f store.Filter) ([]payment.Record, error) {
	return s.next.Query(ctx, f)
}

func (s *Store) Close() error {
	return s.next.Close()
}

// Stats returns statistics about the bloom filter.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rejectionRate := 0.0
	falsePositiveRate := 0.0

	if s.totalQueries > 0 {
		rejectionRate = float64(s.bloomRejected) / float64(s.totalQueries)
		queried := s.totalQueries - s.bloomRejected
		if queried > 0 {
			falsePositiveRate = float64(s.falsePositives) / float64(queried)
		}
	}

	return Stats{
		Warmed:            s.warmed,
		TotalQueries:      s.totalQueries,
		BloomRejected:     s.bloomRejected,
		FalsePositives:    s.falsePositives,
		RejectionRate:     rejectionRate,
		FalsePositiveRate: falsePositiveRate,
		FilterCapacity:    s.filter.Cap(),
	}
}

// Stats holds statistics about bloom filter performance.
type Stats struct {
	Warmed            bool
	TotalQueries      uint64
	BloomRejected     uint64
	FalsePositives    uint64
	RejectionRate     float64
	FalsePositiveRate float64
	FilterCapacity    uint
}
