package mock

import (
	"context"
	"sync/atomic"

	"payment-ledger/pkg/payment"
	"payment-ledger/pkg/store"
)

// Store is a RecordStore for tests. Each method runs its hook when set and
// counts its calls.
type Store struct {
	PutFunc   func(ctx context.Context, rec payment.Record) (payment.Record, error)
	GetFunc   func(ctx context.Context, id string) (payment.Record, error)
	QueryFunc func(ctx context.Context, f store.Filter) ([]payment.Record, error)
	NameFunc  func() string
	CloseFunc func() error

	putCalls   atomic.Int64
	getCalls   atomic.Int64
	queryCalls atomic.Int64
	closeCalls atomic.Int64
}

// New creates a mock whose Get reports every id as missing and whose other
// operations succeed.
func New(name string) *Store {
	return &Store{
		NameFunc: func() string { return name },
		GetFunc: func(ctx context.Context, id string) (payment.Record, error) {
			return payment.Record{}, store.NotFound(id)
		},
	}
}

func (m *Store) Put(ctx context.Context, rec payment.Record) (payment.Record, error) {
	m.putCalls.Add(1)
	if m.PutFunc != nil {
		return m.PutFunc(ctx, rec)
	}
	return rec, nil
}

func (m *Store) Get(ctx context.Context, id string) (payment.Record, error) {
	m.getCalls.Add(1)
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return payment.Record{}, nil
}

func (m *Store) Query(ctx context.Context, f store.Filter) ([]payment.Record, error) {
	m.queryCalls.Add(1)
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, f)
	}
	return nil, nil
}

func (m *Store) Name() string {
	if m.NameFunc != nil {
		return m.NameFunc()
	}
	return "mock"
}

func (m *Store) Close() error {
	m.closeCalls.Add(1)
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// PutCalls returns the number of Put calls.
func (m *Store) PutCalls() int { return int(m.putCalls.Load()) }

// GetCalls returns the number of Get calls.
func (m *Store) GetCalls() int { return int(m.getCalls.Load()) }

// QueryCalls returns the number of Query calls.
func (m *Store) QueryCalls() int { return int(m.queryCalls.Load()) }

// CloseCalls returns the number of Close calls.
func (m *Store) CloseCalls() int { return int(m.closeCalls.Load()) }
