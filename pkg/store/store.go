// Package store defines the persistence boundary of the ledger.
//
// A RecordStore holds payment and refund records keyed by id. It is
// append-only from the ledger's point of view: records are inserted once and
// later overwritten with a new status, never deleted. Implementations must
// give read-your-writes consistency and must never hand out memory shared with
// their internal state.
package store

import (
	"context"

	"payment-ledger/pkg/payment"
)

// RecordStore is implemented by every backend and every decorator.
type RecordStore interface {
	// Put inserts or replaces the record with the same id. On insert the store
	// assigns Seq; on replace the original Seq is kept. The stored record is
	// returned.
	Put(ctx context.Context, rec payment.Record) (payment.Record, error)

	// Get returns the record with the given id, or an error matching
	// payment.ErrNotFound.
	Get(ctx context.Context, id string) (payment.Record, error)

	// Query returns the records matching f in insertion order.
	Query(ctx context.Context, f Filter) ([]payment.Record, error)

	// Name identifies the store in logs and metrics.
	Name() string

	// Close releases the store's resources.
	Close() error
}

// Filter selects records. Empty fields match everything.
type Filter struct {
	Kind       payment.Kind
	Status     string
	PaymentID  string
	MerchantID string
	CustomerID string
}

// Match reports whether rec satisfies f.
func (f Filter) Match(rec payment.Record) bool {
	if f.Kind != "" && rec.Kind != f.Kind {
		return false
	}
	if f.Status != "" && rec.StatusString() != f.Status {
		return false
	}
	if f.PaymentID != "" && rec.PaymentID() != f.PaymentID {
		return false
	}
	if f.MerchantID != "" || f.CustomerID != "" {
		if rec.Kind != payment.KindPayment || rec.Payment == nil {
			return false
		}
		if f.MerchantID != "" && rec.Payment.MerchantID != f.MerchantID {
			return false
		}
		if f.CustomerID != "" && rec.Payment.CustomerID != f.CustomerID {
			return false
		}
	}
	return true
}

// Validate rejects records a store must never persist.
func Validate(rec payment.Record) error {
	switch rec.Kind {
	case payment.KindPayment:
		if rec.Payment == nil {
			return ErrInvalidRecord
		}
	case payment.KindRefund:
		if rec.Refund == nil {
			return ErrInvalidRecord
		}
	default:
		return ErrInvalidRecord
	}
	if rec.ID() == "" {
		return ErrInvalidRecord
	}
	return nil
}
