package ledger

import (
	"context"
	"fmt"

	"payment-ledger/pkg/payment"
	"payment-ledger/pkg/store"

	"github.com/shopspring/decimal"
)

// Page sizes for ListPayments.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

// PaymentFilter selects payments for ListPayments. Empty fields match everything.
type PaymentFilter struct {
	MerchantID string
	CustomerID string
	Status     payment.Status
	Offset     int
	Limit      int
}

// Page is one window of a payment listing.
type Page struct {
	Payments []payment.Payment
	Total    int
	Offset   int
	Limit    int
}

// Get returns the record with the given id. Reads take no ledger lock; the
// store hands out copies of fully committed records.
func (l *Ledger) Get(ctx context.Context, id string) (payment.Record, error) {
	return l.store.Get(ctx, id)
}

// ListByStatus returns the records of one kind in the given status, in insertion order.
func (l *Ledger) ListByStatus(ctx context.Context, kind payment.Kind, status string) ([]payment.Record, error) {
	recs, err := l.store.Query(ctx, store.Filter{Kind: kind, Status: status})
	if err != nil {
		return nil, fmt.Errorf("ledger: list %s by status: %w", kind, err)
	}
	return recs, nil
}

// GetPayment returns a payment, or ErrNotFound when id is unknown or names a refund.
func (l *Ledger) GetPayment(ctx context.Context, id string) (payment.Payment, error) {
	rec, err := l.store.Get(ctx, id)
	if err != nil {
		return payment.Payment{}, err
	}
	if rec.Kind != payment.KindPayment || rec.Payment == nil {
		return payment.Payment{}, store.NotFound(id)
	}
	return *rec.Payment, nil
}

// GetRefund returns a refund, or ErrNotFound when id is unknown or names a payment.
func (l *Ledger) GetRefund(ctx context.Context, id string) (payment.Refund, error) {
	rec, err := l.store.Get(ctx, id)
	if err != nil {
		return payment.Refund{}, err
	}
	if rec.Kind != payment.KindRefund || rec.Refund == nil {
		return payment.Refund{}, store.NotFound(id)
	}
	return *rec.Refund, nil
}

// RefundsFor returns every refund of a payment in creation order.
func (l *Ledger) RefundsFor(ctx context.Context, paymentID string) ([]payment.Refund, error) {
	if _, err := l.GetPayment(ctx, paymentID); err != nil {
		return nil, err
	}

	recs, err := l.store.Query(ctx, store.Filter{Kind: payment.KindRefund, PaymentID: paymentID})
	if err != nil {
		return nil, fmt.Errorf("ledger: refunds of %s: %w", paymentID, err)
	}

	refunds := make([]payment.Refund, 0, len(recs))
	for _, rec := range recs {
		refunds = append(refunds, *rec.Refund)
	}
	return refunds, nil
}

// RefundedTotal returns the sum of completed refunds of a payment.
func (l *Ledger) RefundedTotal(ctx context.Context, paymentID string) (decimal.Decimal, error) {
	if _, err := l.GetPayment(ctx, paymentID); err != nil {
		return decimal.Zero, err
	}
	return l.completedTotal(ctx, paymentID)
}

// ListPayments returns payments matching f in creation order. Limit defaults
// to DefaultPageLimit and is capped at MaxPageLimit; a negative offset is
// treated as zero.
func (l *Ledger) ListPayments(ctx context.Context, f PaymentFilter) (Page, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	recs, err := l.store.Query(ctx, store.Filter{
		Kind:       payment.KindPayment,
		Status:     string(f.Status),
		MerchantID: f.MerchantID,
		CustomerID: f.CustomerID,
	})
	if err != nil {
		return Page{}, fmt.Errorf("ledger: list payments: %w", err)
	}

	page := Page{
		Payments: []payment.Payment{},
		Total:    len(recs),
		Offset:   f.Offset,
		Limit:    f.Limit,
	}
	if f.Offset >= len(recs) {
		return page, nil
	}

	end := min(f.Offset+f.Limit, len(recs))
	for _, rec := range recs[f.Offset:end] {
		page.Payments = append(page.Payments, *rec.Payment)
	}
	return page, nil
}
