// Package ledger is the authoritative record of payments and refunds.
//
// Every mutation goes through a Ledger method, which applies the matching
// state machine and commits the result as a single store write. Mutations
// on a payment and on all of its refunds are serialized by one lock keyed by
// the payment id, so the refunded-sum check and the write that depends on it
// can never interleave with another writer on the same payment.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"payment-ledger/pkg/events"
	"payment-ledger/pkg/logging"
	"payment-ledger/pkg/metrics"
	"payment-ledger/pkg/payment"
	"payment-ledger/pkg/store"
	"payment-ledger/pkg/validation"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger owns payment and refund records held in a RecordStore.
type Ledger struct {
	store    store.RecordStore
	ids      payment.IDGenerator
	clock    payment.Clock
	locks    *keyedMutex
	notifier events.Notifier
	metrics  metrics.Collector
	logger   *logging.Logger
}

// Config holds the collaborators of a Ledger. Nil fields get defaults.
type Config struct {
	// IDs generates record identifiers (default: payment.UUIDGenerator)
	IDs payment.IDGenerator

	// Clock stamps CreatedAt and UpdatedAt (default: payment.SystemClock)
	Clock payment.Clock

	// Notifier receives an event for every committed write. Optional.
	Notifier events.Notifier

	// Metrics records transitions and refund outcomes (default: no-op)
	Metrics metrics.Collector

	// Logger (default: the global logger)
	Logger *logging.Logger
}

// New returns a ledger over s.
func New(s store.RecordStore, config Config) *Ledger {
	if config.IDs == nil {
		config.IDs = payment.UUIDGenerator{}
	}
	if config.Clock == nil {
		config.Clock = payment.SystemClock
	}
	if config.Metrics == nil {
		config.Metrics = metrics.NoOpCollector{}
	}
	if config.Logger == nil {
		config.Logger = logging.L()
	}

	return &Ledger{
		store:    s,
		ids:      config.IDs,
		clock:    config.Clock,
		locks:    newKeyedMutex(),
		notifier: config.Notifier,
		metrics:  config.Metrics,
		logger:   config.Logger.Named("ledger").With(logging.Store(s.Name())),
	}
}

// CreatePayment stores a new pending payment built from v.
func (l *Ledger) CreatePayment(ctx context.Context, v validation.ValidatedPayment) (payment.Payment, error) {
	if !v.Valid() {
		return payment.Payment{}, fmt.Errorf("%w: payment was not validated", payment.ErrValidation)
	}

	p := v.Draft()
	p.ID = l.ids.NewID(payment.KindPayment)
	p.Status = payment.StatusPending
	p.CreatedAt = l.clock()
	p.UpdatedAt = p.CreatedAt

	var out outbox
	defer l.publish(ctx, &out)
	unlock := l.locks.Lock(p.ID)
	defer unlock()

	rec, err := l.store.Put(ctx, payment.PaymentRecord(p))
	if err != nil {
		return payment.Payment{}, fmt.Errorf("ledger: create payment: %w", err)
	}

	l.committed(&out, rec, "")
	l.logger.Info("payment created",
		logging.PaymentID(p.ID),
		zap.String("amount", p.Amount.String()),
		zap.String("currency", p.Currency),
	)
	return *rec.Payment, nil
}

// CreateRefund stores a new pending refund built from v. The parent payment
// must be settled; otherwise ErrPaymentNotSettled is returned and nothing is
// written.
func (l *Ledger) CreateRefund(ctx context.Context, v validation.ValidatedRefund) (payment.Refund, error) {
	if !v.Valid() {
		return payment.Refund{}, fmt.Errorf("%w: refund was not validated", payment.ErrValidation)
	}

	r := v.Draft()

	var out outbox
	defer l.publish(ctx, &out)
	unlock := l.locks.Lock(r.PaymentID)
	defer unlock()

	p, err := l.GetPayment(ctx, r.PaymentID)
	if err != nil {
		return payment.Refund{}, err
	}
	if p.Status != payment.StatusSettled {
		l.metrics.RecordRejectedTransition(string(payment.KindRefund), payment.ClassifyError(payment.ErrPaymentNotSettled))
		return payment.Refund{}, fmt.Errorf("%w: payment %s is %s", payment.ErrPaymentNotSettled, p.ID, p.Status)
	}

	r.ID = l.ids.NewID(payment.KindRefund)
	r.Currency = p.Currency
	r.Status = payment.RefundPending
	r.CreatedAt = l.clock()
	r.UpdatedAt = r.CreatedAt

	rec, err := l.store.Put(ctx, payment.RefundRecord(r))
	if err != nil {
		return payment.Refund{}, fmt.Errorf("ledger: create refund: %w", err)
	}

	l.committed(&out, rec, "")
	l.logger.Info("refund created",
		logging.RefundID(r.ID),
		logging.PaymentID(r.PaymentID),
		zap.String("amount", r.Amount.String()),
	)
	return *rec.Refund, nil
}

// TransitionPayment moves a payment to target. A rejected transition returns
// the unchanged payment together with a *payment.TransitionError.
func (l *Ledger) TransitionPayment(ctx context.Context, id string, target payment.Status) (payment.Payment, error) {
	var out outbox
	defer l.publish(ctx, &out)
	unlock := l.locks.Lock(id)
	defer unlock()

	current, err := l.GetPayment(ctx, id)
	if err != nil {
		return payment.Payment{}, err
	}

	next, err := current.Advance(target, l.clock)
	if err != nil {
		l.rejected(payment.KindPayment, err)
		return current, err
	}

	rec, err := l.store.Put(ctx, payment.PaymentRecord(next))
	if err != nil {
		return current, fmt.Errorf("ledger: transition payment %s: %w", id, err)
	}

	l.committed(&out, rec, string(current.Status))
	return *rec.Payment, nil
}

// TransitionRefund moves a refund to target. Completing a refund re-checks,
// under the payment lock, that completed refunds including this one stay
// within the payment amount. When they would not, the refund is moved to
// failed instead and returned with ErrRefundExceedsBalance.
func (l *Ledger) TransitionRefund(ctx context.Context, id string, target payment.RefundStatus) (payment.Refund, error) {
	// The parent id never changes, so it can be read before locking.
	known, err := l.GetRefund(ctx, id)
	if err != nil {
		return payment.Refund{}, err
	}

	var out outbox
	defer l.publish(ctx, &out)
	unlock := l.locks.Lock(known.PaymentID)
	defer unlock()

	current, err := l.GetRefund(ctx, id)
	if err != nil {
		return payment.Refund{}, err
	}

	next, err := current.Advance(target, l.clock)
	if err != nil {
		l.rejected(payment.KindRefund, err)
		return current, err
	}

	if target == payment.RefundCompleted {
		available, err := l.available(ctx, current.PaymentID)
		if err != nil {
			return current, err
		}
		if current.Amount.GreaterThan(available) {
			return l.failRefund(ctx, &out, current, available)
		}
	}

	rec, err := l.store.Put(ctx, payment.RefundRecord(next))
	if err != nil {
		return current, fmt.Errorf("ledger: transition refund %s: %w", id, err)
	}

	l.committed(&out, rec, string(current.Status))
	return *rec.Refund, nil
}

// failRefund commits r as failed after a balance violation.
func (l *Ledger) failRefund(ctx context.Context, out *outbox, r payment.Refund, available decimal.Decimal) (payment.Refund, error) {
	balanceErr := fmt.Errorf("%w: refund %s of %s exceeds available amount %s",
		payment.ErrRefundExceedsBalance, r.ID, r.Amount.String(), available.String())
	l.rejected(payment.KindRefund, balanceErr)

	failed, err := r.Advance(payment.RefundFailed, l.clock)
	if err != nil {
		return r, errors.Join(balanceErr, err)
	}

	rec, err := l.store.Put(ctx, payment.RefundRecord(failed))
	if err != nil {
		return r, errors.Join(balanceErr, fmt.Errorf("ledger: fail refund %s: %w", r.ID, err))
	}

	l.committed(out, rec, string(r.Status))
	l.logger.Warn("refund exceeds balance",
		logging.RefundID(r.ID),
		logging.PaymentID(r.PaymentID),
		zap.String("amount", r.Amount.String()),
		zap.String("available", available.String()),
	)
	return *rec.Refund, balanceErr
}

// available returns the payment amount minus its completed refunds.
// Callers must hold the payment lock.
func (l *Ledger) available(ctx context.Context, paymentID string) (decimal.Decimal, error) {
	p, err := l.GetPayment(ctx, paymentID)
	if err != nil {
		return decimal.Zero, err
	}
	refunded, err := l.completedTotal(ctx, paymentID)
	if err != nil {
		return decimal.Zero, err
	}
	return p.Amount.Sub(refunded), nil
}

func (l *Ledger) completedTotal(ctx context.Context, paymentID string) (decimal.Decimal, error) {
	recs, err := l.store.Query(ctx, store.Filter{
		Kind:      payment.KindRefund,
		PaymentID: paymentID,
		Status:    string(payment.RefundCompleted),
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger: refunds of %s: %w", paymentID, err)
	}

	total := decimal.Zero
	for _, rec := range recs {
		total = total.Add(rec.Refund.Amount)
	}
	return total, nil
}

// outbox holds the events of writes committed under a payment lock.
type outbox []events.Event

// committed records metrics for a successful write and queues its event.
func (l *Ledger) committed(out *outbox, rec payment.Record, from string) {
	label := from
	if label == "" {
		label = "none"
	}
	l.metrics.RecordTransition(string(rec.Kind), label, rec.StatusString())

	if rec.Kind == payment.KindRefund && rec.Refund.Status.Terminal() {
		l.metrics.RecordRefundOutcome(string(rec.Refund.Status))
	}

	if from != "" {
		l.logger.Debug("record transitioned",
			zap.String("kind", string(rec.Kind)),
			zap.String("id", rec.ID()),
			logging.Transition(from, rec.StatusString()),
		)
	}

	if l.notifier != nil {
		*out = append(*out, events.FromRecord(rec, from))
	}
}

// publish hands queued events to the notifier. It is deferred ahead of the
// unlock so it runs once the payment lock is released; a slow notifier then
// never holds up other writers on the same payment.
func (l *Ledger) publish(ctx context.Context, out *outbox) {
	for _, e := range *out {
		if err := l.notifier.Publish(ctx, e); err != nil {
			l.logger.Warn("event not published", zap.String("id", e.ID), zap.Error(err))
		}
	}
}

func (l *Ledger) rejected(kind payment.Kind, err error) {
	l.metrics.RecordRejectedTransition(string(kind), payment.ClassifyError(err))
	l.logger.Info("transition rejected", zap.String("kind", string(kind)), zap.Error(err))
}
