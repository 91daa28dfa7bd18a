// Package service runs payment and refund requests through validation, the
// state machines and the ledger as one operation each.
package service

import (
	"context"
	"errors"

	"payment-ledger/pkg/ledger"
	"payment-ledger/pkg/logging"
	"payment-ledger/pkg/metrics"
	"payment-ledger/pkg/payment"
	"payment-ledger/pkg/validation"

	"go.uber.org/zap"
)

// Service is the entry point used by transports.
type Service struct {
	ledger  *ledger.Ledger
	policy  ledger.OutcomePolicy
	limits  validation.Limits
	metrics metrics.Collector
	logger  *logging.Logger
}

// Config holds the service collaborators. Zero fields get defaults.
type Config struct {
	// Policy decides the outcome of processing (default: ledger.ApproveAll)
	Policy ledger.OutcomePolicy

	// Limits bounds payment requests (default: validation.DefaultLimits)
	Limits validation.Limits

	Metrics metrics.Collector
	Logger  *logging.Logger
}

// New returns a service over l.
func New(l *ledger.Ledger, config Config) *Service {
	if config.Policy == nil {
		config.Policy = ledger.ApproveAll()
	}
	if config.Limits.MaxAmount.IsZero() && config.Limits.MaxIDLength == 0 && config.Limits.MaxTextLength == 0 {
		config.Limits = validation.DefaultLimits()
	}
	if config.Metrics == nil {
		config.Metrics = metrics.NoOpCollector{}
	}
	if config.Logger == nil {
		config.Logger = logging.L()
	}

	return &Service{
		ledger:  l,
		policy:  config.Policy,
		limits:  config.Limits,
		metrics: config.Metrics,
		logger:  config.Logger.Named("service"),
	}
}

// CreatePayment validates req, records the payment and drives it through
// processing to settled or failed. On success the returned payment is always
// terminal. If a step after creation fails, the payment is returned at the
// last committed status together with the error.
func (s *Service) CreatePayment(ctx context.Context, req validation.PaymentRequest) (payment.Payment, error) {
	v, err := validation.ValidatePayment(req, s.limits)
	if err != nil {
		s.validationFailed(payment.KindPayment, err)
		return payment.Payment{}, err
	}

	p, err := s.ledger.CreatePayment(ctx, v)
	if err != nil {
		return payment.Payment{}, err
	}

	return s.process(ctx, p)
}

// ProcessPayment resumes a payment left pending or processing. Terminal
// payments are returned unchanged with an invalid transition error.
func (s *Service) ProcessPayment(ctx context.Context, id string) (payment.Payment, error) {
	p, err := s.ledger.GetPayment(ctx, id)
	if err != nil {
		return payment.Payment{}, err
	}
	return s.process(ctx, p)
}

func (s *Service) process(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	if p.Status != payment.StatusProcessing {
		next, err := s.ledger.TransitionPayment(ctx, p.ID, payment.StatusProcessing)
		if err != nil {
			return next, err
		}
		p = next
	}

	outcome := s.policy.Decide(ctx, p)
	if outcome != payment.StatusSettled && outcome != payment.StatusFailed {
		s.logger.Warn("outcome policy returned a non-terminal status, failing payment",
			logging.PaymentID(p.ID),
			zap.String("outcome", string(outcome)),
		)
		outcome = payment.StatusFailed
	}

	final, err := s.ledger.TransitionPayment(ctx, p.ID, outcome)
	if err != nil {
		return final, err
	}

	s.logger.Info("payment processed",
		logging.PaymentID(final.ID),
		zap.String("status", string(final.Status)),
	)
	return final, nil
}

// CreateRefund validates req against the payment, records a pending refund
// and completes it. When completion would exceed the refundable balance the
// refund is returned in its failed state together with
// payment.ErrRefundExceedsBalance.
func (s *Service) CreateRefund(ctx context.Context, paymentID string, req validation.RefundRequest) (payment.Refund, error) {
	p, err := s.ledger.GetPayment(ctx, paymentID)
	if err != nil {
		return payment.Refund{}, err
	}

	v, err := validation.ValidateRefund(req, p, s.limits)
	if err != nil {
		s.validationFailed(payment.KindRefund, err)
		return payment.Refund{}, err
	}

	r, err := s.ledger.CreateRefund(ctx, v)
	if err != nil {
		return payment.Refund{}, err
	}
	return s.CompleteRefund(ctx, r.ID)
}

// CompleteRefund finishes a refund left pending, e.g. by a store failure
// between CreateRefund's two writes. The balance check is the same as at
// creation. A refund that is already completed or failed yields
// payment.ErrInvalidTransition together with its current state.
func (s *Service) CompleteRefund(ctx context.Context, id string) (payment.Refund, error) {
	final, err := s.ledger.TransitionRefund(ctx, id, payment.RefundCompleted)
	if err != nil {
		return final, err
	}

	s.logger.Info("refund completed",
		logging.RefundID(final.ID),
		logging.PaymentID(final.PaymentID),
		zap.String("amount", final.Amount.String()),
	)
	return final, nil
}

func (s *Service) validationFailed(kind payment.Kind, err error) {
	var verr *validation.Error
	if !errors.As(err, &verr) {
		return
	}
	for _, f := range verr.Fields {
		s.metrics.RecordValidationFailure(string(kind), f.Field, f.Rule)
	}
	s.logger.Debug("request rejected",
		zap.String("kind", string(kind)),
		zap.Strings("errors", verr.Messages()),
	)
}

// GetPayment returns a payment by id.
func (s *Service) GetPayment(ctx context.Context, id string) (payment.Payment, error) {
	return s.ledger.GetPayment(ctx, id)
}

// GetRefund returns a refund by id.
func (s *Service) GetRefund(ctx context.Context, id string) (payment.Refund, error) {
	return s.ledger.GetRefund(ctx, id)
}

// ListPayments returns one page of payments.
func (s *Service) ListPayments(ctx context.Context, f ledger.PaymentFilter) (ledger.Page, error) {
	return s.ledger.ListPayments(ctx, f)
}

// Refunds returns the refunds of a payment in creation order.
func (s *Service) Refunds(ctx context.Context, paymentID string) ([]payment.Refund, error) {
	return s.ledger.RefundsFor(ctx, paymentID)
}
