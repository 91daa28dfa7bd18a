package service

import (
	"context"
	"time"

	"payment-ledger/pkg/payment"

	"github.com/shopspring/decimal"
)

// RefundState summarises how much of a payment has been returned.
// It is derived from completed refunds and never stored.
type RefundState string

const (
	RefundStateNone    RefundState = "none"
	RefundStatePartial RefundState = "partial"
	RefundStateFull    RefundState = "full"
)

// Summary is a payment together with its refund accounting.
type Summary struct {
	Payment          payment.Payment `json:"payment"`
	RefundedAmount   decimal.Decimal `json:"refunded_amount"`
	RefundableAmount decimal.Decimal `json:"refundable_amount"`
	RefundState      RefundState     `json:"refund_state"`
}

// Summary returns the payment with its refunded and refundable amounts.
// Only settled payments have a refundable amount.
func (s *Service) Summary(ctx context.Context, paymentID string) (Summary, error) {
	p, err := s.ledger.GetPayment(ctx, paymentID)
	if err != nil {
		return Summary{}, err
	}
	refunded, err := s.ledger.RefundedTotal(ctx, paymentID)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{
		Payment:          p,
		RefundedAmount:   refunded,
		RefundableAmount: decimal.Zero,
		RefundState:      RefundStateNone,
	}
	if p.Status == payment.StatusSettled {
		sum.RefundableAmount = p.Amount.Sub(refunded)
	}
	switch {
	case refunded.IsZero():
	case refunded.GreaterThanOrEqual(p.Amount):
		sum.RefundState = RefundStateFull
	default:
		sum.RefundState = RefundStatePartial
	}
	return sum, nil
}

// TransactionType distinguishes money in from money out.
type TransactionType string

const (
	TransactionCharge TransactionType = "charge"
	TransactionRefund TransactionType = "refund"
)

// Processor responses reported on transactions.
const (
	ResponseApproved = "APPROVED"
	ResponseDeclined = "DECLINED"
	ResponsePending  = "PENDING"
)

// Transaction is one movement of funds against a payment: the charge itself
// or one of its refunds.
type Transaction struct {
	ID                   string          `json:"id"`
	PaymentID            string          `json:"payment_id"`
	Type                 TransactionType `json:"transaction_type"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency"`
	Status               string          `json:"status"`
	GatewayResponse      string          `json:"gateway_response"`
	GatewayTransactionID string          `json:"gateway_transaction_id"`
	CreatedAt            time.Time       `json:"created_at"`
}

// Transactions lists the charge of a payment followed by its refunds, in
// creation order. A payment that never reached processing has no charge yet.
func (s *Service) Transactions(ctx context.Context, paymentID string) ([]Transaction, error) {
	p, err := s.ledger.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	refunds, err := s.ledger.RefundsFor(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	txns := make([]Transaction, 0, len(refunds)+1)
	if p.Status != payment.StatusPending {
		txns = append(txns, Transaction{
			ID:                   "txn_" + p.ID,
			PaymentID:            p.ID,
			Type:                 TransactionCharge,
			Amount:               p.Amount,
			Currency:             p.Currency,
			Status:               string(p.Status),
			GatewayResponse:      chargeResponse(p.Status),
			GatewayTransactionID: "gw_" + p.ID,
			CreatedAt:            p.UpdatedAt,
		})
	}
	for _, r := range refunds {
		txns = append(txns, Transaction{
			ID:                   "txn_" + r.ID,
			PaymentID:            p.ID,
			Type:                 TransactionRefund,
			Amount:               r.Amount,
			Currency:             r.Currency,
			Status:               string(r.Status),
			GatewayResponse:      refundResponse(r.Status),
			GatewayTransactionID: "gw_" + r.ID,
			CreatedAt:            r.CreatedAt,
		})
	}
	return txns, nil
}

func chargeResponse(s payment.Status) string {
	switch s {
	case payment.StatusSettled:
		return ResponseApproved
	case payment.StatusFailed:
		return ResponseDeclined
	default:
		return ResponsePending
	}
}

func refundResponse(s payment.RefundStatus) string {
	switch s {
	case payment.RefundCompleted:
		return ResponseApproved
	case payment.RefundFailed:
		return ResponseDeclined
	default:
		return ResponsePending
	}
}
