package api

import (
	"encoding/json"
	"time"

	"payment-ledger/pkg/payment"
	"payment-ledger/pkg/service"

	"github.com/shopspring/decimal"
)

// Amounts are written as JSON numbers at the currency's precision, so
// 100.5 USD renders as 100.50.
func amount(d decimal.Decimal, currency string) json.Number {
	places, ok := payment.CurrencyPrecision(currency)
	if !ok {
		return json.Number(d.String())
	}
	return json.Number(d.StringFixed(places))
}

type paymentView struct {
	ID           string      `json:"id"`
	MerchantID   string      `json:"merchant_id"`
	CustomerID   string      `json:"customer_id"`
	Amount       json.Number `json:"amount"`
	Currency     string      `json:"currency"`
	Method       string      `json:"payment_method"`
	Description  string      `json:"description,omitempty"`
	CardLastFour string      `json:"card_last_four,omitempty"`
	CardType     string      `json:"card_type,omitempty"`
	Status       string      `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`

	RefundedAmount   *json.Number `json:"refunded_amount,omitempty"`
	RefundableAmount *json.Number `json:"refundable_amount,omitempty"`
	RefundState      string       `json:"refund_state,omitempty"`
}

func newPaymentView(p payment.Payment) paymentView {
	return paymentView{
		ID:           p.ID,
		MerchantID:   p.MerchantID,
		CustomerID:   p.CustomerID,
		Amount:       amount(p.Amount, p.Currency),
		Currency:     p.Currency,
		Method:       string(p.Method),
		Description:  p.Description,
		CardLastFour: p.CardLastFour,
		CardType:     p.CardType,
		Status:       string(p.Status),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func newSummaryView(s service.Summary) paymentView {
	v := newPaymentView(s.Payment)
	refunded := amount(s.RefundedAmount, s.Payment.Currency)
	refundable := amount(s.RefundableAmount, s.Payment.Currency)
	v.RefundedAmount = &refunded
	v.RefundableAmount = &refundable
	v.RefundState = string(s.RefundState)
	return v
}

type refundView struct {
	ID        string      `json:"id"`
	PaymentID string      `json:"payment_id"`
	Amount    json.Number `json:"amount"`
	Currency  string      `json:"currency"`
	Reason    string      `json:"reason"`
	Status    string      `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func newRefundView(r payment.Refund) refundView {
	return refundView{
		ID:        r.ID,
		PaymentID: r.PaymentID,
		Amount:    amount(r.Amount, r.Currency),
		Currency:  r.Currency,
		Reason:    r.Reason,
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func newRefundViews(refunds []payment.Refund) []refundView {
	out := make([]refundView, 0, len(refunds))
	for _, r := range refunds {
		out = append(out, newRefundView(r))
	}
	return out
}

type transactionView struct {
	ID                   string      `json:"id"`
	PaymentID            string      `json:"payment_id"`
	Type                 string      `json:"transaction_type"`
	Amount               json.Number `json:"amount"`
	Currency             string      `json:"currency"`
	Status               string      `json:"status"`
	GatewayResponse      string      `json:"gateway_response"`
	GatewayTransactionID string      `json:"gateway_transaction_id"`
	CreatedAt            time.Time   `json:"created_at"`
}

func newTransactionViews(txns []service.Transaction) []transactionView {
	out := make([]transactionView, 0, len(txns))
	for _, t := range txns {
		out = append(out, transactionView{
			ID:                   t.ID,
			PaymentID:            t.PaymentID,
			Type:                 string(t.Type),
			Amount:               amount(t.Amount, t.Currency),
			Currency:             t.Currency,
			Status:               t.Status,
			GatewayResponse:      t.GatewayResponse,
			GatewayTransactionID: t.GatewayTransactionID,
			CreatedAt:            t.CreatedAt,
		})
	}
	return out
}
