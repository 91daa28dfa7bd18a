package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a payment.
type Status string

const (
	// StatusPending is the initial state of every payment.
	StatusPending Status = "pending"
	// StatusProcessing means the simulated processor has picked the payment up.
	StatusProcessing Status = "processing"
	// StatusSettled is terminal: funds moved.
	StatusSettled Status = "settled"
	// StatusFailed is terminal: the processor declined the payment.
	StatusFailed Status = "failed"
)

// RefundStatus is the lifecycle state of a refund.
type RefundStatus string

const (
	RefundPending   RefundStatus = "pending"
	RefundCompleted RefundStatus = "completed"
	RefundFailed    RefundStatus = "failed"
)

// Method is the instrument a payment is made with.
type Method string

const (
	MethodCreditCard    Method = "credit_card"
	MethodDebitCard     Method = "debit_card"
	MethodBankTransfer  Method = "bank_transfer"
	MethodDigitalWallet Method = "digital_wallet"
)

// IsCard reports whether the method carries card details.
func (m Method) IsCard() bool {
	return m == MethodCreditCard || m == MethodDebitCard
}

// Valid reports whether m is a known payment method.
func (m Method) Valid() bool {
	switch m {
	case MethodCreditCard, MethodDebitCard, MethodBankTransfer, MethodDigitalWallet:
		return true
	}
	return false
}

// Payment is an attempt to move funds, tracked through its lifecycle.
// Amount and Currency never change after creation; only Status and UpdatedAt do.
type Payment struct {
	ID           string          `json:"id"`
	MerchantID   string          `json:"merchant_id"`
	CustomerID   string          `json:"customer_id"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Method       Method          `json:"payment_method"`
	Description  string          `json:"description,omitempty"`
	CardLastFour string          `json:"card_last_four,omitempty"`
	CardType     string          `json:"card_type,omitempty"`
	Status       Status          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Terminal reports whether the payment can no longer change state.
func (p Payment) Terminal() bool {
	return p.Status.Terminal()
}

// Refund returns funds against a previously settled payment.
type Refund struct {
	ID        string          `json:"id"`
	PaymentID string          `json:"payment_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Reason    string          `json:"reason"`
	Status    RefundStatus    `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Kind identifies which record type a Record carries.
type Kind string

const (
	KindPayment Kind = "payment"
	KindRefund  Kind = "refund"
)

// Record is the storage envelope for payments and refunds.
// Exactly one of Payment and Refund is set, matching Kind.
type Record struct {
	Kind    Kind
	Seq     int64
	Payment *Payment
	Refund  *Refund
}

// PaymentRecord wraps a payment in a Record.
func PaymentRecord(p Payment) Record {
	return Record{Kind: KindPayment, Payment: &p}
}

// RefundRecord wraps a refund in a Record.
func RefundRecord(r Refund) Record {
	return Record{Kind: KindRefund, Refund: &r}
}

// ID returns the identifier of the wrapped record.
func (r Record) ID() string {
	switch r.Kind {
	case KindPayment:
		if r.Payment != nil {
			return r.Payment.ID
		}
	case KindRefund:
		if r.Refund != nil {
			return r.Refund.ID
		}
	}
	return ""
}

// PaymentID returns the payment the record belongs to: its own id for
// payments, the parent id for refunds.
func (r Record) PaymentID() string {
	if r.Kind == KindRefund && r.Refund != nil {
		return r.Refund.PaymentID
	}
	return r.ID()
}

// StatusString returns the record status as a plain string.
func (r Record) StatusString() string {
	switch {
	case r.Kind == KindPayment && r.Payment != nil:
		return string(r.Payment.Status)
	case r.Kind == KindRefund && r.Refund != nil:
		return string(r.Refund.Status)
	}
	return ""
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (r Record) Clone() Record {
	out := Record{Kind: r.Kind, Seq: r.Seq}
	if r.Payment != nil {
		p := *r.Payment
		out.Payment = &p
	}
	if r.Refund != nil {
		rf := *r.Refund
		out.Refund = &rf
	}
	return out
}
