package payment

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, "none"},
		{"validation", ErrValidation, "validation"},
		{"transition", &TransitionError{Kind: KindPayment, From: "settled", To: "failed"}, "invalid_transition"},
		{"not settled", ErrPaymentNotSettled, "payment_not_settled"},
		{"exceeds", fmt.Errorf("refund ref_1: %w", ErrRefundExceedsBalance), "refund_exceeds_balance"},
		{"not found", fmt.Errorf("get: %w", ErrNotFound), "not_found"},
		{"other", errors.New("disk on fire"), "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.expected {
				t.Errorf("ClassifyError(%v) = %q, want %q", tt.err, got, tt.expected)
			}
		})
	}
}

func TestRecord_Clone(t *testing.T) {
	rec := PaymentRecord(Payment{ID: "pay_1", Status: StatusPending})
	cp := rec.Clone()
	cp.Payment.Status = StatusSettled

	if rec.Payment.Status != StatusPending {
		t.Error("Clone shares the payment pointer")
	}
	if cp.ID() != "pay_1" || cp.PaymentID() != "pay_1" {
		t.Errorf("unexpected ids %q/%q", cp.ID(), cp.PaymentID())
	}

	ref := RefundRecord(Refund{ID: "ref_1", PaymentID: "pay_1", Status: RefundPending})
	if ref.PaymentID() != "pay_1" || ref.StatusString() != "pending" {
		t.Errorf("unexpected refund record view %q/%q", ref.PaymentID(), ref.StatusString())
	}
}

func TestSequenceGenerator(t *testing.T) {
	var g SequenceGenerator
	if id := g.NewID(KindPayment); id != "pay_1" {
		t.Errorf("Expected pay_1, got %s", id)
	}
	if id := g.NewID(KindRefund); id != "ref_2" {
		t.Errorf("Expected ref_2, got %s", id)
	}

	u := UUIDGenerator{}
	a, b := u.NewID(KindPayment), u.NewID(KindPayment)
	if a == b {
		t.Error("UUIDGenerator returned a duplicate id")
	}
}
