package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"payment-ledger/pkg/payment"

	"github.com/shopspring/decimal"
)

func TestFilter_Match(t *testing.T) {
	pay := payment.PaymentRecord(payment.Payment{
		ID:         "pay_1",
		MerchantID: "m1",
		CustomerID: "c1",
		Status:     payment.StatusSettled,
	})
	ref := payment.RefundRecord(payment.Refund{
		ID:        "ref_1",
		PaymentID: "pay_1",
		Status:    payment.RefundCompleted,
	})

	tests := []struct {
		name     string
		filter   Filter
		rec      payment.Record
		expected bool
	}{
		{"empty matches payment", Filter{}, pay, true},
		{"empty matches refund", Filter{}, ref, true},
		{"kind", Filter{Kind: payment.KindRefund}, pay, false},
		{"status", Filter{Status: "settled"}, pay, true},
		{"status mismatch", Filter{Status: "pending"}, pay, false},
		{"payment id on refund", Filter{PaymentID: "pay_1"}, ref, true},
		{"payment id on payment", Filter{PaymentID: "pay_1"}, pay, true},
		{"merchant", Filter{MerchantID: "m1"}, pay, true},
		{"merchant excludes refunds", Filter{MerchantID: "m1"}, ref, false},
		{"customer mismatch", Filter{CustomerID: "c2"}, pay, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(tt.rec); got != tt.expected {
				t.Errorf("Match() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(payment.Record{Kind: payment.KindPayment}); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("Expected ErrInvalidRecord for missing body, got %v", err)
	}
	if err := Validate(payment.PaymentRecord(payment.Payment{})); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("Expected ErrInvalidRecord for missing id, got %v", err)
	}
	if err := Validate(payment.Record{Kind: "other"}); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("Expected ErrInvalidRecord for unknown kind, got %v", err)
	}
	if err := Validate(payment.RefundRecord(payment.Refund{ID: "ref_1"})); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	rec := payment.PaymentRecord(payment.Payment{
		ID:        "pay_1",
		Amount:    decimal.RequireFromString("150.75"),
		Currency:  "USD",
		Status:    payment.StatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	})
	rec.Seq = 7

	data, err := Encode(rec)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Seq != 7 || got.Kind != payment.KindPayment {
		t.Errorf("envelope lost: %+v", got)
	}
	if !got.Payment.Amount.Equal(rec.Payment.Amount) || !got.Payment.CreatedAt.Equal(now) {
		t.Errorf("payment body changed: %+v", got.Payment)
	}

	if _, err := Decode([]byte(`{"kind":"payment"}`)); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("Expected ErrInvalidRecord for empty body, got %v", err)
	}
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Error("Expected error for garbage input")
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{nil, "none"},
		{ErrCircuitOpen, "circuit_breaker_open"},
		{fmt.Errorf("get: %w", ErrTimeout), "timeout"},
		{NotFound("pay_1"), "not_found"},
		{ErrUnavailable, "unavailable"},
		{ErrInvalidRecord, "invalid_record"},
		{context.DeadlineExceeded, "other"},
		{errors.New("dial tcp: connection refused"), "connection"},
		{errors.New("json: cannot unmarshal"), "serialization"},
		{errors.New("sql: database is closed"), "backend"},
	}

	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.expected {
			t.Errorf("ClassifyError(%v) = %q, want %q", tt.err, got, tt.expected)
		}
	}
}

func TestWrapError(t *testing.T) {
	if WrapError(nil, "memory", "get") != nil {
		t.Error("WrapError(nil) must be nil")
	}
	err := WrapError(NotFound("x"), "memory", "get")
	if !payment.IsNotFound(err) {
		t.Errorf("wrapped error lost its cause: %v", err)
	}
}
