package payment

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func TestStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from     Status
		to       Status
		expected bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusSettled, false},
		{StatusPending, StatusFailed, false},
		{StatusProcessing, StatusSettled, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusPending, false},
		{StatusSettled, StatusFailed, false},
		{StatusSettled, StatusProcessing, false},
		{StatusFailed, StatusSettled, false},
		{Status("bogus"), StatusProcessing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.expected {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	if StatusPending.Terminal() || StatusProcessing.Terminal() {
		t.Error("pending and processing must not be terminal")
	}
	if !StatusSettled.Terminal() || !StatusFailed.Terminal() {
		t.Error("settled and failed must be terminal")
	}
	if Status("unknown").Terminal() {
		t.Error("unknown status reported terminal")
	}
	if !RefundCompleted.Terminal() || !RefundFailed.Terminal() || RefundPending.Terminal() {
		t.Error("refund terminal states wrong")
	}
}

func TestPayment_Advance(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	later := created.Add(time.Minute)

	p := Payment{
		ID:        "pay_1",
		Amount:    decimal.RequireFromString("100.00"),
		Currency:  "USD",
		Status:    StatusPending,
		CreatedAt: created,
		UpdatedAt: created,
	}

	next, err := p.Advance(StatusProcessing, fixedClock(later))
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if next.Status != StatusProcessing {
		t.Errorf("Expected processing, got %s", next.Status)
	}
	if !next.UpdatedAt.Equal(later) {
		t.Errorf("Expected UpdatedAt %v, got %v", later, next.UpdatedAt)
	}
	if p.Status != StatusPending {
		t.Error("Advance mutated the receiver")
	}

	_, err = p.Advance(StatusSettled, fixedClock(later))
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Expected ErrInvalidTransition, got %v", err)
	}

	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("Expected *TransitionError, got %T", err)
	}
	if te.From != "pending" || te.To != "settled" {
		t.Errorf("TransitionError names %s->%s, want pending->settled", te.From, te.To)
	}
}

func TestRefund_Advance(t *testing.T) {
	r := Refund{ID: "ref_1", Status: RefundPending}

	done, err := r.Advance(RefundCompleted, SystemClock)
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}

	if _, err := done.Advance(RefundFailed, SystemClock); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition from terminal refund, got %v", err)
	}
}
