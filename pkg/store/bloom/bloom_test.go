package bloom

import (
	"context"
	"fmt"
	"testing"

	metricsmemory "payment-ledger/pkg/metrics/memory"
	"payment-ledger/pkg/payment"
	"payment-ledger/pkg/store/memory"
	"payment-ledger/pkg/store/mock"
)

func payRecord(id string) payment.Record {
	return payment.PaymentRecord(payment.Payment{ID: id, Status: payment.StatusPending})
}

func TestStore_BasicOperations(t *testing.T) {
	s := New(memory.New(memory.Config{Name: "test"}), Config{ExpectedItems: 100}, nil)
	defer s.Close()

	ctx := context.Background()

	if _, err := s.Put(ctx, payRecord("pay_1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.Get(ctx, "pay_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID() != "pay_1" {
		t.Errorf("Expected pay_1, got %s", got.ID())
	}
	if s.Name() != "bloom(test)" {
		t.Errorf("Unexpected name %q", s.Name())
	}
}

func TestStore_RejectsUnknownIDsAfterWarm(t *testing.T) {
	backend := mock.New("backend")
	collector := metricsmemory.NewMemoryCollector()
	s := New(backend, Config{ExpectedItems: 100}, collector)
	ctx := context.Background()

	// Not warmed yet: lookups reach the backend
	if _, err := s.Get(ctx, "pay_never"); !payment.IsNotFound(err) {
		t.Fatalf("Expected not found, got %v", err)
	}
	if backend.GetCalls() != 1 {
		t.Fatalf("Expected pass-through before warm, got %d calls", backend.GetCalls())
	}

	if err := s.Warm(ctx); err != nil {
		t.Fatalf("Warm failed: %v", err)
	}

	for i := 0; i < 10; i++ {
		s.Put(ctx, payRecord(fmt.Sprintf("pay_%d", i)))
	}

	if _, err := s.Get(ctx, "pay_never"); !payment.IsNotFound(err) {
		t.Errorf("Expected not found, got %v", err)
	}
	if backend.GetCalls() != 1 {
		t.Errorf("Warm filter must answer without the backend, got %d calls", backend.GetCalls())
	}

	stats := s.Stats()
	if !stats.Warmed || stats.BloomRejected != 1 || stats.TotalQueries != 2 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if sm := collector.GetStoreMetrics("backend"); sm == nil || sm.BloomSkips != 1 {
		t.Errorf("Expected one recorded bloom skip, got %+v", sm)
	}
}

func TestStore_WarmLoadsExistingIDs(t *testing.T) {
	base := memory.New(memory.Config{Name: "base"})
	ctx := context.Background()

	// Records written before the filter existed
	for i := 0; i < 5; i++ {
		base.Put(ctx, payRecord(fmt.Sprintf("pay_%d", i)))
	}

	s := New(base, Config{ExpectedItems: 100}, nil)
	if err := s.Warm(ctx); err != nil {
		t.Fatalf("Warm failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := s.Get(ctx, fmt.Sprintf("pay_%d", i)); err != nil {
			t.Errorf("pay_%d must be found after warm: %v", i, err)
		}
	}
}

func TestStore_CancelledContext(t *testing.T) {
	s := New(memory.New(memory.Config{}), Config{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Get(ctx, "pay_1"); err == nil {
		t.Error("Expected error for cancelled context")
	}
	if _, err := s.Put(ctx, payRecord("pay_1")); err == nil {
		t.Error("Expected error for cancelled context")
	}
}
