package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"payment-ledger/pkg/payment"
	"payment-ledger/pkg/store"
)

func payRecord(id string, status payment.Status) payment.Record {
	return payment.PaymentRecord(payment.Payment{ID: id, MerchantID: "m1", Status: status})
}

func TestStore_PutGet(t *testing.T) {
	s := New(Config{Name: "test"})
	defer s.Close()

	ctx := context.Background()

	// Get non-existent id
	_, err := s.Get(ctx, "pay_missing")
	if !payment.IsNotFound(err) {
		t.Errorf("Expected not found, got %v", err)
	}

	stored, err := s.Put(ctx, payRecord("pay_1", payment.StatusPending))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if stored.Seq != 1 {
		t.Errorf("Expected seq 1, got %d", stored.Seq)
	}

	got, err := s.Get(ctx, "pay_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Payment.Status != payment.StatusPending {
		t.Errorf("Expected pending, got %s", got.Payment.Status)
	}
}

func TestStore_ReplaceKeepsSeq(t *testing.T) {
	s := New(Config{})
	defer s.Close()

	ctx := context.Background()

	s.Put(ctx, payRecord("pay_1", payment.StatusPending))
	s.Put(ctx, payRecord("pay_2", payment.StatusPending))

	updated, err := s.Put(ctx, payRecord("pay_1", payment.StatusProcessing))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if updated.Seq != 1 {
		t.Errorf("Replace changed seq to %d", updated.Seq)
	}

	if stats := s.Stats(); stats.Records != 2 || stats.LastSeq != 2 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestStore_Isolation(t *testing.T) {
	s := New(Config{})
	defer s.Close()

	ctx := context.Background()

	rec := payRecord("pay_1", payment.StatusPending)
	s.Put(ctx, rec)

	// Mutating the caller's copy must not reach the store
	rec.Payment.Status = payment.StatusSettled

	got, _ := s.Get(ctx, "pay_1")
	if got.Payment.Status != payment.StatusPending {
		t.Error("store shares memory with the caller on Put")
	}

	got.Payment.Status = payment.StatusFailed
	again, _ := s.Get(ctx, "pay_1")
	if again.Payment.Status != payment.StatusPending {
		t.Error("store shares memory with the caller on Get")
	}
}

func TestStore_QueryOrder(t *testing.T) {
	s := New(Config{})
	defer s.Close()

	ctx := context.Background()

	s.Put(ctx, payRecord("pay_b", payment.StatusSettled))
	s.Put(ctx, payRecord("pay_a", payment.StatusFailed))
	s.Put(ctx, payment.RefundRecord(payment.Refund{ID: "ref_1", PaymentID: "pay_b", Status: payment.RefundCompleted}))
	s.Put(ctx, payRecord("pay_c", payment.StatusSettled))

	tests := []struct {
		name     string
		filter   store.Filter
		expected []string
	}{
		{"all", store.Filter{}, []string{"pay_b", "pay_a", "ref_1", "pay_c"}},
		{"settled payments", store.Filter{Kind: payment.KindPayment, Status: "settled"}, []string{"pay_b", "pay_c"}},
		{"refunds of pay_b", store.Filter{Kind: payment.KindRefund, PaymentID: "pay_b"}, []string{"ref_1"}},
		{"none", store.Filter{Status: "processing"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := s.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(recs) != len(tt.expected) {
				t.Fatalf("Expected %d records, got %d", len(tt.expected), len(recs))
			}
			for i, id := range tt.expected {
				if recs[i].ID() != id {
					t.Errorf("position %d: expected %s, got %s", i, id, recs[i].ID())
				}
			}
		})
	}
}

func TestStore_InvalidRecord(t *testing.T) {
	s := New(Config{})
	defer s.Close()

	_, err := s.Put(context.Background(), payment.Record{Kind: payment.KindPayment})
	if !errors.Is(err, store.ErrInvalidRecord) {
		t.Errorf("Expected ErrInvalidRecord, got %v", err)
	}
}

func TestStore_Closed(t *testing.T) {
	s := New(Config{})
	s.Close()

	if _, err := s.Get(context.Background(), "pay_1"); !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable after Close, got %v", err)
	}
}

func TestStore_Concurrency(t *testing.T) {
	s := New(Config{})
	defer s.Close()

	ctx := context.Background()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			id := fmt.Sprintf("pay_%d", n)
			if _, err := s.Put(ctx, payRecord(id, payment.StatusPending)); err != nil {
				t.Errorf("Concurrent Put failed: %v", err)
			}
			if _, err := s.Get(ctx, id); err != nil {
				t.Errorf("Concurrent Get failed: %v", err)
			}
			if _, err := s.Query(ctx, store.Filter{}); err != nil {
				t.Errorf("Concurrent Query failed: %v", err)
			}
		}(i)
	}

	wg.Wait()

	if stats := s.Stats(); stats.Payments != 20 || stats.LastSeq != 20 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func BenchmarkStore_Get(b *testing.B) {
	s := New(Config{Name: "bench"})
	defer s.Close()

	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		s.Put(ctx, payRecord(fmt.Sprintf("pay_%d", i), payment.StatusPending))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			s.Get(ctx, fmt.Sprintf("pay_%d", i%1000))
			i++
		}
	})
}
