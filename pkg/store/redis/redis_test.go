package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"payment-ledger/pkg/payment"
	"payment-ledger/pkg/store"

	"github.com/redis/rueidis"
)

func setupTestRedis(t *testing.T) *Store {
	config := DefaultConfig()
	config.Name = "TestRedis"
	config.KeyPrefix = "test:ledger:"
	config.DialTimeout = 2 * time.Second

	r, err := New(config)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	if err := r.Reset(context.Background()); err != nil {
		r.Close()
		t.Skipf("Redis not usable: %v", err)
	}

	return r
}

func TestNewClient_NoAddress(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("Expected error when no address is configured")
	}
}

func TestStore_PutGet(t *testing.T) {
	r := setupTestRedis(t)
	defer r.Close()

	ctx := context.Background()

	_, err := r.Get(ctx, "pay_missing")
	if !payment.IsNotFound(err) {
		t.Errorf("Expected not found, got %v", err)
	}

	stored, err := r.Put(ctx, payment.PaymentRecord(payment.Payment{ID: "pay_1", Status: payment.StatusPending}))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if stored.Seq != 1 {
		t.Errorf("Expected seq 1, got %d", stored.Seq)
	}

	updated, err := r.Put(ctx, payment.PaymentRecord(payment.Payment{ID: "pay_1", Status: payment.StatusProcessing}))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if updated.Seq != 1 {
		t.Errorf("Update changed seq to %d", updated.Seq)
	}

	got, err := r.Get(ctx, "pay_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Payment.Status != payment.StatusProcessing {
		t.Errorf("Expected processing, got %s", got.Payment.Status)
	}
}

func TestStore_Query(t *testing.T) {
	r := setupTestRedis(t)
	defer r.Close()

	ctx := context.Background()

	r.Put(ctx, payment.PaymentRecord(payment.Payment{ID: "pay_b", Status: payment.StatusSettled}))
	r.Put(ctx, payment.PaymentRecord(payment.Payment{ID: "pay_a", Status: payment.StatusFailed}))
	r.Put(ctx, payment.RefundRecord(payment.Refund{ID: "ref_1", PaymentID: "pay_b", Status: payment.RefundCompleted}))

	recs, err := r.Query(ctx, store.Filter{Kind: payment.KindPayment})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(recs) != 2 || recs[0].ID() != "pay_b" || recs[1].ID() != "pay_a" {
		t.Errorf("Unexpected query result %+v", recs)
	}

	refunds, err := r.Query(ctx, store.Filter{PaymentID: "pay_b", Kind: payment.KindRefund})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(refunds) != 1 || refunds[0].ID() != "ref_1" {
		t.Errorf("Unexpected refunds %+v", refunds)
	}
}

// commandRecorder passes commands through to a real client and keeps the
// name and key count of each one.
type commandRecorder struct {
	rueidis.Client
	mu   sync.Mutex
	seen [][]string
}

func (c *commandRecorder) record(cmd rueidis.Completed) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// The client recycles command buffers once they are sent.
	c.seen = append(c.seen, append([]string(nil), cmd.Commands()...))
}

func (c *commandRecorder) Do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	c.record(cmd)
	return c.Client.Do(ctx, cmd)
}

func (c *commandRecorder) DoMulti(ctx context.Context, cmds ...rueidis.Completed) []rueidis.RedisResult {
	for _, cmd := range cmds {
		c.record(cmd)
	}
	return c.Client.DoMulti(ctx, cmds...)
}

// Cluster mode rejects multi-key commands whose keys hash to different
// slots, so Query and Reset must only send single-key record commands.
func TestStore_SingleKeyCommands(t *testing.T) {
	base := setupTestRedis(t)
	defer base.Close()

	recorder := &commandRecorder{Client: base.Client()}
	config := base.config
	config.ScanBatch = 2
	r := NewWithClient(recorder, config)

	ctx := context.Background()
	for _, id := range []string{"pay_1", "pay_2", "pay_3", "pay_4", "pay_5"} {
		if _, err := r.Put(ctx, payment.PaymentRecord(payment.Payment{ID: id, Status: payment.StatusPending})); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	recs, err := r.Query(ctx, store.Filter{Kind: payment.KindPayment})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(recs) != 5 {
		t.Errorf("Expected 5 records across batches, got %d", len(recs))
	}

	if err := r.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if ids, _ := r.IDs(ctx); len(ids) != 0 {
		t.Errorf("Reset left %d indexed records", len(ids))
	}
	if _, err := r.Get(ctx, "pay_3"); !payment.IsNotFound(err) {
		t.Errorf("Reset left pay_3 behind: %v", err)
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	for _, cmd := range recorder.seen {
		switch cmd[0] {
		case "MGET", "KEYS":
			t.Errorf("Unexpected %s", cmd[0])
		case "DEL", "GET":
			if len(cmd) != 2 {
				t.Errorf("%s with %d keys", cmd[0], len(cmd)-1)
			}
		}
	}
}
