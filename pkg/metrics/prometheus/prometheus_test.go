package prometheus

import (
	"testing"
	"time"

	"payment-ledger/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusCollector_Register(t *testing.T) {
	pc := NewPrometheusCollector("ledger_test")
	registry := prometheus.NewRegistry()

	if err := pc.Register(registry); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// Registering twice must fail on duplicate collectors
	if err := pc.Register(registry); err == nil {
		t.Error("Expected duplicate registration error")
	}
}

func TestPrometheusCollector_Records(t *testing.T) {
	pc := NewPrometheusCollector("ledger_test")

	pc.RecordTransition("payment", "pending", "processing")
	pc.RecordTransition("payment", "pending", "processing")
	pc.RecordRejectedTransition("refund", "refund_exceeds_balance")
	pc.RecordValidationFailure("payment", "amount", "precision")
	pc.RecordRefundOutcome("failed")
	pc.RecordStoreOp("memory", "put", false, time.Millisecond)
	pc.RecordCacheLookup("cached", true)
	pc.RecordBloomSkip("bloom")
	pc.RecordCircuitState("sql", metrics.CircuitOpen)
	pc.RecordQueueDepth("events", 3)
	pc.RecordEventDropped("events")
	pc.RecordEventDelivery("log", true, time.Millisecond)

	checks := []struct {
		name     string
		got      float64
		expected float64
	}{
		{"transitions", testutil.ToFloat64(pc.transitions.WithLabelValues("payment", "pending", "processing")), 2},
		{"rejections", testutil.ToFloat64(pc.rejectedTransitions.WithLabelValues("refund", "refund_exceeds_balance")), 1},
		{"validation", testutil.ToFloat64(pc.validationFailures.WithLabelValues("payment", "amount", "precision")), 1},
		{"refunds", testutil.ToFloat64(pc.refundOutcomes.WithLabelValues("failed")), 1},
		{"store errors", testutil.ToFloat64(pc.storeOps.WithLabelValues("memory", "put", "error")), 1},
		{"cache hits", testutil.ToFloat64(pc.cacheLookups.WithLabelValues("cached", "hit")), 1},
		{"bloom", testutil.ToFloat64(pc.bloomSkips.WithLabelValues("bloom")), 1},
		{"circuit state", testutil.ToFloat64(pc.circuitState.WithLabelValues("sql")), 1},
		{"circuit opens", testutil.ToFloat64(pc.circuitOpens.WithLabelValues("sql")), 1},
		{"queue depth", testutil.ToFloat64(pc.queueDepth.WithLabelValues("events")), 3},
		{"dropped", testutil.ToFloat64(pc.droppedEvents.WithLabelValues("events")), 1},
		{"deliveries", testutil.ToFloat64(pc.eventDeliveries.WithLabelValues("log", "success")), 1},
	}

	for _, c := range checks {
		if c.got != c.expected {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.expected)
		}
	}
}

func TestPrometheusCollector_ImplementsCollector(t *testing.T) {
	var _ metrics.Collector = NewPrometheusCollector("x")
}
