package prometheus

import (
	"time"

	"payment-ledger/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements metrics.Collector for Prometheus.
type PrometheusCollector struct {
	namespace string

	// Ledger
	transitions         *prometheus.CounterVec
	rejectedTransitions *prometheus.CounterVec
	validationFailures  *prometheus.CounterVec
	refundOutcomes      *prometheus.CounterVec

	// Stores
	storeOps     *prometheus.CounterVec
	storeLatency *prometheus.HistogramVec
	cacheLookups *prometheus.CounterVec
	bloomSkips   *prometheus.CounterVec
	circuitOpens *prometheus.CounterVec
	circuitState *prometheus.GaugeVec

	// Events
	queueDepth      *prometheus.GaugeVec
	droppedEvents   *prometheus.CounterVec
	eventDeliveries *prometheus.CounterVec
	deliveryLatency *prometheus.HistogramVec
}

// NewPrometheusCollector creates a new Prometheus metrics collector.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	return &PrometheusCollector{
		namespace: namespace,
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Committed state transitions per record kind",
			},
			[]string{"kind", "from", "to"},
		),
		rejectedTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rejected_operations_total",
				Help:      "Ledger operations rejected per record kind and reason",
			},
			[]string{"kind", "reason"},
		),
		validationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_failures_total",
				Help:      "Request validation failures per field and rule",
			},
			[]string{"kind", "field", "rule"},
		),
		refundOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refund_outcomes_total",
				Help:      "Refunds reaching a terminal status",
			},
			[]string{"status"},
		),
		storeOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Record store operations per store, operation and status",
			},
			[]string{"store", "operation", "status"},
		),
		storeLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Record store operation latency",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15), // 0.1ms to ~3s
			},
			[]string{"store", "operation"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "read_cache_lookups_total",
				Help:      "Read cache lookups per store and result",
			},
			[]string{"store", "result"},
		),
		bloomSkips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bloom_skips_total",
				Help:      "Lookups answered as missing by the bloom filter",
			},
			[]string{"store"},
		),
		circuitOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_opens_total",
				Help:      "Total number of circuit breaker opens per store",
			},
			[]string{"store"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Current circuit breaker state per store (0=closed, 1=open, 2=half-open)",
			},
			[]string{"store"},
		),
		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "event_queue_depth",
				Help:      "Current event publisher queue depth",
			},
			[]string{"publisher"},
		),
		droppedEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_dropped_total",
				Help:      "Events dropped because the queue was full",
			},
			[]string{"publisher"},
		),
		eventDeliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "event_deliveries_total",
				Help:      "Event deliveries per sink and status",
			},
			[]string{"sink", "status"},
		),
		deliveryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "event_delivery_duration_seconds",
				Help:      "Event delivery latency per sink",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15),
			},
			[]string{"sink"},
		),
	}
}

// Register registers all metrics with the given Prometheus registerer.
func (pc *PrometheusCollector) Register(registry prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		pc.transitions,
		pc.rejectedTransitions,
		pc.validationFailures,
		pc.refundOutcomes,
		pc.storeOps,
		pc.storeLatency,
		pc.cacheLookups,
		pc.bloomSkips,
		pc.circuitOpens,
		pc.circuitState,
		pc.queueDepth,
		pc.droppedEvents,
		pc.eventDeliveries,
		pc.deliveryLatency,
	}

	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}

	return nil
}

func (pc *PrometheusCollector) RecordTransition(kind, from, to string) {
	pc.transitions.WithLabelValues(kind, from, to).Inc()
}

func (pc *PrometheusCollector) RecordRejectedTransition(kind, reason string) {
	pc.rejectedTransitions.WithLabelValues(kind, reason).Inc()
}

func (pc *PrometheusCollector) RecordValidationFailure(kind, field, rule string) {
	pc.validationFailures.WithLabelValues(kind, field, rule).Inc()
}

func (pc *PrometheusCollector) RecordRefundOutcome(status string) {
	pc.refundOutcomes.WithLabelValues(status).Inc()
}

// RecordStoreOp records one store operation and its latency.
func (pc *PrometheusCollector) RecordStoreOp(store, op string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	pc.storeOps.WithLabelValues(store, op, status).Inc()
	pc.storeLatency.WithLabelValues(store, op).Observe(duration.Seconds())
}

func (pc *PrometheusCollector) RecordCacheLookup(store string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	pc.cacheLookups.WithLabelValues(store, result).Inc()
}

func (pc *PrometheusCollector) RecordBloomSkip(store string) {
	pc.bloomSkips.WithLabelValues(store).Inc()
}

// RecordCircuitState records the current circuit breaker state.
func (pc *PrometheusCollector) RecordCircuitState(store string, state metrics.CircuitState) {
	pc.circuitState.WithLabelValues(store).Set(float64(state))
	if state == metrics.CircuitOpen {
		pc.circuitOpens.WithLabelValues(store).Inc()
	}
}

func (pc *PrometheusCollector) RecordQueueDepth(publisher string, depth int) {
	pc.queueDepth.WithLabelValues(publisher).Set(float64(depth))
}

func (pc *PrometheusCollector) RecordEventDropped(publisher string) {
	pc.droppedEvents.WithLabelValues(publisher).Inc()
}

func (pc *PrometheusCollector) RecordEventDelivery(sink string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	pc.eventDeliveries.WithLabelValues(sink, status).Inc()
	pc.deliveryLatency.WithLabelValues(sink).Observe(duration.Seconds())
}
