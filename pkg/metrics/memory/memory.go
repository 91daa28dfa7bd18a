package memory

import (
	"sync"
	"time"

	"payment-ledger/pkg/metrics"
)

// MemoryCollector implements metrics.Collector in memory, for tests and the
// report command.
type MemoryCollector struct {
	mu sync.RWMutex

	// Transitions is keyed by "kind:from->to"
	transitions map[string]int64

	// Rejections is keyed by "kind:reason"
	rejections map[string]int64

	// ValidationFailures is keyed by "kind:field:rule"
	validationFailures map[string]int64

	refundOutcomes map[string]int64

	stores     map[string]*StoreMetrics
	publishers map[string]*PublisherMetrics
	sinks      map[string]*SinkMetrics
}

// StoreMetrics holds metrics for a single record store.
type StoreMetrics struct {
	Ops          map[string]int64
	Errors       map[string]int64
	CacheHits    int64
	CacheMisses  int64
	BloomSkips   int64
	CircuitState metrics.CircuitState
	CircuitOpens int64
	Latencies    []time.Duration
}

// PublisherMetrics holds metrics for an event publisher.
type PublisherMetrics struct {
	QueueDepth int
	Dropped    int64
}

// SinkMetrics holds metrics for an event sink.
type SinkMetrics struct {
	Delivered int64
	Failed    int64
}

// NewMemoryCollector creates a new in-memory metrics collector.
func NewMemoryCollector() *MemoryCollector {
	mc := &MemoryCollector{}
	mc.reset()
	return mc
}

func (mc *MemoryCollector) reset() {
	mc.transitions = make(map[string]int64)
	mc.rejections = make(map[string]int64)
	mc.validationFailures = make(map[string]int64)
	mc.refundOutcomes = make(map[string]int64)
	mc.stores = make(map[string]*StoreMetrics)
	mc.publishers = make(map[string]*PublisherMetrics)
	mc.sinks = make(map[string]*SinkMetrics)
}

// store returns the metrics for name, creating them if needed. Callers hold mu.
func (mc *MemoryCollector) store(name string) *StoreMetrics {
	sm, ok := mc.stores[name]
	if !ok {
		sm = &StoreMetrics{Ops: make(map[string]int64), Errors: make(map[string]int64)}
		mc.stores[name] = sm
	}
	return sm
}

func (mc *MemoryCollector) publisher(name string) *PublisherMetrics {
	pm, ok := mc.publishers[name]
	if !ok {
		pm = &PublisherMetrics{}
		mc.publishers[name] = pm
	}
	return pm
}

func (mc *MemoryCollector) RecordTransition(kind, from, to string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.transitions[kind+":"+from+"->"+to]++
}

func (mc *MemoryCollector) RecordRejectedTransition(kind, reason string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.rejections[kind+":"+reason]++
}

func (mc *MemoryCollector) RecordValidationFailure(kind, field, rule string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.validationFailures[kind+":"+field+":"+rule]++
}

func (mc *MemoryCollector) RecordRefundOutcome(status string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.refundOutcomes[status]++
}

func (mc *MemoryCollector) RecordStoreOp(store, op string, success bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	sm := mc.store(store)
	sm.Ops[op]++
	if !success {
		sm.Errors[op]++
	}
	sm.Latencies = append(sm.Latencies, duration)
}

func (mc *MemoryCollector) RecordCacheLookup(store string, hit bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	sm := mc.store(store)
	if hit {
		sm.CacheHits++
	} else {
		sm.CacheMisses++
	}
}

func (mc *MemoryCollector) RecordBloomSkip(store string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.store(store).BloomSkips++
}

// RecordCircuitState records the current circuit breaker state.
func (mc *MemoryCollector) RecordCircuitState(store string, state metrics.CircuitState) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	sm := mc.store(store)
	old := sm.CircuitState
	sm.CircuitState = state

	// Count transitions to open
	if old != metrics.CircuitOpen && state == metrics.CircuitOpen {
		sm.CircuitOpens++
	}
}

func (mc *MemoryCollector) RecordQueueDepth(publisher string, depth int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.publisher(publisher).QueueDepth = depth
}

func (mc *MemoryCollector) RecordEventDropped(publisher string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.publisher(publisher).Dropped++
}

func (mc *MemoryCollector) RecordEventDelivery(sink string, success bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	sm, ok := mc.sinks[sink]
	if !ok {
		sm = &SinkMetrics{}
		mc.sinks[sink] = sm
	}
	if success {
		sm.Delivered++
	} else {
		sm.Failed++
	}
}

// Transitions returns the committed transition count for kind from -> to.
func (mc *MemoryCollector) Transitions(kind, from, to string) int64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.transitions[kind+":"+from+"->"+to]
}

// Rejections returns how often an operation on kind was rejected for reason.
func (mc *MemoryCollector) Rejections(kind, reason string) int64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.rejections[kind+":"+reason]
}

// ValidationFailures returns the failure count for one field rule.
func (mc *MemoryCollector) ValidationFailures(kind, field, rule string) int64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.validationFailures[kind+":"+field+":"+rule]
}

// RefundOutcomes returns how many refunds ended in status.
func (mc *MemoryCollector) RefundOutcomes(status string) int64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.refundOutcomes[status]
}

// GetStoreMetrics returns a copy of the metrics for one store, or nil.
func (mc *MemoryCollector) GetStoreMetrics(store string) *StoreMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	sm, ok := mc.stores[store]
	if !ok {
		return nil
	}

	cp := *sm
	cp.Ops = make(map[string]int64, len(sm.Ops))
	for k, v := range sm.Ops {
		cp.Ops[k] = v
	}
	cp.Errors = make(map[string]int64, len(sm.Errors))
	for k, v := range sm.Errors {
		cp.Errors[k] = v
	}
	cp.Latencies = append([]time.Duration(nil), sm.Latencies...)
	return &cp
}

// GetPublisherMetrics returns a copy of the metrics for one publisher, or nil.
func (mc *MemoryCollector) GetPublisherMetrics(publisher string) *PublisherMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if pm, ok := mc.publishers[publisher]; ok {
		cp := *pm
		return &cp
	}
	return nil
}

// GetSinkMetrics returns a copy of the metrics for one sink, or nil.
func (mc *MemoryCollector) GetSinkMetrics(sink string) *SinkMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if sm, ok := mc.sinks[sink]; ok {
		cp := *sm
		return &cp
	}
	return nil
}

// Reset clears all collected metrics.
func (mc *MemoryCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.reset()
}
