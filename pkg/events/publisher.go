package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"payment-ledger/pkg/logging"
	"payment-ledger/pkg/metrics"

	"go.uber.org/zap"
)

// Publisher fans events out to sinks from a bounded queue served by a worker pool.
// Publish never blocks longer than MaxWaitTime; when the queue stays full the
// event is dropped and counted. Ordering is only preserved with a single worker.
type Publisher struct {
	sinks   []Sink
	queue   chan Event
	wg      sync.WaitGroup
	config  PublisherConfig
	metrics metrics.Collector
	logger  *logging.Logger

	mu     sync.RWMutex
	closed bool

	// Statistics (accessed atomically)
	pending   int64
	published int64
	dropped   int64
	delivered int64
	failed    int64

	metricsTicker *time.Ticker
	metricsStop   chan struct{}
}

// PublisherConfig configures the publisher.
type PublisherConfig struct {
	// Name labels the publisher in metrics and logs (default: "events")
	Name string

	// QueueSize is the bounded queue size (default: 1000)
	QueueSize int

	// Workers is the number of concurrent workers (default: 2)
	Workers int

	// MaxWaitTime is how long Publish waits for room in a full queue.
	// Negative means drop immediately (default: 10ms)
	MaxWaitTime time.Duration

	// DeliveryTimeout bounds a single sink delivery (default: 5s)
	DeliveryTimeout time.Duration

	// ReportInterval is how often queue depth is reported (default: 5s)
	ReportInterval time.Duration
}

func (c PublisherConfig) withDefaults() PublisherConfig {
	if c.Name == "" {
		c.Name = "events"
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1000
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.MaxWaitTime == 0 {
		c.MaxWaitTime = 10 * time.Millisecond
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = 5 * time.Second
	}
	if c.ReportInterval <= 0 {
		c.ReportInterval = 5 * time.Second
	}
	return c
}

// NewPublisher starts a publisher delivering to sinks. It must be closed with Close.
func NewPublisher(config PublisherConfig, sinks ...Sink) *Publisher {
	return NewPublisherWithMetrics(config, metrics.NoOpCollector{}, sinks...)
}

// NewPublisherWithMetrics starts a publisher that reports to collector.
func NewPublisherWithMetrics(config PublisherConfig, collector metrics.Collector, sinks ...Sink) *Publisher {
	config = config.withDefaults()

	p := &Publisher{
		sinks:         sinks,
		queue:         make(chan Event, config.QueueSize),
		config:        config,
		metrics:       collector,
		logger:        logging.L().Named("events").With(zap.String("publisher", config.Name)),
		metricsTicker: time.NewTicker(config.ReportInterval),
		metricsStop:   make(chan struct{}),
	}

	for i := 0; i < config.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	go p.reportMetrics()

	names := make([]string, len(sinks))
	for i, s := range sinks {
		names[i] = s.Name()
	}
	p.logger.Info("event publisher started",
		zap.Int("queue_size", config.QueueSize),
		zap.Int("workers", config.Workers),
		zap.Strings("sinks", names),
	)

	return p
}

// Publish enqueues e. It returns ErrQueueFull if the event was dropped.
func (p *Publisher) Publish(ctx context.Context, e Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPublisherClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Fast path
	select {
	case p.queue <- e:
		p.accepted()
		return nil
	default:
	}

	if p.config.MaxWaitTime < 0 {
		return p.drop(e)
	}

	timer := time.NewTimer(p.config.MaxWaitTime)
	defer timer.Stop()

	select {
	case p.queue <- e:
		p.accepted()
		return nil
	case <-timer.C:
		return p.drop(e)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Publisher) accepted() {
	atomic.AddInt64(&p.pending, 1)
	atomic.AddInt64(&p.published, 1)
}

func (p *Publisher) drop(e Event) error {
	atomic.AddInt64(&p.dropped, 1)
	p.metrics.RecordEventDropped(p.config.Name)
	p.logger.Warn("event dropped",
		zap.String("record_id", e.ID),
		zap.String("type", string(e.Type)),
	)
	return ErrQueueFull
}

// worker delivers events until the queue is closed and drained.
func (p *Publisher) worker() {
	defer p.wg.Done()

	for e := range p.queue {
		p.deliver(e)
		atomic.AddInt64(&p.pending, -1)
	}
}

func (p *Publisher) deliver(e Event) {
	for _, sink := range p.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), p.config.DeliveryTimeout)
		start := time.Now()
		err := sink.Deliver(ctx, e)
		cancel()

		p.metrics.RecordEventDelivery(sink.Name(), err == nil, time.Since(start))
		if err != nil {
			atomic.AddInt64(&p.failed, 1)
			p.logger.Error("event delivery failed",
				zap.String("sink", sink.Name()),
				zap.String("record_id", e.ID),
				zap.Error(err),
			)
			continue
		}
		atomic.AddInt64(&p.delivered, 1)
	}
}

// Flush waits until every accepted event has been delivered or the timeout passes.
func (p *Publisher) Flush(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		if atomic.LoadInt64(&p.pending) == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrFlushTimeout
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Close stops accepting events, delivers everything already queued and
// waits for the workers to finish. It is safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	close(p.metricsStop)
	p.metricsTicker.Stop()

	p.wg.Wait()

	stats := p.Stats()
	p.logger.Info("event publisher stopped",
		zap.Int64("published", stats.Published),
		zap.Int64("dropped", stats.Dropped),
		zap.Int64("failed", stats.Failed),
	)
	return nil
}

func (p *Publisher) reportMetrics() {
	for {
		select {
		case <-p.metricsTicker.C:
			p.metrics.RecordQueueDepth(p.config.Name, len(p.queue))
		case <-p.metricsStop:
			return
		}
	}
}

// Stats returns current publisher counters.
func (p *Publisher) Stats() Stats {
	return Stats{
		QueueDepth: len(p.queue),
		Published:  atomic.LoadInt64(&p.published),
		Dropped:    atomic.LoadInt64(&p.dropped),
		Delivered:  atomic.LoadInt64(&p.delivered),
		Failed:     atomic.LoadInt64(&p.failed),
	}
}
