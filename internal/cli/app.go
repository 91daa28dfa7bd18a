package cli

import (
	"context"
	"errors"
	"fmt"

	"payment-ledger/pkg/config"
	"payment-ledger/pkg/events"
	"payment-ledger/pkg/ledger"
	"payment-ledger/pkg/logging"
	"payment-ledger/pkg/metrics"
	promMetrics "payment-ledger/pkg/metrics/prometheus"
	"payment-ledger/pkg/service"
	"payment-ledger/pkg/store/redis"
	"payment-ledger/pkg/store/stack"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// app holds everything a command needs, built from one config.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	registry  *prometheus.Registry
	metrics   metrics.Collector
	stack     *stack.Stack
	publisher *events.Publisher
	ownRedis  rueidis.Client
	ledger    *ledger.Ledger
	service   *service.Service
}

// newApp wires config -> logger -> metrics -> store stack -> events ->
// ledger -> service. On error everything opened so far is closed.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	logging.SetGlobal(logger)

	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry(), metrics: metrics.NoOpCollector{}}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg

	if cfg.Metrics.Enabled {
		pc := promMetrics.NewPrometheusCollector(cfg.Metrics.Namespace)
		if err := pc.Register(a.registry); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.metrics = pc
	}

	var err error
	a.stack, err = stack.Open(ctx, cfg.StoreStack(a.metrics, a.logger))
	if err != nil {
		return err
	}

	var notifier events.Notifier
	if cfg.Events.Enabled {
		sinks, err := a.sinks()
		if err != nil {
			return err
		}
		a.publisher = events.NewPublisherWithMetrics(cfg.Publisher(), a.metrics, sinks...)
		notifier = a.publisher
	}

	policy, err := cfg.OutcomePolicy()
	if err != nil {
		return err
	}
	limits, err := cfg.ValidationLimits()
	if err != nil {
		return err
	}

	a.ledger = ledger.New(a.stack.Store(), ledger.Config{
		Notifier: notifier,
		Metrics:  a.metrics,
		Logger:   a.logger,
	})
	a.service = service.New(a.ledger, service.Config{
		Policy:  policy,
		Limits:  limits,
		Metrics: a.metrics,
		Logger:  a.logger,
	})
	return nil
}

func (a *app) sinks() ([]events.Sink, error) {
	var sinks []events.Sink
	for _, name := range a.cfg.Events.Sinks {
		switch name {
		case config.SinkLog:
			sinks = append(sinks, events.NewLogSink(a.logger.Named("events")))
		case config.SinkRedis:
			client := a.stack.Redis()
			if client == nil {
				c, err := redis.NewClient(a.cfg.RedisStore())
				if err != nil {
					return nil, fmt.Errorf("events: redis sink: %w", err)
				}
				a.ownRedis = c
				client = c
			}
			sinks = append(sinks, events.NewRedisStreamSink(client, a.cfg.Stream()))
		default:
			return nil, fmt.Errorf("events: unknown sink %q", name)
		}
	}
	return sinks, nil
}

// Close flushes pending events and closes the store. Safe on a partly built app.
func (a *app) Close() error {
	var errs []error
	if a.publisher != nil {
		if err := a.publisher.Flush(a.cfg.Events.FlushOnShutdown); err != nil {
			a.logger.Warn("events not flushed before shutdown", zap.Error(err))
		}
		errs = append(errs, a.publisher.Close())
	}
	if a.ownRedis != nil {
		a.ownRedis.Close()
	}
	if a.stack != nil {
		errs = append(errs, a.stack.Close())
	}
	a.logger.Sync()
	return errors.Join(errs...)
}
