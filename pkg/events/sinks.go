package events

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"payment-ledger/pkg/logging"

	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink returns a sink logging through logger, or the global logger when nil.
func NewLogSink(logger *logging.Logger) *LogSink {
	if logger == nil {
		logger = logging.L()
	}
	return &LogSink{logger: logger.Named("ledger_events")}
}

func (s *LogSink) Deliver(ctx context.Context, e Event) error {
	fields := []zap.Field{
		zap.String("type", string(e.Type)),
		zap.String("kind", string(e.Kind)),
		zap.String("record_id", e.ID),
		logging.PaymentID(e.PaymentID),
		zap.String("amount", e.Amount.String()),
		zap.String("currency", e.Currency),
		zap.Int64("seq", e.Seq),
		zap.Time("at", e.At),
	}
	if e.From != "" {
		fields = append(fields, logging.Transition(e.From, e.To))
	} else {
		fields = append(fields, zap.String("status", e.To))
	}

	s.logger.Info("ledger event", fields...)
	return nil
}

func (s *LogSink) Name() string {
	return "log"
}

// RedisStreamConfig configures the Redis stream sink.
type RedisStreamConfig struct {
	// Stream is the stream key (default: "ledger:events")
	Stream string

	// MaxLen caps the stream length with approximate trimming. Zero disables trimming.
	MaxLen int64
}

// RedisStreamSink appends events to a Redis stream with XADD.
type RedisStreamSink struct {
	client rueidis.Client
	config RedisStreamConfig
}

// NewRedisStreamSink returns a sink writing to the configured stream.
// The client is owned by the caller.
func NewRedisStreamSink(client rueidis.Client, config RedisStreamConfig) *RedisStreamSink {
	if config.Stream == "" {
		config.Stream = "ledger:events"
	}
	return &RedisStreamSink{client: client, config: config}
}

func (s *RedisStreamSink) Deliver(ctx context.Context, e Event) error {
	fields := [][2]string{
		{"type", string(e.Type)},
		{"kind", string(e.Kind)},
		{"id", e.ID},
		{"payment_id", e.PaymentID},
		{"from", e.From},
		{"to", e.To},
		{"amount", e.Amount.String()},
		{"currency", e.Currency},
		{"seq", strconv.FormatInt(e.Seq, 10)},
		{"at", e.At.UTC().Format(time.RFC3339Nano)},
	}

	var fv rueidis.Completed
	if s.config.MaxLen > 0 {
		b := s.client.B().Xadd().Key(s.config.Stream).
			Maxlen().Almost().Threshold(strconv.FormatInt(s.config.MaxLen, 10)).
			Id("*").FieldValue()
		for _, f := range fields {
			b = b.FieldValue(f[0], f[1])
		}
		fv = b.Build()
	} else {
		b := s.client.B().Xadd().Key(s.config.Stream).Id("*").FieldValue()
		for _, f := range fields {
			b = b.FieldValue(f[0], f[1])
		}
		fv = b.Build()
	}

	if err := s.client.Do(ctx, fv).Error(); err != nil {
		return fmt.Errorf("events: xadd %s: %w", s.config.Stream, err)
	}
	return nil
}

func (s *RedisStreamSink) Name() string {
	return "redis_stream"
}
