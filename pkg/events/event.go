package events

import (
	"context"
	"errors"
	"time"

	"payment-ledger/pkg/payment"

	"github.com/shopspring/decimal"
)

// Type describes what happened to a record.
type Type string

const (
	// TypeCreated is emitted once per record, when it is first stored.
	TypeCreated Type = "created"
	// TypeTransitioned is emitted for every committed status change.
	TypeTransitioned Type = "transitioned"
)

// Event is a committed ledger change. Events are notifications only: the
// ledger never reads them back.
type Event struct {
	Type      Type            `json:"type"`
	Kind      payment.Kind    `json:"kind"`
	ID        string          `json:"id"`
	PaymentID string          `json:"payment_id"`
	From      string          `json:"from,omitempty"`
	To        string          `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Seq       int64           `json:"seq"`
	At        time.Time       `json:"at"`
}

// FromRecord builds an event describing rec after a change from the given status.
// An empty from marks a creation.
func FromRecord(rec payment.Record, from string) Event {
	e := Event{
		Type:      TypeTransitioned,
		Kind:      rec.Kind,
		ID:        rec.ID(),
		PaymentID: rec.PaymentID(),
		From:      from,
		To:        rec.StatusString(),
		Seq:       rec.Seq,
	}
	if from == "" {
		e.Type = TypeCreated
	}

	switch {
	case rec.Payment != nil:
		e.Amount = rec.Payment.Amount
		e.Currency = rec.Payment.Currency
		e.At = rec.Payment.UpdatedAt
	case rec.Refund != nil:
		e.Amount = rec.Refund.Amount
		e.Currency = rec.Refund.Currency
		e.At = rec.Refund.UpdatedAt
	}
	return e
}

// Notifier accepts events for delivery.
type Notifier interface {
	Publish(ctx context.Context, e Event) error
}

// Sink delivers events to a destination.
type Sink interface {
	Deliver(ctx context.Context, e Event) error
	Name() string
}

// Errors returned by the publisher.
var (
	// ErrQueueFull is returned when the queue stayed full for MaxWaitTime
	ErrQueueFull = errors.New("events: queue full, event dropped")

	// ErrPublisherClosed is returned when publishing to a closed publisher
	ErrPublisherClosed = errors.New("events: publisher is closed")

	// ErrFlushTimeout is returned when Flush times out waiting for the queue to drain
	ErrFlushTimeout = errors.New("events: flush timeout exceeded")
)

// Stats provides counters about publisher activity.
type Stats struct {
	// QueueDepth is the current number of queued events
	QueueDepth int

	// Published is the number of events accepted into the queue
	Published int64

	// Dropped is the number of events rejected because of backpressure
	Dropped int64

	// Delivered counts successful sink deliveries
	Delivered int64

	// Failed counts failed sink deliveries
	Failed int64
}
