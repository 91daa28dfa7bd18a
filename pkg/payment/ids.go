package payment

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// IDGenerator produces identifiers that are unique and never reused.
type IDGenerator interface {
	NewID(kind Kind) string
}

// Clock returns the current time. Injected so tests can pin timestamps.
type Clock func() time.Time

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// UUIDGenerator issues random UUIDs prefixed by record kind ("pay_", "ref_").
type UUIDGenerator struct{}

// NewID returns a fresh identifier for kind.
func (UUIDGenerator) NewID(kind Kind) string {
	return prefixFor(kind) + uuid.NewString()
}

// SequenceGenerator issues predictable ids ("pay_1", "ref_2", ...). Intended for tests.
type SequenceGenerator struct {
	n atomic.Int64
}

// NewID returns the next sequential identifier for kind.
func (g *SequenceGenerator) NewID(kind Kind) string {
	return fmt.Sprintf("%s%d", prefixFor(kind), g.n.Add(1))
}

func prefixFor(kind Kind) string {
	switch kind {
	case KindPayment:
		return "pay_"
	case KindRefund:
		return "ref_"
	default:
		return "rec_"
	}
}
