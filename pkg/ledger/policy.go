package ledger

import (
	"context"
	"strings"

	"payment-ledger/pkg/payment"

	"github.com/shopspring/decimal"
)

// OutcomePolicy decides how a processing payment ends. Processing is
// simulated, so the decision must depend only on the payment itself.
// Implementations return payment.StatusSettled or payment.StatusFailed.
type OutcomePolicy interface {
	Decide(ctx context.Context, p payment.Payment) payment.Status
}

// PolicyFunc adapts a function to OutcomePolicy.
type PolicyFunc func(ctx context.Context, p payment.Payment) payment.Status

func (f PolicyFunc) Decide(ctx context.Context, p payment.Payment) payment.Status {
	return f(ctx, p)
}

// ApproveAll settles every payment.
func ApproveAll() OutcomePolicy {
	return PolicyFunc(func(context.Context, payment.Payment) payment.Status {
		return payment.StatusSettled
	})
}

// DeclineAbove fails payments whose amount is strictly greater than threshold.
func DeclineAbove(threshold decimal.Decimal) OutcomePolicy {
	return PolicyFunc(func(_ context.Context, p payment.Payment) payment.Status {
		if p.Amount.GreaterThan(threshold) {
			return payment.StatusFailed
		}
		return payment.StatusSettled
	})
}

// DeclineCardSuffix fails card payments whose last four digits end with any
// of the given suffixes, the way test card numbers are used to force declines.
func DeclineCardSuffix(suffixes ...string) OutcomePolicy {
	return PolicyFunc(func(_ context.Context, p payment.Payment) payment.Status {
		if !p.Method.IsCard() || p.CardLastFour == "" {
			return payment.StatusSettled
		}
		for _, s := range suffixes {
			if s != "" && strings.HasSuffix(p.CardLastFour, s) {
				return payment.StatusFailed
			}
		}
		return payment.StatusSettled
	})
}

// FirstDecline combines policies: the payment fails if any of them fails it.
func FirstDecline(policies ...OutcomePolicy) OutcomePolicy {
	return PolicyFunc(func(ctx context.Context, p payment.Payment) payment.Status {
		for _, policy := range policies {
			if policy.Decide(ctx, p) == payment.StatusFailed {
				return payment.StatusFailed
			}
		}
		return payment.StatusSettled
	})
}
