package payment

// paymentTransitions lists the legal target states for each payment state.
// Terminal states map to nothing.
var paymentTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusSettled, StatusFailed},
	StatusSettled:    {},
	StatusFailed:     {},
}

var refundTransitions = map[RefundStatus][]RefundStatus{
	RefundPending:   {RefundCompleted, RefundFailed},
	RefundCompleted: {},
	RefundFailed:    {},
}

// Valid reports whether s is a known payment status.
func (s Status) Valid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	next, ok := paymentTransitions[s]
	return ok && len(next) == 0
}

// CanTransition reports whether s -> to is a legal payment transition.
func (s Status) CanTransition(to Status) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known refund status.
func (s RefundStatus) Valid() bool {
	_, ok := refundTransitions[s]
	return ok
}

// Terminal reports whether no transition leaves s.
func (s RefundStatus) Terminal() bool {
	next, ok := refundTransitions[s]
	return ok && len(next) == 0
}

// CanTransition reports whether s -> to is a legal refund transition.
func (s RefundStatus) CanTransition(to RefundStatus) bool {
	for _, allowed := range refundTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Advance is the payment state machine. It returns a copy of p moved to the
// target status, or a *TransitionError leaving p untouched.
func (p Payment) Advance(to Status, at Clock) (Payment, error) {
	if !p.Status.CanTransition(to) {
		return p, &TransitionError{Kind: KindPayment, ID: p.ID, From: string(p.Status), To: string(to)}
	}
	p.Status = to
	p.UpdatedAt = at()
	return p, nil
}

// Advance is the refund state machine. Balance checks belong to the ledger,
// which holds the running sum; Advance only enforces ordering.
func (r Refund) Advance(to RefundStatus, at Clock) (Refund, error) {
	if !r.Status.CanTransition(to) {
		return r, &TransitionError{Kind: KindRefund, ID: r.ID, From: string(r.Status), To: string(to)}
	}
	r.Status = to
	r.UpdatedAt = at()
	return r, nil
}
