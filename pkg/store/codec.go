package store

import (
	"encoding/json"
	"fmt"

	"payment-ledger/pkg/payment"
)

// envelope is the serialized form shared by the SQL and Redis backends.
type envelope struct {
	Kind    payment.Kind     `json:"kind"`
	Seq     int64            `json:"seq"`
	Payment *payment.Payment `json:"payment,omitempty"`
	Refund  *payment.Refund  `json:"refund,omitempty"`
}

// Encode serializes rec to JSON.
func Encode(rec payment.Record) ([]byte, error) {
	data, err := json.Marshal(envelope{
		Kind:    rec.Kind,
		Seq:     rec.Seq,
		Payment: rec.Payment,
		Refund:  rec.Refund,
	})
	if err != nil {
		return nil, fmt.Errorf("store: encode record %s: %w", rec.ID(), err)
	}
	return data, nil
}

// Decode parses a record produced by Encode.
func Decode(data []byte) (payment.Record, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return payment.Record{}, fmt.Errorf("store: decode record: %w", err)
	}

	rec := payment.Record{
		Kind:    env.Kind,
		Seq:     env.Seq,
		Payment: env.Payment,
		Refund:  env.Refund,
	}
	if err := Validate(rec); err != nil {
		return payment.Record{}, fmt.Errorf("store: decode record: %w", err)
	}
	return rec, nil
}
