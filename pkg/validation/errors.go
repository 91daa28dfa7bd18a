package validation

import (
	"strings"

	"payment-ledger/pkg/payment"
)

// Rule names identify which check a field failed.
const (
	RuleRequired      = "required"
	RulePositive      = "positive"
	RulePrecision     = "precision"
	RuleMaximum       = "maximum"
	RuleCurrency      = "currency"
	RuleMethod        = "method"
	RuleLength        = "length"
	RuleFormat        = "format"
	RuleMarkup        = "markup"
	RuleNotAllowed    = "not_allowed"
	RuleExceedsAmount = "exceeds_amount"
)

// FieldError describes one violated rule on one request field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Error collects every field violation found in a request.
// errors.Is(err, payment.ErrValidation) holds for any *Error.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	return "validation: " + strings.Join(e.Messages(), "; ")
}

// Unwrap ties the error into the ledger taxonomy.
func (e *Error) Unwrap() error {
	return payment.ErrValidation
}

// Messages returns the human readable message of each violation, in order.
func (e *Error) Messages() []string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return msgs
}

// Has reports whether field failed rule.
func (e *Error) Has(field, rule string) bool {
	for _, f := range e.Fields {
		if f.Field == field && f.Rule == rule {
			return true
		}
	}
	return false
}

type collector struct {
	fields []FieldError
}

func (c *collector) add(field, rule, msg string) {
	c.fields = append(c.fields, FieldError{Field: field, Rule: rule, Message: msg})
}

func (c *collector) err() error {
	if len(c.fields) == 0 {
		return nil
	}
	return &Error{Fields: c.fields}
}
