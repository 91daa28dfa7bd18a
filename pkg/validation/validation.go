// Package validation turns raw payment and refund requests into validated
// values. It is pure: nothing here reads or writes ledger state, and the
// ledger only accepts the Validated* types produced by this package.
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"payment-ledger/pkg/payment"

	"github.com/shopspring/decimal"
)

// PaymentRequest is a deserialized, not yet trusted payment request.
type PaymentRequest struct {
	MerchantID   string              `json:"merchant_id"`
	CustomerID   string              `json:"customer_id"`
	Amount       decimal.NullDecimal `json:"amount"`
	Currency     string              `json:"currency"`
	Method       string              `json:"payment_method"`
	Description  string              `json:"description"`
	CardLastFour string              `json:"card_last_four"`
	CardType     string              `json:"card_type"`
}

// RefundRequest is a deserialized, not yet trusted refund request.
type RefundRequest struct {
	Amount decimal.NullDecimal `json:"amount"`
	Reason string              `json:"reason"`
}

// Limits bounds what a request may contain.
type Limits struct {
	// MaxAmount is the largest accepted payment amount, in major units
	MaxAmount decimal.Decimal

	// MaxIDLength caps merchant and customer identifiers
	MaxIDLength int

	// MaxTextLength caps descriptions and refund reasons
	MaxTextLength int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxAmount:     decimal.NewFromInt(1_000_000),
		MaxIDLength:   100,
		MaxTextLength: 500,
	}
}

var cardTypes = map[string]bool{
	"VISA":       true,
	"MASTERCARD": true,
	"AMEX":       true,
	"DISCOVER":   true,
}

// ValidatedPayment is a payment request that passed every rule.
// The zero value is not valid; only ValidatePayment produces usable values.
type ValidatedPayment struct {
	draft payment.Payment
	valid bool
}

// Valid reports whether v came from ValidatePayment.
func (v ValidatedPayment) Valid() bool { return v.valid }

// Draft returns the payment fields, without id, status or timestamps.
func (v ValidatedPayment) Draft() payment.Payment { return v.draft }

// ValidatedRefund is a refund request that passed every rule against its payment.
type ValidatedRefund struct {
	draft payment.Refund
	valid bool
}

// Valid reports whether v came from ValidateRefund.
func (v ValidatedRefund) Valid() bool { return v.valid }

// Draft returns the refund fields, without id, status or timestamps.
func (v ValidatedRefund) Draft() payment.Refund { return v.draft }

// ValidatePayment checks a payment request. Every violation is reported, not
// only the first one.
func ValidatePayment(req PaymentRequest, limits Limits) (ValidatedPayment, error) {
	var c collector

	merchant := strings.TrimSpace(req.MerchantID)
	customer := strings.TrimSpace(req.CustomerID)
	checkIdentifier(&c, "merchant_id", merchant, limits.MaxIDLength)
	checkIdentifier(&c, "customer_id", customer, limits.MaxIDLength)

	currency := payment.NormalizeCurrency(req.Currency)
	if currency == "" {
		currency = payment.DefaultCurrency
	}
	precision, known := payment.CurrencyPrecision(currency)
	if !known {
		c.add("currency", RuleCurrency, fmt.Sprintf("Currency %s not supported", strings.TrimSpace(req.Currency)))
	}

	if known {
		checkAmount(&c, req.Amount, currency, precision, limits.MaxAmount)
	} else if !req.Amount.Valid {
		c.add("amount", RuleRequired, "amount is required")
	}

	method := payment.Method(strings.TrimSpace(req.Method))
	switch {
	case method == "":
		c.add("payment_method", RuleRequired, "payment_method is required")
	case !method.Valid():
		c.add("payment_method", RuleMethod, fmt.Sprintf("Invalid payment method: %s", method))
	}

	cardType := strings.ToUpper(strings.TrimSpace(req.CardType))
	lastFour := strings.TrimSpace(req.CardLastFour)
	if method.Valid() && !method.IsCard() {
		if lastFour != "" {
			c.add("card_last_four", RuleNotAllowed, fmt.Sprintf("card_last_four not allowed for %s", method))
		}
		if cardType != "" {
			c.add("card_type", RuleNotAllowed, fmt.Sprintf("card_type not allowed for %s", method))
		}
	}
	if lastFour != "" && !isDigits(lastFour, 4) {
		c.add("card_last_four", RuleFormat, "card_last_four must be exactly 4 digits")
	}
	if cardType != "" && !cardTypes[cardType] {
		c.add("card_type", RuleFormat, fmt.Sprintf("Unsupported card type: %s", cardType))
	}

	description := strings.TrimSpace(req.Description)
	checkText(&c, "description", description, limits.MaxTextLength)

	if err := c.err(); err != nil {
		return ValidatedPayment{}, err
	}

	return ValidatedPayment{
		draft: payment.Payment{
			MerchantID:   merchant,
			CustomerID:   customer,
			Amount:       req.Amount.Decimal,
			Currency:     currency,
			Method:       method,
			Description:  description,
			CardLastFour: lastFour,
			CardType:     cardType,
		},
		valid: true,
	}, nil
}

// ValidateRefund checks a refund request against the payment it targets.
// The amount may not exceed the payment amount; the running balance against
// earlier refunds is enforced by the ledger when the refund completes. The
// reason is capped at limits.MaxTextLength.
func ValidateRefund(req RefundRequest, p payment.Payment, limits Limits) (ValidatedRefund, error) {
	var c collector

	precision, known := payment.CurrencyPrecision(p.Currency)
	if !known {
		c.add("currency", RuleCurrency, fmt.Sprintf("Currency %s not supported", p.Currency))
	} else {
		checkAmount(&c, req.Amount, p.Currency, precision, decimal.Decimal{})
		if req.Amount.Valid && req.Amount.Decimal.GreaterThan(p.Amount) {
			c.add("amount", RuleExceedsAmount, fmt.Sprintf(
				"Refund amount %s exceeds available amount %s",
				req.Amount.Decimal.StringFixed(precision), p.Amount.StringFixed(precision),
			))
		}
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		c.add("reason", RuleRequired, "reason is required")
	}
	checkText(&c, "reason", reason, limits.MaxTextLength)

	if err := c.err(); err != nil {
		return ValidatedRefund{}, err
	}

	return ValidatedRefund{
		draft: payment.Refund{
			PaymentID: p.ID,
			Amount:    req.Amount.Decimal,
			Currency:  p.Currency,
			Reason:    reason,
		},
		valid: true,
	}, nil
}

// checkAmount applies the positive, precision and maximum rules. A zero max
// disables the maximum rule.
func checkAmount(c *collector, amount decimal.NullDecimal, currency string, precision int32, max decimal.Decimal) {
	if !amount.Valid {
		c.add("amount", RuleRequired, "amount is required")
		return
	}

	minUnit := decimal.New(1, -precision)
	if amount.Decimal.LessThan(minUnit) {
		c.add("amount", RulePositive, fmt.Sprintf("Amount must be at least %s %s", minUnit.StringFixed(precision), currency))
		return
	}

	if !amount.Decimal.Equal(amount.Decimal.Truncate(precision)) {
		c.add("amount", RulePrecision, fmt.Sprintf("Amount %s has more than %d decimal places for %s",
			amount.Decimal.String(), precision, currency))
	}

	if !max.IsZero() && amount.Decimal.GreaterThan(max) {
		c.add("amount", RuleMaximum, fmt.Sprintf("Amount must not exceed %s %s", max.StringFixed(precision), currency))
	}
}

func checkIdentifier(c *collector, field, value string, maxLen int) {
	if value == "" {
		c.add(field, RuleRequired, field+" is required")
		return
	}
	if maxLen > 0 && utf8.RuneCountInString(value) > maxLen {
		c.add(field, RuleLength, fmt.Sprintf("%s must be at most %d characters", field, maxLen))
	}
	if strings.ContainsAny(value, "<>\"'`;") {
		c.add(field, RuleFormat, field+" contains invalid characters")
	}
}

func checkText(c *collector, field, value string, maxLen int) {
	if maxLen > 0 && utf8.RuneCountInString(value) > maxLen {
		c.add(field, RuleLength, fmt.Sprintf("%s must be at most %d characters", field, maxLen))
	}
	if strings.ContainsAny(value, "<>") {
		c.add(field, RuleMarkup, field+" must not contain markup")
	}
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
