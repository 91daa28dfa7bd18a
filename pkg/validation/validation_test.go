package validation

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"payment-ledger/pkg/payment"

	"github.com/shopspring/decimal"
)

func amount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func validRequest() PaymentRequest {
	return PaymentRequest{
		MerchantID:   "merchant_123",
		CustomerID:   "customer_456",
		Amount:       amount("150.75"),
		Currency:     "usd",
		Method:       "credit_card",
		Description:  "Test payment",
		CardLastFour: "4242",
		CardType:     "visa",
	}
}

func TestValidatePayment_Valid(t *testing.T) {
	v, err := ValidatePayment(validRequest(), DefaultLimits())
	if err != nil {
		t.Fatalf("Expected valid request, got %v", err)
	}
	if !v.Valid() {
		t.Fatal("Valid() = false for a validated payment")
	}

	d := v.Draft()
	if d.Currency != "USD" {
		t.Errorf("Expected currency USD, got %s", d.Currency)
	}
	if d.CardType != "VISA" {
		t.Errorf("Expected card type VISA, got %s", d.CardType)
	}
	if !d.Amount.Equal(decimal.RequireFromString("150.75")) {
		t.Errorf("Expected amount 150.75, got %s", d.Amount)
	}
	if d.ID != "" || d.Status != "" {
		t.Error("Draft must not carry id or status")
	}
}

func TestValidatePayment_DefaultsCurrency(t *testing.T) {
	req := validRequest()
	req.Currency = ""

	v, err := ValidatePayment(req, DefaultLimits())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if v.Draft().Currency != payment.DefaultCurrency {
		t.Errorf("Expected default currency, got %s", v.Draft().Currency)
	}
}

func TestValidatePayment_Rules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PaymentRequest)
		field  string
		rule   string
	}{
		{"missing amount", func(r *PaymentRequest) { r.Amount = decimal.NullDecimal{} }, "amount", RuleRequired},
		{"zero amount", func(r *PaymentRequest) { r.Amount = amount("0") }, "amount", RulePositive},
		{"negative amount", func(r *PaymentRequest) { r.Amount = amount("-100.00") }, "amount", RulePositive},
		{"sub-unit amount", func(r *PaymentRequest) { r.Amount = amount("0.001") }, "amount", RulePositive},
		{"three decimals", func(r *PaymentRequest) { r.Amount = amount("10.005") }, "amount", RulePrecision},
		{"fractional yen", func(r *PaymentRequest) {
			r.Currency = "JPY"
			r.Amount = amount("1000.50")
		}, "amount", RulePrecision},
		{"above maximum", func(r *PaymentRequest) { r.Amount = amount("999999999.99") }, "amount", RuleMaximum},
		{"unknown currency", func(r *PaymentRequest) { r.Currency = "INVALID" }, "currency", RuleCurrency},
		{"missing merchant", func(r *PaymentRequest) { r.MerchantID = "  " }, "merchant_id", RuleRequired},
		{"long customer", func(r *PaymentRequest) { r.CustomerID = strings.Repeat("c", 101) }, "customer_id", RuleLength},
		{"injected merchant", func(r *PaymentRequest) { r.MerchantID = "m'; DROP TABLE" }, "merchant_id", RuleFormat},
		{"missing method", func(r *PaymentRequest) { r.Method = "" }, "payment_method", RuleRequired},
		{"unknown method", func(r *PaymentRequest) { r.Method = "bitcoin" }, "payment_method", RuleMethod},
		{"card digits on wallet", func(r *PaymentRequest) {
			r.Method = "digital_wallet"
			r.CardType = ""
		}, "card_last_four", RuleNotAllowed},
		{"short last four", func(r *PaymentRequest) { r.CardLastFour = "42" }, "card_last_four", RuleFormat},
		{"alpha last four", func(r *PaymentRequest) { r.CardLastFour = "42a2" }, "card_last_four", RuleFormat},
		{"unknown card type", func(r *PaymentRequest) { r.CardType = "diners" }, "card_type", RuleFormat},
		{"markup description", func(r *PaymentRequest) { r.Description = "<script>alert('xss')</script>" }, "description", RuleMarkup},
		{"long description", func(r *PaymentRequest) { r.Description = strings.Repeat("d", 501) }, "description", RuleLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			v, err := ValidatePayment(req, DefaultLimits())
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			if v.Valid() {
				t.Error("rejected request returned a valid payment")
			}
			if !errors.Is(err, payment.ErrValidation) {
				t.Errorf("Expected ErrValidation, got %v", err)
			}

			var verr *Error
			if !errors.As(err, &verr) {
				t.Fatalf("Expected *Error, got %T", err)
			}
			if !verr.Has(tt.field, tt.rule) {
				t.Errorf("Expected %s/%s violation, got %+v", tt.field, tt.rule, verr.Fields)
			}
		})
	}
}

func TestValidatePayment_ReportsEveryViolation(t *testing.T) {
	_, err := ValidatePayment(PaymentRequest{}, DefaultLimits())

	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("Expected *Error, got %v", err)
	}
	for _, field := range []string{"merchant_id", "customer_id", "amount", "payment_method"} {
		if !verr.Has(field, RuleRequired) {
			t.Errorf("missing required violation for %s", field)
		}
	}
}

func TestValidatePayment_JPYWholeAmount(t *testing.T) {
	req := validRequest()
	req.Currency = "JPY"
	req.Amount = amount("1000")

	if _, err := ValidatePayment(req, DefaultLimits()); err != nil {
		t.Errorf("Expected whole yen to pass, got %v", err)
	}
}

func TestValidatePayment_CustomLimit(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxAmount = decimal.NewFromInt(100)

	req := validRequest()
	if _, err := ValidatePayment(req, limits); err == nil {
		t.Error("Expected 150.75 to exceed a 100 limit")
	}

	req.Amount = amount("100")
	if _, err := ValidatePayment(req, limits); err != nil {
		t.Errorf("Amount equal to the limit should pass, got %v", err)
	}
}

func TestPaymentRequest_JSONAmount(t *testing.T) {
	var req PaymentRequest
	if err := json.Unmarshal([]byte(`{"amount": 150.75}`), &req); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !req.Amount.Valid || req.Amount.Decimal.String() != "150.75" {
		t.Errorf("Expected exact 150.75, got %v", req.Amount)
	}

	var missing PaymentRequest
	if err := json.Unmarshal([]byte(`{}`), &missing); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if missing.Amount.Valid {
		t.Error("Absent amount decoded as present")
	}
}

func settledPayment() payment.Payment {
	return payment.Payment{
		ID:       "pay_1",
		Amount:   decimal.RequireFromString("100.00"),
		Currency: "USD",
		Status:   payment.StatusSettled,
	}
}

func TestValidateRefund(t *testing.T) {
	tests := []struct {
		name  string
		req   RefundRequest
		field string
		rule  string
	}{
		{"valid partial", RefundRequest{Amount: amount("40.00"), Reason: "Customer request"}, "", ""},
		{"valid full", RefundRequest{Amount: amount("100.00"), Reason: "Customer request"}, "", ""},
		{"missing amount", RefundRequest{Reason: "x"}, "amount", RuleRequired},
		{"zero amount", RefundRequest{Amount: amount("0"), Reason: "x"}, "amount", RulePositive},
		{"too precise", RefundRequest{Amount: amount("1.234"), Reason: "x"}, "amount", RulePrecision},
		{"over payment", RefundRequest{Amount: amount("100.01"), Reason: "x"}, "amount", RuleExceedsAmount},
		{"missing reason", RefundRequest{Amount: amount("10")}, "reason", RuleRequired},
		{"markup reason", RefundRequest{Amount: amount("10"), Reason: "<b>"}, "reason", RuleMarkup},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ValidateRefund(tt.req, settledPayment(), DefaultLimits())

			if tt.field == "" {
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				d := v.Draft()
				if d.PaymentID != "pay_1" || d.Currency != "USD" {
					t.Errorf("Draft not bound to payment: %+v", d)
				}
				return
			}

			var verr *Error
			if !errors.As(err, &verr) {
				t.Fatalf("Expected *Error, got %v", err)
			}
			if !verr.Has(tt.field, tt.rule) {
				t.Errorf("Expected %s/%s violation, got %+v", tt.field, tt.rule, verr.Fields)
			}
		})
	}
}

func TestValidateRefund_ExceedsMessage(t *testing.T) {
	_, err := ValidateRefund(RefundRequest{Amount: amount("150"), Reason: "x"}, settledPayment(), DefaultLimits())
	if err == nil || !strings.Contains(err.Error(), "exceeds available amount") {
		t.Errorf("Expected exceeds available amount message, got %v", err)
	}
}

func TestValidateRefund_ReasonLimit(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxTextLength = 10
	req := RefundRequest{Amount: amount("10"), Reason: "damaged in transit"}

	_, err := ValidateRefund(req, settledPayment(), limits)
	var verr *Error
	if !errors.As(err, &verr) || !verr.Has("reason", RuleLength) {
		t.Fatalf("Expected reason/length violation, got %v", err)
	}

	if _, err := ValidateRefund(req, settledPayment(), DefaultLimits()); err != nil {
		t.Errorf("Default limits should accept the reason: %v", err)
	}
}
