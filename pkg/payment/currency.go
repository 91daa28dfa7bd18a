package payment

import "strings"

// currencyPrecision maps supported ISO 4217 codes to their minor-unit digits.
var currencyPrecision = map[string]int32{
	"USD": 2,
	"EUR": 2,
	"GBP": 2,
	"CAD": 2,
	"AUD": 2,
	"CHF": 2,
	"SEK": 2,
	"NOK": 2,
	"DKK": 2,
	"SGD": 2,
	"INR": 2,
	"BRL": 2,
	"MXN": 2,
	"JPY": 0,
	"KRW": 0,
}

// DefaultCurrency is assumed when a request omits the currency.
const DefaultCurrency = "USD"

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CurrencyPrecision returns the number of decimal places allowed for code.
func CurrencyPrecision(code string) (int32, bool) {
	p, ok := currencyPrecision[code]
	return p, ok
}

// SupportedCurrency reports whether code is a recognised currency.
func SupportedCurrency(code string) bool {
	_, ok := currencyPrecision[code]
	return ok
}
