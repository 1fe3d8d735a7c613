package payments

import (
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimalCurrencies are charged in whole units by Stripe.
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true,
	"jpy": true, "kmf": true, "krw": true, "mga": true,
	"pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// threeDecimalCurrencies use three minor digits; Stripe requires the last one
// to be zero when charging.
var threeDecimalCurrencies = map[string]bool{
	"bhd": true, "jod": true, "kwd": true, "omr": true, "tnd": true,
}

func normalizeCurrency(currency string) string {
	return strings.ToLower(strings.TrimSpace(currency))
}

func minorUnitExponent(currency string) int32 {
	code := normalizeCurrency(currency)
	switch {
	case zeroDecimalCurrencies[code]:
		return 0
	case threeDecimalCurrencies[code]:
		return 3
	default:
		return 2
	}
}

// SupportedCurrency reports whether currency is a three-letter code.
func SupportedCurrency(currency string) bool {
	code := normalizeCurrency(currency)
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// ToMajorUnits converts a Stripe minor-unit amount to decimal major units.
func ToMajorUnits(amount int64, currency string) decimal.Decimal {
	return decimal.New(amount, -minorUnitExponent(currency))
}

// ToMinorUnits converts a major-unit amount to the integer Stripe expects,
// rounding half away from zero. Three-decimal currencies are rounded to a
// multiple of ten minor units.
func ToMinorUnits(amount decimal.Decimal, currency string) int64 {
	exp := minorUnitExponent(currency)
	if exp == 3 {
		return amount.Shift(2).Round(0).Shift(1).IntPart()
	}
	return amount.Shift(exp).Round(0).IntPart()
}
