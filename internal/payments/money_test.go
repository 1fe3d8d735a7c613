package payments

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMinorUnitConversions(t *testing.T) {
	tests := []struct {
		name     string
		currency string
		major    string
		minor    int64
	}{
		{name: "two decimals", currency: "usd", major: "49.00", minor: 4900},
		{name: "two decimals rounds half away from zero", currency: "eur", major: "49.005", minor: 4901},
		{name: "zero decimals", currency: " JPY ", major: "500", minor: 500},
		{name: "three decimals", currency: "kwd", major: "12.34", minor: 12340},
		{name: "three decimals rounds to tens", currency: "BHD", major: "12.345", minor: 12350},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.minor, ToMinorUnits(decimal.RequireFromString(tc.major), tc.currency))
		})
	}
}

func TestToMajorUnitsUsesCurrencyExponent(t *testing.T) {
	assert.True(t, ToMajorUnits(4900, "usd").Equal(decimal.RequireFromString("49")))
	assert.True(t, ToMajorUnits(500, "jpy").Equal(decimal.RequireFromString("500")))
	assert.True(t, ToMajorUnits(12340, "kwd").Equal(decimal.RequireFromString("12.34")))
	assert.True(t, ToMajorUnits(12345, "omr").Equal(decimal.RequireFromString("12.345")))
}

func TestSupportedCurrency(t *testing.T) {
	for _, ok := range []string{"usd", "GBP", " kwd "} {
		assert.True(t, SupportedCurrency(ok), ok)
	}
	for _, bad := range []string{"", "us", "us1", "usdx", "ü$d"} {
		assert.False(t, SupportedCurrency(bad), bad)
	}
}
