package utils

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Round2 rounds to two decimal places, half away from zero (half-up for
// the non-negative amounts this service handles).
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FormatMoney keeps consistent decimal formatting for currency fields.
func FormatMoney(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// ParseAmount parses "37.50" or "37,50" into a decimal. NaN and infinities
// are rejected since decimal cannot represent them.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	return decimal.NewFromString(s)
}

// AmountFromFloat converts a float amount, refusing non-finite values.
func AmountFromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, fmt.Errorf("amount must be finite")
	}
	return decimal.NewFromFloat(f), nil
}
