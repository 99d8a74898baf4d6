package utils

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ParseAmount reads a currency-neutral decimal such as "12.50".
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("invalid amount %q: negative", s)
	}
	return d.Round(2), nil
}

// FormatAmount renders an amount with exactly two decimals. Locale formatting
// is left to the client.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
