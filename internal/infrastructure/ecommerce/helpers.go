package ecommerce

import (
	"github.com/shopspring/decimal"
)

// parseDecimal parses a platform-reported money string, returning zero for
// empty or malformed values rather than failing the whole item.
func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// parseDecimalPtr parses an optional money string.
func parseDecimalPtr(s *string) decimal.Decimal {
	if s == nil {
		return decimal.Zero
	}
	return parseDecimal(*s)
}
