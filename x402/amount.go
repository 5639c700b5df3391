package x402

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// maxAmountLength bounds the textual size of an amount so conversions to
// integer units stay small.
const maxAmountLength = 64

// ParseAmount parses a plain decimal amount string such as "0.01".
// Negative values, exponent notation, overlong and non-numeric input return
// ErrInvalidAmount.
func ParseAmount(amount string) (decimal.Decimal, error) {
	if len(amount) > maxAmountLength {
		return decimal.Decimal{}, fmt.Errorf("%w: longer than %d characters", ErrInvalidAmount, maxAmountLength)
	}
	if strings.ContainsAny(amount, "eE") {
		return decimal.Decimal{}, fmt.Errorf("%w: %q uses exponent notation", ErrInvalidAmount, amount)
	}
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	if value.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, amount)
	}
	return value, nil
}

// ToSmallestUnit converts a decimal amount to the asset's integer base unit,
// flooring any precision beyond the asset's decimals.
// For example, "0.01" with 6 decimals becomes 10000.
func ToSmallestUnit(amount string, decimals int32) (*big.Int, error) {
	value, err := ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	return value.Shift(decimals).Floor().BigInt(), nil
}

// FromSmallestUnit converts an integer base-unit amount back to the asset's decimal unit.
func FromSmallestUnit(units *big.Int, decimals int32) decimal.Decimal {
	if units == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(units, -decimals)
}

// parseUnits parses a raw integer token amount as reported by the ledger.
func parseUnits(raw string) (*big.Int, bool) {
	if raw == "" {
		return new(big.Int), true
	}
	return new(big.Int).SetString(raw, 10)
}
