package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyINR Currency = "INR"
	CurrencyUSD Currency = "USD"
)

// minorUnitExponent is the number of decimal places the gateway expects
// amounts to be expressed in (paise, cents).
const minorUnitExponent = 2

func ParseCurrency(s string) (Currency, error) {
	switch c := Currency(strings.ToUpper(strings.TrimSpace(s))); c {
	case CurrencyINR, CurrencyUSD:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedCurrency, s)
	}
}

func (c Currency) String() string {
	return string(c)
}

// ToMinorUnits converts an amount to the smallest currency unit, rounding
// half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(minorUnitExponent).Round(0).IntPart()
}

func FromMinorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -minorUnitExponent)
}
