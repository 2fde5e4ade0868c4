package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// DefaultScale is used for currency codes missing from the ISO 4217 tables.
const DefaultScale int32 = 2

var hundred = decimal.NewFromInt(100)

// Scale reports how many minor-unit digits the currency carries.
func Scale(code string) int32 {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return DefaultScale
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

// Round rounds an amount half away from zero to the currency's minor unit.
func Round(amount decimal.Decimal, code string) decimal.Decimal {
	return amount.Round(Scale(code))
}

// Format renders the amount with exactly the currency's minor-unit digits.
func Format(amount decimal.Decimal, code string) string {
	return amount.StringFixed(Scale(code))
}

// Percent returns pct percent of amount without rounding.
func Percent(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred)
}

// Ratio expresses part as a percentage of whole. A zero whole yields zero.
func Ratio(part, whole decimal.Decimal) decimal.Decimal {
	if whole.Sign() <= 0 {
		return decimal.Zero
	}
	return part.Mul(hundred).Div(whole)
}

// ClampNonNegative floors negative amounts at zero.
func ClampNonNegative(amount decimal.Decimal) decimal.Decimal {
	if amount.Sign() < 0 {
		return decimal.Zero
	}
	return amount
}
