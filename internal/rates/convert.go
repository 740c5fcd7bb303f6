package rates

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a USD amount into the quote currency's minor unit
// (kobo, pesewas, ...) rounding up: ceil(usd × rate × 100).
func ToMinorUnits(usd, rate decimal.Decimal) int64 {
	return usd.Mul(rate).Mul(hundred).Ceil().IntPart()
}

// ToMajorUnits is ToMinorUnits expressed in whole currency units with two decimals.
func ToMajorUnits(usd, rate decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(ToMinorUnits(usd, rate)).Div(hundred)
}

// USDToCents converts a USD amount to cents, rounding up.
func USDToCents(usd decimal.Decimal) int64 {
	return usd.Mul(hundred).Ceil().IntPart()
}
