package orders

import "github.com/shopspring/decimal"

// Subtotal is the program price plus every selected addon.
func Subtotal(programPrice decimal.Decimal, addons []Addon) decimal.Decimal {
	total := programPrice
	for _, a := range addons {
		total = total.Add(a.Price)
	}
	return total.Round(2)
}

// ComputeTotal applies a discount to a subtotal. The result never drops below zero.
func ComputeTotal(subtotal, discount decimal.Decimal) decimal.Decimal {
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	total := subtotal.Sub(discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total.Round(2)
}
