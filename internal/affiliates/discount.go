package affiliates

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

const (
	SourceNone      = ""
	SourceGeneric   = "generic"
	SourceAffiliate = "affiliate"
)

// Resolution is the outcome of applying a promo code to a subtotal.
type Resolution struct {
	Amount        decimal.Decimal `json:"discount"`
	Source        string          `json:"source,omitempty"`
	AffiliateCode string          `json:"affiliate_code,omitempty"`
}

// Amount is what this code takes off subtotal, zero when it is unusable.
func (d *DiscountCode) Amount(subtotal decimal.Decimal, now time.Time) decimal.Decimal {
	if d == nil || !d.Active {
		return decimal.Zero
	}
	if d.ExpiresAt != nil && !now.Before(*d.ExpiresAt) {
		return decimal.Zero
	}
	if d.MaxUses > 0 && d.Uses >= d.MaxUses {
		return decimal.Zero
	}
	switch d.Kind {
	case DiscountPercent:
		return subtotal.Mul(d.Value).Div(hundred).Round(2)
	case DiscountFixed:
		return d.Value.Round(2)
	}
	return decimal.Zero
}

// DiscountAmount is the self-service discount an approved affiliate offers.
func (a *Affiliate) DiscountAmount(subtotal decimal.Decimal) decimal.Decimal {
	if a == nil || a.Status != StatusApproved || !a.DiscountEnabled || !a.DiscountPercent.IsPositive() {
		return decimal.Zero
	}
	return subtotal.Mul(a.DiscountPercent).Div(hundred).Round(2)
}

// ResolveDiscount picks the larger of the generic and affiliate discounts and
// caps it at subtotal. An approved affiliate is attributed even when the
// generic code wins.
func ResolveDiscount(subtotal decimal.Decimal, generic *DiscountCode, aff *Affiliate, now time.Time) Resolution {
	var res Resolution
	if aff != nil && aff.Status == StatusApproved {
		res.AffiliateCode = aff.Code
	}

	g := generic.Amount(subtotal, now)
	a := aff.DiscountAmount(subtotal)
	switch {
	case g.IsZero() && a.IsZero():
		res.Amount = decimal.Zero
		return res
	case a.GreaterThan(g):
		res.Amount, res.Source = a, SourceAffiliate
	default:
		res.Amount, res.Source = g, SourceGeneric
	}
	if res.Amount.GreaterThan(subtotal) {
		res.Amount = subtotal
	}
	return res
}

// Commission is ratePercent of total, rounded to cents.
func Commission(total, ratePercent decimal.Decimal) decimal.Decimal {
	if !ratePercent.IsPositive() || !total.IsPositive() {
		return decimal.Zero
	}
	return total.Mul(ratePercent).Div(hundred).Round(2)
}
