package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Addon is an optional extra bought together with a program.
type Addon struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Order is a purchase intent tracked through the payment lifecycle.
// Amounts are in USD.
type Order struct {
	ID                string          `json:"id"`
	ProgramID         string          `json:"program_id"`
	ProgramName       string          `json:"program_name"`
	ProgramPrice      decimal.Decimal `json:"program_price"`
	Addons            []Addon         `json:"addons"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	Discount          decimal.Decimal `json:"discount"`
	DiscountCode      *string         `json:"discount_code,omitempty"`
	DiscountSource    string          `json:"discount_source,omitempty"`
	TotalPrice        decimal.Decimal `json:"total_price"`
	UserID            string          `json:"user_id"`
	Provider          string          `json:"provider"`
	ProviderReference *string         `json:"provider_reference,omitempty"`
	Status            Status          `json:"status"`
	AffiliateCode     *string         `json:"affiliate_code,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// NewOrder carries the fields the checkout flow supplies when creating an order.
type NewOrder struct {
	ProgramID    string
	ProgramName  string
	ProgramPrice decimal.Decimal
	Addons       []Addon
	Discount     decimal.Decimal
	DiscountCode string
	// DiscountSource is "generic" or "affiliate"; generic codes are redeemed once paid.
	DiscountSource string
	UserID         string
	Provider       string
	AffiliateCode  string
}
