package affiliates

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type ReferralStatus string

const (
	ReferralPending   ReferralStatus = "pending"
	ReferralCompleted ReferralStatus = "completed"
	ReferralCancelled ReferralStatus = "cancelled"
)

func (s ReferralStatus) Valid() bool {
	return s == ReferralPending || s == ReferralCompleted || s == ReferralCancelled
}

type Affiliate struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Code            string          `json:"code"`
	Status          Status          `json:"status"`
	CommissionRate  decimal.Decimal `json:"commission_rate"` // percent
	Tier            string          `json:"tier"`
	DiscountEnabled bool            `json:"discount_enabled"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Referral credits an affiliate for one paid order.
type Referral struct {
	ID          string          `json:"id"`
	AffiliateID string          `json:"affiliate_id"`
	OrderID     string          `json:"order_id"`
	Commission  decimal.Decimal `json:"commission"`
	Status      ReferralStatus  `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

type DiscountKind string

const (
	DiscountPercent DiscountKind = "percent"
	DiscountFixed   DiscountKind = "fixed"
)

type DiscountCode struct {
	Code      string          `json:"code"`
	Kind      DiscountKind    `json:"kind"`
	Value     decimal.Decimal `json:"value"`
	Active    bool            `json:"active"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	MaxUses   int             `json:"max_uses"`
	Uses      int             `json:"uses"`
}
