package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated     = "OrderCreated"
	EventPaymentSucceeded = "PaymentSucceeded"
	EventPaymentFailed    = "PaymentFailed"
)

type Envelope struct {
	EventID        string          `json:"event_id"`
	EventType      string          `json:"event_type"`
	EventVersion   int             `json:"event_version"`
	OccurredAt     time.Time       `json:"occurred_at"`
	Producer       string          `json:"producer"`
	TraceID        string          `json:"trace_id,omitempty"`
	CorrelationID  string          `json:"correlation_id,omitempty"` // order_id
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Payload        json.RawMessage `json:"payload"`
}

// IdempotencyKey identifies one business effect for one order, e.g. "<orderId>:PaymentSucceeded".
func IdempotencyKey(orderID, eventType string) string {
	return orderID + ":" + eventType
}

type OrderCreatedPayload struct {
	OrderID       string          `json:"order_id"`
	UserID        string          `json:"user_id"`
	ProgramID     string          `json:"program_id"`
	Provider      string          `json:"provider"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	AffiliateCode string          `json:"affiliate_code,omitempty"`
}

type PaymentSucceededPayload struct {
	OrderID           string          `json:"order_id"`
	Provider          string          `json:"provider"`
	ProviderReference string          `json:"provider_reference,omitempty"`
	TotalPrice        decimal.Decimal `json:"total_price"`
	AffiliateCode     string          `json:"affiliate_code,omitempty"`
}

type PaymentFailedPayload struct {
	OrderID  string `json:"order_id"`
	Provider string `json:"provider"`
	Status   Status `json:"status"` // failed | expired
	Reason   string `json:"reason,omitempty"`
}
