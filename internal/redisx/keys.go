package redisx

import "time"

const (
	// Cache order status: order_status:{order_id} -> {"status": "..."}
	KeyOrderStatus = "order_status:%s"

	// Cache exchange rate: fx:{pair} -> rate as decimal string
	KeyExchangeRate = "fx:%s"

	// Dedup webhook delivery: dedup:webhook:{provider}:{sha256(body)}
	KeyWebhookDelivery = "dedup:webhook:%s"

	// Notifier done-marker: notified:{idempotency_key}
	KeyNotified = "notified:%s"

	// Per-order notifier lock: lock:notify:{order_id}
	KeyNotifyLock = "lock:notify:%s"
)

var (
	TTLStatusCache     = 5 * time.Minute
	TTLExchangeRate    = 10 * time.Minute
	TTLWebhookDelivery = 48 * time.Hour
	TTLNotified        = 30 * 24 * time.Hour
	TTLNotifyLock      = 2 * time.Minute
)
