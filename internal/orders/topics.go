package orders

const (
	TopicOrderCreated     = "orders.created"
	TopicPaymentSucceeded = "payments.succeeded"
	TopicPaymentFailed    = "payments.failed"

	// Notifier messages that kept failing are parked here with x-error headers.
	TopicPaymentSucceededDLQ = "payments.succeeded.dlq"
)

// Partition key = order_id so every event for one order stays ordered.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
