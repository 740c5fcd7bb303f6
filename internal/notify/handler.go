package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/fundedgiants/fundedgiants-web-18-sub000/internal/kafka"
	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/orders"
)

// Markers records idempotency keys whose effects already ran.
type Markers interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

type Locker interface {
	Lock(ctx context.Context, name string) (release func(), err error)
}

// Handler consumes payments.succeeded and runs the Notifier at most once per
// idempotency key, modulo crashes between sending and marking.
type Handler struct {
	Notifier *Notifier
	Done     Markers
	Locks    Locker
}

func (h *Handler) HandlePaymentSucceeded(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		log.Printf("[notify] dropping undecodable message offset=%d: %v", m.Offset, err)
		return nil
	}
	if env.EventType != orders.EventPaymentSucceeded {
		return nil
	}
	p, err := kafkax.UnwrapPayload[orders.PaymentSucceededPayload](env.Payload)
	if err != nil {
		log.Printf("[notify] dropping event %s: %v", env.EventID, err)
		return nil
	}
	key := env.IdempotencyKey
	if key == "" {
		key = orders.IdempotencyKey(p.OrderID, env.EventType)
	}

	if done, _ := h.Done.Seen(ctx, key); done {
		return nil
	}
	release, err := h.Locks.Lock(ctx, p.OrderID)
	if err != nil {
		return err
	}
	defer release()
	// another worker may have finished while we waited for the lock
	if done, _ := h.Done.Seen(ctx, key); done {
		return nil
	}

	res, err := h.Notifier.Notify(ctx, p.OrderID)
	if errors.Is(err, orders.ErrOrderNotFound) {
		log.Printf("[notify] order %s not found, dropping %s", p.OrderID, key)
		return nil
	}
	if err != nil {
		return err
	}
	if err := h.Done.Mark(ctx, key); err != nil {
		log.Printf("[notify] mark %s: %v", key, err)
	}
	log.Printf("[notify] order=%s trace=%s confirmation=%t commission_alert=%t skipped=%t",
		p.OrderID, env.TraceID, res.ConfirmationSent, res.CommissionAlert, res.Skipped)
	return nil
}
