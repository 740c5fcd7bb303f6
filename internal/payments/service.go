package payments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/affiliates"
	kafkax "github.com/fundedgiants/fundedgiants-web-18-sub000/internal/kafka"
	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/orders"
)

type OrderStore interface {
	CreateOrder(ctx context.Context, in orders.NewOrder) (*orders.Order, error)
	GetOrder(ctx context.Context, orderID string) (*orders.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, to orders.Status, providerRef string) (bool, error)
	SetProviderReference(ctx context.Context, orderID, ref string) error
}

type AffiliateStore interface {
	GetByCode(ctx context.Context, code string) (*affiliates.Affiliate, error)
	GetDiscountCode(ctx context.Context, code string) (*affiliates.DiscountCode, error)
	RedeemDiscountUse(ctx context.Context, code string) (bool, error)
	CreateReferral(ctx context.Context, affiliateID, orderID string, commission decimal.Decimal) (bool, error)
}

// Publisher writes an event and returns once it is durably accepted.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, eventType string, version int, value []byte) error
}

type asyncPublisher interface {
	PublishAsync(topic string, key []byte, eventType string, version int, value []byte) error
}

// DeliveryLog remembers webhook deliveries that were fully processed.
type DeliveryLog interface {
	Seen(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, id string) error
}

type StatusCache interface {
	Invalidate(ctx context.Context, orderID string)
}

type Service struct {
	Registry    *Registry
	Orders      OrderStore
	Affiliates  AffiliateStore
	Events      Publisher
	Deliveries  DeliveryLog // optional
	Cache       StatusCache // optional
	ServiceName string
	Now         func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type CheckoutRequest struct {
	ProgramID    string          `json:"program_id"`
	ProgramName  string          `json:"program_name"`
	ProgramPrice decimal.Decimal `json:"program_price"`
	Addons       []orders.Addon  `json:"selected_addons"`
	UserID       string          `json:"user_id"`
	PromoCode    string          `json:"promo_code"`
	// AffiliateCode is the referral code the browser stored when the visitor arrived.
	AffiliateCode string  `json:"affiliate_code"`
	Billing       Billing `json:"billing"`
}

func (r CheckoutRequest) validate() error {
	switch {
	case r.ProgramID == "" || r.ProgramName == "":
		return validationError("", "program is required")
	case r.UserID == "":
		return validationError("", "user_id is required")
	case !r.ProgramPrice.IsPositive():
		return validationError("", "program_price must be positive")
	}
	for _, a := range r.Addons {
		if a.Price.IsNegative() {
			return validationError("", "addon %q has a negative price", a.Name)
		}
	}
	return nil
}

// Quote resolves a promo code against a subtotal without creating anything.
func (s *Service) Quote(ctx context.Context, subtotal decimal.Decimal, promo string) (affiliates.Resolution, error) {
	promo = affiliates.NormalizeCode(promo)
	if promo == "" {
		return affiliates.Resolution{Amount: decimal.Zero}, nil
	}
	generic, err := s.Affiliates.GetDiscountCode(ctx, promo)
	if err != nil && !errors.Is(err, affiliates.ErrDiscountNotFound) {
		return affiliates.Resolution{}, err
	}
	aff, err := s.Affiliates.GetByCode(ctx, promo)
	if err != nil && !errors.Is(err, affiliates.ErrAffiliateNotFound) {
		return affiliates.Resolution{}, err
	}
	return affiliates.ResolveDiscount(subtotal, generic, aff, s.now()), nil
}

// attribution picks the affiliate credited for an order: the promo code's
// affiliate first, then the stored referral code if it belongs to an approved affiliate.
func (s *Service) attribution(ctx context.Context, res affiliates.Resolution, stored string) string {
	if res.AffiliateCode != "" {
		return res.AffiliateCode
	}
	stored = affiliates.NormalizeCode(stored)
	if stored == "" {
		return ""
	}
	aff, err := s.Affiliates.GetByCode(ctx, stored)
	if err != nil {
		if !errors.Is(err, affiliates.ErrAffiliateNotFound) {
			log.Printf("[checkout] affiliate lookup %s: %v", stored, err)
		}
		return ""
	}
	if aff.Status != affiliates.StatusApproved {
		return ""
	}
	return aff.Code
}

// Checkout creates a pending order and opens a payment for it with the chosen provider.
func (s *Service) Checkout(ctx context.Context, providerName string, req CheckoutRequest, traceID string) (Initiation, error) {
	p, err := s.Registry.Get(providerName)
	if err != nil {
		return Initiation{}, err
	}
	if err := req.validate(); err != nil {
		return Initiation{}, err
	}

	subtotal := orders.Subtotal(req.ProgramPrice, req.Addons)
	res, err := s.Quote(ctx, subtotal, req.PromoCode)
	if err != nil {
		return Initiation{}, err
	}
	if !orders.ComputeTotal(subtotal, res.Amount).IsPositive() {
		return Initiation{}, validationError("", "discount covers the whole order, nothing to charge")
	}
	discountCode := ""
	if res.Source != affiliates.SourceNone {
		discountCode = affiliates.NormalizeCode(req.PromoCode)
	}

	order, err := s.Orders.CreateOrder(ctx, orders.NewOrder{
		ProgramID:      req.ProgramID,
		ProgramName:    req.ProgramName,
		ProgramPrice:   req.ProgramPrice,
		Addons:         req.Addons,
		Discount:       res.Amount,
		DiscountCode:   discountCode,
		DiscountSource: res.Source,
		UserID:         req.UserID,
		Provider:       p.Name(),
		AffiliateCode:  s.attribution(ctx, res, req.AffiliateCode),
	})
	if err != nil {
		return Initiation{}, err
	}
	s.publishCreated(ctx, order, traceID)

	init, err := p.CreatePayment(ctx, order, req.Billing)
	if err != nil {
		log.Printf("[checkout] order=%s provider=%s: %v", order.ID, p.Name(), err)
		return Initiation{}, err
	}
	init.OrderID = order.ID
	if init.Reference != "" {
		if err := s.Orders.SetProviderReference(ctx, order.ID, init.Reference); err != nil {
			log.Printf("[checkout] order=%s store reference %s: %v", order.ID, init.Reference, err)
		}
	}
	return init, nil
}

func (s *Service) publishCreated(ctx context.Context, o *orders.Order, traceID string) {
	payload := orders.OrderCreatedPayload{
		OrderID:    o.ID,
		UserID:     o.UserID,
		ProgramID:  o.ProgramID,
		Provider:   o.Provider,
		TotalPrice: o.TotalPrice,
	}
	if o.AffiliateCode != nil {
		payload.AffiliateCode = *o.AffiliateCode
	}
	if err := s.publishAsync(ctx, orders.TopicOrderCreated, orders.EventOrderCreated, o.ID, traceID, payload); err != nil {
		log.Printf("[checkout] order=%s publish %s: %v", o.ID, orders.EventOrderCreated, err)
	}
}

func (s *Service) publish(ctx context.Context, topic, eventType, orderID, traceID string, payload any) error {
	return s.Events.Publish(ctx, topic, orders.PartitionKey(orderID), eventType, 1, s.envelope(eventType, orderID, traceID, payload))
}

// publishAsync queues the event when the publisher supports it. Used for
// events the request does not need to wait on.
func (s *Service) publishAsync(ctx context.Context, topic, eventType, orderID, traceID string, payload any) error {
	if ap, ok := s.Events.(asyncPublisher); ok {
		return ap.PublishAsync(topic, orders.PartitionKey(orderID), eventType, 1, s.envelope(eventType, orderID, traceID, payload))
	}
	return s.publish(ctx, topic, eventType, orderID, traceID, payload)
}

func (s *Service) envelope(eventType, orderID, traceID string, payload any) []byte {
	return kafkax.MustMarshal(orders.Envelope{
		EventID:        uuid.NewString(),
		EventType:      eventType,
		EventVersion:   1,
		OccurredAt:     s.now().UTC(),
		Producer:       s.ServiceName,
		TraceID:        traceID,
		CorrelationID:  orderID,
		IdempotencyKey: orders.IdempotencyKey(orderID, eventType),
		Payload:        kafkax.MustMarshal(payload),
	})
}

type WebhookResult struct {
	Provider  string        `json:"provider"`
	OrderID   string        `json:"order_id,omitempty"`
	Event     string        `json:"event"`
	Status    orders.Status `json:"status,omitempty"`
	Applied   bool          `json:"applied"`
	Duplicate bool          `json:"duplicate,omitempty"`
}

// HandleWebhook authenticates a provider callback and reconciles the order.
// Success side effects are published on every accepted success delivery under
// the idempotency key <orderId>:PaymentSucceeded; the notifier deduplicates.
func (s *Service) HandleWebhook(ctx context.Context, providerName string, header http.Header, raw []byte, traceID string) (WebhookResult, error) {
	p, err := s.Registry.Get(providerName)
	if err != nil {
		return WebhookResult{}, err
	}
	ev, err := p.VerifyWebhook(header, raw)
	if err != nil {
		log.Printf("[webhook] %s rejected: %v", p.Name(), err)
		return WebhookResult{}, err
	}
	res := WebhookResult{Provider: p.Name(), OrderID: ev.OrderID, Event: ev.RawStatus}

	deliveryID := deliveryKey(p.Name(), raw)
	if s.Deliveries != nil {
		if seen, err := s.Deliveries.Seen(ctx, deliveryID); err == nil && seen {
			res.Duplicate = true
			return res, nil
		}
	}

	if ev.Kind == EventOther {
		log.Printf("[webhook] %s: ignoring event %q order=%s", p.Name(), ev.RawStatus, ev.OrderID)
		s.markDelivered(ctx, deliveryID)
		return res, nil
	}
	if ev.OrderID == "" {
		return res, validationError(p.Name(), "payload carries no order id")
	}
	if ev.Status.IsAdminOnly() {
		return res, validationError(p.Name(), "status %s cannot be set by a webhook", ev.Status)
	}

	changed, err := s.Orders.UpdateOrderStatus(ctx, ev.OrderID, ev.Status, ev.ProviderReference)
	switch {
	case errors.Is(err, orders.ErrOrderNotFound):
		return res, notFound(p.Name(), "order %s not found", ev.OrderID)
	case errors.Is(err, orders.ErrInvalidTransition):
		// e.g. a late failure after the order was already paid
		log.Printf("[webhook] %s order=%s: %v", p.Name(), ev.OrderID, err)
		s.markDelivered(ctx, deliveryID)
		return res, nil
	case err != nil:
		return res, err
	}
	res.Applied = changed
	res.Status = ev.Status
	if changed && s.Cache != nil {
		s.Cache.Invalidate(ctx, ev.OrderID)
	}
	log.Printf("[webhook] %s order=%s status=%s applied=%t", p.Name(), ev.OrderID, ev.Status, changed)

	if ev.Kind == EventSuccess {
		if err := s.onSuccess(ctx, p.Name(), ev, changed, traceID); err != nil {
			return res, err
		}
	} else if changed {
		payload := orders.PaymentFailedPayload{OrderID: ev.OrderID, Provider: p.Name(), Status: ev.Status, Reason: ev.RawStatus}
		if err := s.publish(ctx, orders.TopicPaymentFailed, orders.EventPaymentFailed, ev.OrderID, traceID, payload); err != nil {
			log.Printf("[webhook] %s order=%s publish %s: %v", p.Name(), ev.OrderID, orders.EventPaymentFailed, err)
		}
	}

	s.markDelivered(ctx, deliveryID)
	return res, nil
}

// onSuccess credits the affiliate and hands the order to the notifier. Both
// steps are idempotent, so a provider retry after a failure here is safe.
// A discount code use is counted only by the delivery that moved the order to paid.
func (s *Service) onSuccess(ctx context.Context, provider string, ev VerifiedEvent, changed bool, traceID string) error {
	order, err := s.Orders.GetOrder(ctx, ev.OrderID)
	if err != nil {
		return err
	}
	if changed {
		s.redeemDiscount(ctx, order)
	}
	if err := s.creditAffiliate(ctx, order); err != nil {
		return err
	}

	payload := orders.PaymentSucceededPayload{
		OrderID:           order.ID,
		Provider:          provider,
		ProviderReference: ev.ProviderReference,
		TotalPrice:        order.TotalPrice,
	}
	if order.AffiliateCode != nil {
		payload.AffiliateCode = *order.AffiliateCode
	}
	return s.publish(ctx, orders.TopicPaymentSucceeded, orders.EventPaymentSucceeded, order.ID, traceID, payload)
}

func (s *Service) redeemDiscount(ctx context.Context, order *orders.Order) {
	if order.DiscountSource != affiliates.SourceGeneric || order.DiscountCode == nil {
		return
	}
	code := *order.DiscountCode
	ok, err := s.Affiliates.RedeemDiscountUse(ctx, code)
	switch {
	case err != nil:
		log.Printf("[webhook] order=%s redeem discount %s: %v", order.ID, code, err)
	case !ok:
		log.Printf("[webhook] order=%s discount %s was already at its use limit", order.ID, code)
	}
}

func (s *Service) creditAffiliate(ctx context.Context, order *orders.Order) error {
	if order.AffiliateCode == nil || *order.AffiliateCode == "" {
		return nil
	}
	aff, err := s.Affiliates.GetByCode(ctx, *order.AffiliateCode)
	if errors.Is(err, affiliates.ErrAffiliateNotFound) {
		log.Printf("[webhook] order=%s affiliate %s no longer exists", order.ID, *order.AffiliateCode)
		return nil
	}
	if err != nil {
		return err
	}
	if aff.Status != affiliates.StatusApproved {
		log.Printf("[webhook] order=%s affiliate %s is %s, no commission", order.ID, aff.Code, aff.Status)
		return nil
	}
	commission := affiliates.Commission(order.TotalPrice, aff.CommissionRate)
	created, err := s.Affiliates.CreateReferral(ctx, aff.ID, order.ID, commission)
	if err != nil {
		return err
	}
	if created {
		log.Printf("[webhook] order=%s credited affiliate %s commission=%s", order.ID, aff.Code, commission)
	}
	return nil
}

func (s *Service) markDelivered(ctx context.Context, id string) {
	if s.Deliveries == nil {
		return
	}
	if err := s.Deliveries.Mark(ctx, id); err != nil {
		log.Printf("[webhook] mark delivery %s: %v", id, err)
	}
}

func deliveryKey(provider string, raw []byte) string {
	sum := sha256.Sum256(raw)
	return strings.ToLower(provider) + ":" + hex.EncodeToString(sum[:])
}
