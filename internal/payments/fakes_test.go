package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/affiliates"
	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/orders"
	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/rates"
)

var errMockStorage = errors.New("mock storage error")

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// memOrders mirrors the conditional-update semantics of orders.Repo.
type memOrders struct {
	mu     sync.Mutex
	orders map[string]*orders.Order
}

func newMemOrders() *memOrders { return &memOrders{orders: map[string]*orders.Order{}} }

func (m *memOrders) CreateOrder(_ context.Context, in orders.NewOrder) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	subtotal := orders.Subtotal(in.ProgramPrice, in.Addons)
	total := orders.ComputeTotal(subtotal, in.Discount)
	o := &orders.Order{
		ID:           uuid.NewString(),
		ProgramID:    in.ProgramID,
		ProgramName:  in.ProgramName,
		ProgramPrice: in.ProgramPrice,
		Addons:       in.Addons,
		Subtotal:     subtotal,
		Discount:     subtotal.Sub(total),
		TotalPrice:   total,
		UserID:       in.UserID,
		Provider:     in.Provider,
		Status:       orders.StatusPending,
		CreatedAt:    time.Now(),
	}
	if in.AffiliateCode != "" {
		code := in.AffiliateCode
		o.AffiliateCode = &code
	}
	if in.DiscountCode != "" {
		code := in.DiscountCode
		o.DiscountCode = &code
		o.DiscountSource = in.DiscountSource
	}
	m.orders[o.ID] = o
	cp := *o
	return &cp, nil
}

func (m *memOrders) GetOrder(_ context.Context, id string) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) UpdateOrderStatus(_ context.Context, id string, to orders.Status, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return false, orders.ErrOrderNotFound
	}
	if o.Status == to {
		return false, nil
	}
	if !orders.CanTransition(o.Status, to) {
		return false, fmt.Errorf("%w: %s -> %s", orders.ErrInvalidTransition, o.Status, to)
	}
	o.Status = to
	if ref != "" {
		o.ProviderReference = &ref
	}
	return true, nil
}

func (m *memOrders) SetProviderReference(_ context.Context, id, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return orders.ErrOrderNotFound
	}
	o.ProviderReference = &ref
	return nil
}

type memAffiliates struct {
	mu        sync.Mutex
	byCode    map[string]*affiliates.Affiliate
	discounts map[string]*affiliates.DiscountCode
	referrals map[string]decimal.Decimal // order id -> commission
	uses      map[string]int
}

func newMemAffiliates() *memAffiliates {
	return &memAffiliates{
		byCode:    map[string]*affiliates.Affiliate{},
		discounts: map[string]*affiliates.DiscountCode{},
		referrals: map[string]decimal.Decimal{},
		uses:      map[string]int{},
	}
}

func (m *memAffiliates) GetByCode(_ context.Context, code string) (*affiliates.Affiliate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byCode[affiliates.NormalizeCode(code)]
	if !ok {
		return nil, affiliates.ErrAffiliateNotFound
	}
	return a, nil
}

func (m *memAffiliates) GetDiscountCode(_ context.Context, code string) (*affiliates.DiscountCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.discounts[affiliates.NormalizeCode(code)]
	if !ok {
		return nil, affiliates.ErrDiscountNotFound
	}
	return d, nil
}

func (m *memAffiliates) RedeemDiscountUse(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.discounts[code]; ok && d.MaxUses > 0 && m.uses[code] >= d.MaxUses {
		return false, nil
	}
	m.uses[code]++
	if d, ok := m.discounts[code]; ok {
		d.Uses = m.uses[code]
	}
	return true, nil
}

func (m *memAffiliates) CreateReferral(_ context.Context, _, orderID string, commission decimal.Decimal) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.referrals[orderID]; ok {
		return false, nil
	}
	m.referrals[orderID] = commission
	return true, nil
}

type published struct {
	Topic, EventType string
	Key              string
	Value            []byte
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, key []byte, eventType string, _ int, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{Topic: topic, EventType: eventType, Key: string(key), Value: value})
	return nil
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

type memDeliveries struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *memDeliveries) Seen(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[id], nil
}

func (d *memDeliveries) Mark(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	d.seen[id] = true
	return nil
}

// staticRates serves fixed rates keyed by pair; an absent pair is ErrRateNotFound.
type staticRates map[string]string

func (s staticRates) Get(_ context.Context, pair string) (rates.Rate, error) {
	v, ok := s[pair]
	if !ok {
		return rates.Rate{}, fmt.Errorf("%w: %s", rates.ErrRateNotFound, pair)
	}
	return rates.Rate{Pair: pair, Value: decimal.RequireFromString(v)}, nil
}

func testOrder(total string) *orders.Order {
	return &orders.Order{
		ID:          uuid.NewString(),
		ProgramID:   "challenge-50k",
		ProgramName: "50K Challenge",
		TotalPrice:  dec(total),
		UserID:      "user-1",
		Status:      orders.StatusPending,
	}
}
