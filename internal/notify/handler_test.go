package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/fundedgiants/fundedgiants-web-18-sub000/internal/kafka"
	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/orders"
)

type memMarkers struct {
	mu   sync.Mutex
	done map[string]bool
}

func (m *memMarkers) Seen(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done[key], nil
}

func (m *memMarkers) Mark(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done == nil {
		m.done = map[string]bool{}
	}
	m.done[key] = true
	return nil
}

type fakeLocker struct {
	mu     sync.Mutex
	locks  int
	err    error
	orders map[string]*sync.Mutex
}

func (l *fakeLocker) Lock(_ context.Context, name string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	l.locks++
	if l.orders == nil {
		l.orders = map[string]*sync.Mutex{}
	}
	m, ok := l.orders[name]
	if !ok {
		m = &sync.Mutex{}
		l.orders[name] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock, nil
}

func succeededMessage(t *testing.T, id, eventType string) kafkago.Message {
	t.Helper()
	env := orders.Envelope{
		EventID:        "evt-" + id,
		EventType:      eventType,
		EventVersion:   1,
		IdempotencyKey: orders.IdempotencyKey(id, eventType),
		Payload:        kafkax.MustMarshal(orders.PaymentSucceededPayload{OrderID: id, Provider: "paystack"}),
	}
	return kafkago.Message{Topic: orders.TopicPaymentSucceeded, Key: []byte(id), Value: kafkax.MustMarshal(env)}
}

func TestHandlePaymentSucceededRunsOnce(t *testing.T) {
	n, mailer, _ := newTestNotifier("")
	markers := &memMarkers{}
	h := &Handler{Notifier: n, Done: markers, Locks: &fakeLocker{}}
	msg := succeededMessage(t, orderID, orders.EventPaymentSucceeded)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.HandlePaymentSucceeded(context.Background(), msg); err != nil {
				t.Errorf("handle: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(mailer.sent) != 1 {
		t.Fatalf("confirmation sent %d times, want 1", len(mailer.sent))
	}
	if !markers.done[orderID+":PaymentSucceeded"] {
		t.Fatal("done marker not set")
	}
}

func TestHandlePaymentSucceededIgnoresOtherEvents(t *testing.T) {
	n, mailer, _ := newTestNotifier("")
	locks := &fakeLocker{}
	h := &Handler{Notifier: n, Done: &memMarkers{}, Locks: locks}
	if err := h.HandlePaymentSucceeded(context.Background(), succeededMessage(t, orderID, orders.EventPaymentFailed)); err != nil {
		t.Fatal(err)
	}
	if err := h.HandlePaymentSucceeded(context.Background(), kafkago.Message{Value: []byte("not json")}); err != nil {
		t.Fatalf("poison message should be dropped: %v", err)
	}
	if len(mailer.sent) != 0 || locks.locks != 0 {
		t.Fatalf("sent=%d locks=%d", len(mailer.sent), locks.locks)
	}
}

func TestHandlePaymentSucceededDropsUnknownOrder(t *testing.T) {
	n, _, _ := newTestNotifier("")
	markers := &memMarkers{}
	h := &Handler{Notifier: n, Done: markers, Locks: &fakeLocker{}}
	if err := h.HandlePaymentSucceeded(context.Background(), succeededMessage(t, "gone", orders.EventPaymentSucceeded)); err != nil {
		t.Fatalf("missing order should be committed, got %v", err)
	}
	if markers.done["gone:PaymentSucceeded"] {
		t.Fatal("missing order must not be marked done")
	}
}

func TestHandlePaymentSucceededRetriesOnFailure(t *testing.T) {
	n, mailer, _ := newTestNotifier("")
	mailer.SendFunc = func(Email) error { return errors.New("smtp 451") }
	markers := &memMarkers{}
	h := &Handler{Notifier: n, Done: markers, Locks: &fakeLocker{}}
	msg := succeededMessage(t, orderID, orders.EventPaymentSucceeded)

	if err := h.HandlePaymentSucceeded(context.Background(), msg); err == nil {
		t.Fatal("expected error so the offset stays uncommitted")
	}
	if markers.done[orderID+":PaymentSucceeded"] {
		t.Fatal("failed run marked done")
	}

	mailer.SendFunc = nil
	if err := h.HandlePaymentSucceeded(context.Background(), msg); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("sent = %d", len(mailer.sent))
	}
}

func TestHandlePaymentSucceededLockError(t *testing.T) {
	n, _, _ := newTestNotifier("")
	h := &Handler{Notifier: n, Done: &memMarkers{}, Locks: &fakeLocker{err: errors.New("redis down")}}
	if err := h.HandlePaymentSucceeded(context.Background(), succeededMessage(t, orderID, orders.EventPaymentSucceeded)); err == nil {
		t.Fatal("lock failure must be retried")
	}
}
