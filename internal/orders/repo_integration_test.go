//go:build integration

package orders

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/postgres"
)

// Run with: POSTGRES_TEST_DSN=postgres://... go test -tags integration ./internal/orders
func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	ctx := context.Background()
	db, err := postgres.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(db.Close)
	if err := postgres.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return &Repo{DB: db}
}

func TestRepoStatusGuard(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	o, err := r.CreateOrder(ctx, NewOrder{
		ProgramID: "challenge-10k", ProgramName: "10K Challenge",
		ProgramPrice: decimal.RequireFromString("99"), UserID: "it-user", Provider: "paystack",
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	// concurrent success deliveries: exactly one writer
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		changed int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := r.UpdateOrderStatus(ctx, o.ID, StatusPaid, "ref-1")
			if err != nil {
				t.Errorf("UpdateOrderStatus: %v", err)
			}
			if ok {
				mu.Lock()
				changed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if changed != 1 {
		t.Fatalf("writers = %d, want 1", changed)
	}

	if _, err := r.UpdateOrderStatus(ctx, o.ID, StatusFailed, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("paid -> failed: err = %v", err)
	}
	if s, _ := r.GetOrderStatus(ctx, o.ID); s != StatusPaid {
		t.Fatalf("status = %s", s)
	}
	if _, err := r.UpdateOrderStatus(ctx, "5d0c1f3e-0000-4000-8000-000000000000", StatusPaid, ""); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("missing order: err = %v", err)
	}
}
