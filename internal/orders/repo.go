package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

type Repo struct{ DB *pgxpool.Pool }

const orderColumns = `id, program_id, program_name, program_price::text, addons, subtotal::text,
	discount::text, discount_code, discount_source, total_price::text, user_id, provider, provider_reference,
	status, affiliate_code, created_at, updated_at`

// CreateOrder inserts a pending order and returns it with computed totals.
func (r *Repo) CreateOrder(ctx context.Context, in NewOrder) (*Order, error) {
	addons := in.Addons
	if addons == nil {
		addons = []Addon{}
	}
	addonsJSON, err := json.Marshal(addons)
	if err != nil {
		return nil, fmt.Errorf("encode addons: %w", err)
	}
	subtotal := Subtotal(in.ProgramPrice, addons)
	total := ComputeTotal(subtotal, in.Discount)

	row := r.DB.QueryRow(ctx, `
		INSERT INTO orders(id, program_id, program_name, program_price, addons, subtotal,
		                   discount, discount_code, discount_source, total_price, user_id, provider, status, affiliate_code)
		VALUES ($1, $2, $3, $4::numeric, $5, $6::numeric, $7::numeric, NULLIF($8, ''), $9, $10::numeric,
		        $11, $12, 'pending', NULLIF($13, ''))
		RETURNING `+orderColumns,
		uuid.NewString(), in.ProgramID, in.ProgramName, in.ProgramPrice.String(), addonsJSON,
		subtotal.String(), subtotal.Sub(total).String(), in.DiscountCode, in.DiscountSource, total.String(),
		in.UserID, in.Provider, in.AffiliateCode,
	)
	return scanOrder(row)
}

func (r *Repo) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, ErrOrderNotFound
	}
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	return o, err
}

const updateStatusSQL = `
	UPDATE orders
	SET status=$2, provider_reference=COALESCE(NULLIF($3, ''), provider_reference), updated_at=now()
	WHERE id=$1 AND status = ANY($4)`

// UpdateOrderStatus moves an order forward along the lifecycle. The WHERE clause
// only matches rows in a status allowed to reach `to`, so concurrent deliveries
// resolve to exactly one writer. Re-applying the current status reports
// changed=false with no error.
func (r *Repo) UpdateOrderStatus(ctx context.Context, orderID string, to Status, providerRef string) (changed bool, err error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return false, ErrOrderNotFound
	}
	ct, err := r.DB.Exec(ctx, updateStatusSQL, orderID, string(to), providerRef, allowedFromArg(to))
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() == 1 {
		return true, nil
	}

	var current string
	if err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, orderID).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrOrderNotFound
		}
		return false, err
	}
	return false, unmatchedTransition(Status(current), to)
}

// allowedFromArg is the text[] bound to $4 of updateStatusSQL.
func allowedFromArg(to Status) []string {
	from := AllowedFrom(to)
	out := make([]string, 0, len(from))
	for _, s := range from {
		out = append(out, string(s))
	}
	return out
}

// unmatchedTransition explains an UPDATE that touched no row: a replay of the
// current status is a no-op, anything else is refused.
func unmatchedTransition(current, to Status) error {
	if current == to {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, to)
}

// SetProviderReference records a reference the provider returned synchronously.
func (r *Repo) SetProviderReference(ctx context.Context, orderID, ref string) error {
	ct, err := r.DB.Exec(ctx, `UPDATE orders SET provider_reference=$2, updated_at=now() WHERE id=$1`, orderID, ref)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *Repo) GetOrderStatus(ctx context.Context, orderID string) (Status, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return "", ErrOrderNotFound
	}
	var s string
	err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, orderID).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrOrderNotFound
	}
	if err != nil {
		return "", err
	}
	return Status(s), nil
}

// ListOrders returns newest first. An empty status lists every order.
func (r *Repo) ListOrders(ctx context.Context, status Status, limit, offset int) ([]Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.DB.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, string(status), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o                                              Order
		programPrice, subtotal, discount, total, state string
		addons                                         []byte
	)
	err := row.Scan(&o.ID, &o.ProgramID, &o.ProgramName, &programPrice, &addons, &subtotal,
		&discount, &o.DiscountCode, &o.DiscountSource, &total, &o.UserID, &o.Provider, &o.ProviderReference,
		&state, &o.AffiliateCode, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = Status(state)
	if len(addons) > 0 {
		if err := json.Unmarshal(addons, &o.Addons); err != nil {
			return nil, fmt.Errorf("decode addons: %w", err)
		}
	}
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&o.ProgramPrice, programPrice},
		{&o.Subtotal, subtotal},
		{&o.Discount, discount},
		{&o.TotalPrice, total},
	} {
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return nil, fmt.Errorf("decode amount %q: %w", f.src, err)
		}
		*f.dst = d
	}
	return &o, nil
}
