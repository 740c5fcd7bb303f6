package affiliates

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrAffiliateNotFound = errors.New("affiliate not found")
	ErrReferralNotFound  = errors.New("referral not found")
	ErrDiscountNotFound  = errors.New("discount code not found")
	ErrCodeTaken         = errors.New("affiliate code already taken")
	ErrInvalidCode       = errors.New("code must be 3-32 letters, digits, '-' or '_'")
)

var codePattern = regexp.MustCompile(`^[A-Z0-9_-]{3,32}$`)

// NormalizeCode uppercases and trims a promo or affiliate code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type Repo struct{ DB *pgxpool.Pool }

const affiliateColumns = `id, user_id, code, status, commission_rate::text, tier,
	discount_enabled, discount_percent::text, created_at, updated_at`

func (r *Repo) GetByCode(ctx context.Context, code string) (*Affiliate, error) {
	return r.getOne(ctx, `SELECT `+affiliateColumns+` FROM affiliates WHERE code=$1`, NormalizeCode(code))
}

func (r *Repo) GetByID(ctx context.Context, id string) (*Affiliate, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrAffiliateNotFound
	}
	return r.getOne(ctx, `SELECT `+affiliateColumns+` FROM affiliates WHERE id=$1`, id)
}

func (r *Repo) getOne(ctx context.Context, q string, arg any) (*Affiliate, error) {
	a, err := scanAffiliate(r.DB.QueryRow(ctx, q, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAffiliateNotFound
	}
	return a, err
}

// Apply registers a pending affiliate. An empty code gets a generated one.
func (r *Repo) Apply(ctx context.Context, userID, code string) (*Affiliate, error) {
	code = NormalizeCode(code)
	if code == "" {
		code = strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	}
	if !codePattern.MatchString(code) {
		return nil, ErrInvalidCode
	}
	a, err := scanAffiliate(r.DB.QueryRow(ctx, `
		INSERT INTO affiliates(id, user_id, code, status)
		VALUES ($1, $2, $3, 'pending')
		RETURNING `+affiliateColumns, uuid.NewString(), userID, code))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return nil, ErrCodeTaken
	}
	return a, err
}

func (r *Repo) Approve(ctx context.Context, id string) (*Affiliate, error) {
	return r.setStatus(ctx, id, StatusApproved)
}

func (r *Repo) Reject(ctx context.Context, id string) (*Affiliate, error) {
	return r.setStatus(ctx, id, StatusRejected)
}

func (r *Repo) setStatus(ctx context.Context, id string, s Status) (*Affiliate, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrAffiliateNotFound
	}
	return r.getOne(ctx, `UPDATE affiliates SET status='`+string(s)+`', updated_at=now()
		WHERE id=$1 RETURNING `+affiliateColumns, id)
}

// UpdateCommission changes the commission rate (percent) and tier.
func (r *Repo) UpdateCommission(ctx context.Context, id string, rate decimal.Decimal, tier string) (*Affiliate, error) {
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return nil, fmt.Errorf("commission rate %s out of range", rate)
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrAffiliateNotFound
	}
	a, err := scanAffiliate(r.DB.QueryRow(ctx, `
		UPDATE affiliates SET commission_rate=$2::numeric, tier=COALESCE(NULLIF($3, ''), tier), updated_at=now()
		WHERE id=$1 RETURNING `+affiliateColumns, id, rate.String(), tier))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAffiliateNotFound
	}
	return a, err
}

// SetDiscount configures the affiliate's self-service discount.
func (r *Repo) SetDiscount(ctx context.Context, id string, enabled bool, percent decimal.Decimal) (*Affiliate, error) {
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return nil, fmt.Errorf("discount percent %s out of range", percent)
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrAffiliateNotFound
	}
	a, err := scanAffiliate(r.DB.QueryRow(ctx, `
		UPDATE affiliates SET discount_enabled=$2, discount_percent=$3::numeric, updated_at=now()
		WHERE id=$1 RETURNING `+affiliateColumns, id, enabled, percent.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAffiliateNotFound
	}
	return a, err
}

// CreateReferral credits the affiliate for an order. Only the first call per
// order inserts; later calls report created=false.
func (r *Repo) CreateReferral(ctx context.Context, affiliateID, orderID string, commission decimal.Decimal) (created bool, err error) {
	ct, err := r.DB.Exec(ctx, `
		INSERT INTO affiliate_referrals(id, affiliate_id, order_id, commission, status)
		VALUES ($1, $2, $3, $4::numeric, 'pending')
		ON CONFLICT (order_id) DO NOTHING`,
		uuid.NewString(), affiliateID, orderID, commission.String())
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

const referralColumns = `id, affiliate_id, order_id, commission::text, status, created_at`

func (r *Repo) GetReferralByOrder(ctx context.Context, orderID string) (*Referral, error) {
	ref, err := scanReferral(r.DB.QueryRow(ctx,
		`SELECT `+referralColumns+` FROM affiliate_referrals WHERE order_id=$1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReferralNotFound
	}
	return ref, err
}

func (r *Repo) ListReferrals(ctx context.Context, affiliateID string) ([]Referral, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+referralColumns+` FROM affiliate_referrals
		WHERE affiliate_id=$1 ORDER BY created_at DESC`, affiliateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Referral
	for rows.Next() {
		ref, err := scanReferral(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ref)
	}
	return out, rows.Err()
}

// UpdateReferralStatus is the admin payout action.
func (r *Repo) UpdateReferralStatus(ctx context.Context, id string, s ReferralStatus) (*Referral, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown referral status %q", s)
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrReferralNotFound
	}
	ref, err := scanReferral(r.DB.QueryRow(ctx, `
		UPDATE affiliate_referrals SET status=$2, updated_at=now()
		WHERE id=$1 RETURNING `+referralColumns, id, string(s)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReferralNotFound
	}
	return ref, err
}

const discountColumns = `code, kind, value::text, active, expires_at, max_uses, uses`

func (r *Repo) GetDiscountCode(ctx context.Context, code string) (*DiscountCode, error) {
	d, err := scanDiscount(r.DB.QueryRow(ctx,
		`SELECT `+discountColumns+` FROM discount_codes WHERE code=$1`, NormalizeCode(code)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDiscountNotFound
	}
	return d, err
}

func (r *Repo) CreateDiscountCode(ctx context.Context, d DiscountCode) (*DiscountCode, error) {
	d.Code = NormalizeCode(d.Code)
	if !codePattern.MatchString(d.Code) {
		return nil, ErrInvalidCode
	}
	if d.Kind != DiscountPercent && d.Kind != DiscountFixed {
		return nil, fmt.Errorf("unknown discount kind %q", d.Kind)
	}
	if !d.Value.IsPositive() || (d.Kind == DiscountPercent && d.Value.GreaterThan(hundred)) {
		return nil, fmt.Errorf("discount value %s out of range", d.Value)
	}
	out, err := scanDiscount(r.DB.QueryRow(ctx, `
		INSERT INTO discount_codes(code, kind, value, active, expires_at, max_uses)
		VALUES ($1, $2, $3::numeric, true, $4, $5)
		RETURNING `+discountColumns, d.Code, string(d.Kind), d.Value.String(), d.ExpiresAt, d.MaxUses))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return nil, ErrCodeTaken
	}
	return out, err
}

func (r *Repo) DeactivateDiscountCode(ctx context.Context, code string) error {
	ct, err := r.DB.Exec(ctx, `UPDATE discount_codes SET active=false WHERE code=$1`, NormalizeCode(code))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrDiscountNotFound
	}
	return nil
}

// RedeemDiscountUse counts one use of a code. It reports false when the code
// is already at max_uses, so concurrent redemptions never overshoot the limit.
func (r *Repo) RedeemDiscountUse(ctx context.Context, code string) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE discount_codes SET uses = uses + 1
		WHERE code=$1 AND (max_uses = 0 OR uses < max_uses)`, NormalizeCode(code))
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func scanAffiliate(row pgx.Row) (*Affiliate, error) {
	var (
		a              Affiliate
		status         string
		rate, discount string
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.Code, &status, &rate, &a.Tier,
		&a.DiscountEnabled, &discount, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Status = Status(status)
	var err error
	if a.CommissionRate, err = decimal.NewFromString(rate); err != nil {
		return nil, err
	}
	if a.DiscountPercent, err = decimal.NewFromString(discount); err != nil {
		return nil, err
	}
	return &a, nil
}

func scanReferral(row pgx.Row) (*Referral, error) {
	var (
		ref                Referral
		commission, status string
	)
	if err := row.Scan(&ref.ID, &ref.AffiliateID, &ref.OrderID, &commission, &status, &ref.CreatedAt); err != nil {
		return nil, err
	}
	ref.Status = ReferralStatus(status)
	c, err := decimal.NewFromString(commission)
	if err != nil {
		return nil, err
	}
	ref.Commission = c
	return &ref, nil
}

func scanDiscount(row pgx.Row) (*DiscountCode, error) {
	var (
		d         DiscountCode
		kind, val string
	)
	if err := row.Scan(&d.Code, &kind, &val, &d.Active, &d.ExpiresAt, &d.MaxUses, &d.Uses); err != nil {
		return nil, err
	}
	d.Kind = DiscountKind(kind)
	v, err := decimal.NewFromString(val)
	if err != nil {
		return nil, err
	}
	d.Value = v
	return &d, nil
}
