package rates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/redisx"
)

var (
	ErrRateNotFound = errors.New("exchange rate not found")
	ErrInvalidRate  = errors.New("exchange rate must be a positive number")
)

// Rate converts one USD into Value units of the quote currency.
type Rate struct {
	Pair      string          `json:"pair"`
	Value     decimal.Decimal `json:"rate"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Pair builds the storage key for a USD->currency rate, e.g. "USD_NGN".
func Pair(currency string) string {
	return "USD_" + strings.ToUpper(currency)
}

type Repo struct {
	DB    *pgxpool.Pool
	Redis *redis.Client
}

// Get reads through the Redis cache. A missing row is ErrRateNotFound.
func (r *Repo) Get(ctx context.Context, pair string) (Rate, error) {
	key := fmt.Sprintf(redisx.KeyExchangeRate, pair)
	if r.Redis != nil {
		if s, err := r.Redis.Get(ctx, key).Result(); err == nil {
			if v, err := decimal.NewFromString(s); err == nil && v.IsPositive() {
				return Rate{Pair: pair, Value: v}, nil
			}
		}
	}

	var (
		raw  string
		rate = Rate{Pair: pair}
	)
	err := r.DB.QueryRow(ctx, `SELECT rate::text, updated_at FROM exchange_rates WHERE pair=$1`, pair).
		Scan(&raw, &rate.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rate{}, fmt.Errorf("%w: %s", ErrRateNotFound, pair)
	}
	if err != nil {
		return Rate{}, err
	}
	v, err := decimal.NewFromString(raw)
	if err != nil || !v.IsPositive() {
		return Rate{}, fmt.Errorf("%w: %s=%q", ErrInvalidRate, pair, raw)
	}
	rate.Value = v

	if r.Redis != nil {
		_ = r.Redis.Set(ctx, key, v.String(), redisx.TTLExchangeRate).Err()
	}
	return rate, nil
}

// Set upserts a rate. Only the admin console calls this.
func (r *Repo) Set(ctx context.Context, pair string, value decimal.Decimal) (Rate, error) {
	if !value.IsPositive() {
		return Rate{}, ErrInvalidRate
	}
	rate := Rate{Pair: pair, Value: value}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO exchange_rates(pair, rate) VALUES ($1, $2::numeric)
		ON CONFLICT (pair) DO UPDATE SET rate = EXCLUDED.rate, updated_at = now()
		RETURNING updated_at`, pair, value.String()).Scan(&rate.UpdatedAt)
	if err != nil {
		return Rate{}, err
	}
	if r.Redis != nil {
		_ = r.Redis.Del(ctx, fmt.Sprintf(redisx.KeyExchangeRate, pair)).Err()
	}
	return rate, nil
}
