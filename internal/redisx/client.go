package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Markers records keys that mark a unit of work as already done.
type Markers struct {
	RDB    *redis.Client
	Format string
	TTL    time.Duration
}

func (m *Markers) Seen(ctx context.Context, id string) (bool, error) {
	return Exists(ctx, m.RDB, fmt.Sprintf(m.Format, id))
}

func (m *Markers) Mark(ctx context.Context, id string) error {
	return m.RDB.Set(ctx, fmt.Sprintf(m.Format, id), "1", m.TTL).Err()
}

// StatusCache is a short-lived read cache of order statuses.
type StatusCache struct{ RDB *redis.Client }

func (c *StatusCache) Get(ctx context.Context, orderID string) (string, bool) {
	s, err := c.RDB.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Result()
	if err != nil || s == "" {
		return "", false
	}
	return s, true
}

func (c *StatusCache) Set(ctx context.Context, orderID string, body []byte) {
	_ = c.RDB.Set(ctx, fmt.Sprintf(KeyOrderStatus, orderID), body, TTLStatusCache).Err()
}

func (c *StatusCache) Invalidate(ctx context.Context, orderID string) {
	_ = c.RDB.Del(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Err()
}

// Locker hands out redsync mutexes keyed by name.
type Locker struct {
	rs *redsync.Redsync
}

func NewLocker(rdb *redis.Client) *Locker {
	return &Locker{rs: redsync.New(goredis.NewPool(rdb))}
}

// Lock blocks (with redsync's retry policy) until the named lock is held.
// The returned func releases it.
func (l *Locker) Lock(ctx context.Context, name string) (func(), error) {
	m := l.rs.NewMutex(fmt.Sprintf(KeyNotifyLock, name),
		redsync.WithExpiry(TTLNotifyLock),
		redsync.WithTries(8),
	)
	if err := m.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("lock %s: %w", name, err)
	}
	return func() { _, _ = m.UnlockContext(context.Background()) }, nil
}
