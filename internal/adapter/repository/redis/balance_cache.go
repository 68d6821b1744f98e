package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/iho/tontiflex/internal/domain"
)

// BalanceCache implements usecase.BalanceCache. Values are decimal strings.
type BalanceCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewBalanceCache creates a new BalanceCache.
func NewBalanceCache(client redis.UniversalClient, ttl time.Duration) *BalanceCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &BalanceCache{
		client: client,
		prefix: "tontiflex:balance:",
		ttl:    ttl,
	}
}

// Get returns the cached balance, ok=false on a miss.
func (c *BalanceCache) Get(ctx context.Context, ownerID string, pool domain.Pool) (decimal.Decimal, bool, error) {
	raw, err := c.client.Get(ctx, c.key(ownerID, pool)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}

	balance, err := decimal.NewFromString(raw)
	if err != nil {
		// unreadable entries are dropped and treated as a miss
		_ = c.client.Del(ctx, c.key(ownerID, pool)).Err()
		return decimal.Zero, false, nil
	}
	return balance, true, nil
}

// Set stores a balance.
func (c *BalanceCache) Set(ctx context.Context, ownerID string, pool domain.Pool, balance decimal.Decimal) error {
	return c.client.Set(ctx, c.key(ownerID, pool), balance.String(), c.ttl).Err()
}

// Invalidate removes a cached balance.
func (c *BalanceCache) Invalidate(ctx context.Context, ownerID string, pool domain.Pool) error {
	return c.client.Del(ctx, c.key(ownerID, pool)).Err()
}

func (c *BalanceCache) key(ownerID string, pool domain.Pool) string {
	return c.prefix + ownerID + ":" + string(pool.Kind) + ":" + pool.ID
}
