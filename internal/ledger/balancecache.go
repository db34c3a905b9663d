package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// BalanceCache wraps Redis based caching of balance reads. Writes invalidate
// the affected key, so a stale read never outlives the next movement. A nil
// client degrades to pass-through loading.
type BalanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBalanceCache instantiates the cache helper.
func NewBalanceCache(client *redis.Client, ttl time.Duration) *BalanceCache {
	return &BalanceCache{client: client, ttl: ttl}
}

func balanceKey(itemID, warehouseID int64) string {
	return fmt.Sprintf("stock:balance:%d:%d", itemID, warehouseID)
}

// Fetch loads a cached balance or populates it using the loader. Redis
// failures degrade to a plain repository read; the source of truth stays
// reachable when the cache is not.
func (c *BalanceCache) Fetch(ctx context.Context, itemID, warehouseID int64, loader func(context.Context) (Balance, error)) (Balance, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	key := balanceKey(itemID, warehouseID)
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var balance Balance
		if err := json.Unmarshal(payload, &balance); err == nil {
			return balance, nil
		}
	}
	balance, err := loader(ctx)
	if err != nil {
		return Balance{}, err
	}
	if raw, err := json.Marshal(balance); err == nil {
		_ = c.client.Set(ctx, key, raw, c.ttl).Err()
	}
	return balance, nil
}

// Invalidate drops the cached balance for one (item, warehouse) pair.
func (c *BalanceCache) Invalidate(ctx context.Context, itemID, warehouseID int64) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, balanceKey(itemID, warehouseID)).Err()
}
