package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/srgjo27/eventflow/internal/core/ports"
)

var _ ports.AvailabilityCache = (*AvailabilityCache)(nil)

// AvailabilityCache keeps a batch's remaining quantity in Redis for read
// endpoints. Issuance invalidates the entry after every committed sale.
type AvailabilityCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewAvailabilityCache(rdb redis.Cmdable, ttl time.Duration) *AvailabilityCache {
	return &AvailabilityCache{rdb: rdb, ttl: ttl}
}

func availabilityKey(batchID string) string {
	return fmt.Sprintf("batch:%s:remaining", batchID)
}

func (c *AvailabilityCache) Get(ctx context.Context, batchID string) (int, bool, error) {
	n, err := c.rdb.Get(ctx, availabilityKey(batchID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

func (c *AvailabilityCache) Set(ctx context.Context, batchID string, remaining int) error {
	return c.rdb.Set(ctx, availabilityKey(batchID), remaining, c.ttl).Err()
}

func (c *AvailabilityCache) Invalidate(ctx context.Context, batchID string) error {
	return c.rdb.Del(ctx, availabilityKey(batchID)).Err()
}
