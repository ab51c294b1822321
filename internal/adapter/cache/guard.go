package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/srgjo27/eventflow/internal/core/ports"
)

const defaultSentTTL = 24 * time.Hour

var _ ports.FulfillmentGuard = (*FulfillmentGuard)(nil)

// FulfillmentGuard is a per-ticket lock plus a "message handed off" marker.
// The marker outlives the lock so a retry after a crash between sending and
// flagging delivery does not email the buyer twice.
type FulfillmentGuard struct {
	rdb     redis.Cmdable
	sentTTL time.Duration
}

func NewFulfillmentGuard(rdb redis.Cmdable, sentTTL time.Duration) *FulfillmentGuard {
	if sentTTL <= 0 {
		sentTTL = defaultSentTTL
	}
	return &FulfillmentGuard{rdb: rdb, sentTTL: sentTTL}
}

func lockKey(ticketID string) string {
	return fmt.Sprintf("fulfillment:lock:%s", ticketID)
}

func sentKey(ticketID string) string {
	return fmt.Sprintf("fulfillment:sent:%s", ticketID)
}

func (g *FulfillmentGuard) Acquire(ctx context.Context, ticketID string, ttl time.Duration) (bool, error) {
	return g.rdb.SetNX(ctx, lockKey(ticketID), 1, ttl).Result()
}

func (g *FulfillmentGuard) Release(ctx context.Context, ticketID string) error {
	return g.rdb.Del(ctx, lockKey(ticketID)).Err()
}

func (g *FulfillmentGuard) MarkSent(ctx context.Context, ticketID string) error {
	return g.rdb.Set(ctx, sentKey(ticketID), 1, g.sentTTL).Err()
}

func (g *FulfillmentGuard) WasSent(ctx context.Context, ticketID string) (bool, error) {
	n, err := g.rdb.Exists(ctx, sentKey(ticketID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
