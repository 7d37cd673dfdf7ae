package functions

import (
	"context"
	"time"

	"collections-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// RedisSendGuard allows one in-flight send per key, using the shared
// Redis concurrency cap. The TTL frees the slot if a process dies mid-send.
type RedisSendGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSendGuard(rdb *redis.Client, ttl time.Duration) *RedisSendGuard {
	if ttl <= 0 {
		ttl = defaultGuardTTL
	}
	return &RedisSendGuard{rdb: rdb, ttl: ttl}
}

func (g *RedisSendGuard) Acquire(ctx context.Context, key string) (bool, error) {
	return utils.AcquireConcurrencyCap(ctx, g.rdb, key, 1, g.ttl)
}

func (g *RedisSendGuard) Release(ctx context.Context, key string) error {
	return utils.ReleaseConcurrencyCap(ctx, g.rdb, key)
}
