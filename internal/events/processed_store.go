package events

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultProcessedTTL = 24 * time.Hour

// ProcessedStore records webhook deliveries that were already applied, so a
// platform retry of the same delivery is acknowledged without re-applying it.
type ProcessedStore struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
}

func NewProcessedStore(rdb redis.Cmdable, ttl time.Duration) *ProcessedStore {
	if rdb == nil {
		panic("events: redis client required")
	}
	if ttl <= 0 {
		ttl = defaultProcessedTTL
	}
	return &ProcessedStore{rdb: rdb, ttl: ttl, prefix: "vapi:processed:"}
}

// DeliveryKey identifies a delivery. Events without a call id or timestamp,
// and function calls (which must always be answered), have no key.
func DeliveryKey(ev CallEvent) (string, bool) {
	if ev.CallID == "" || ev.Timestamp == "" {
		return "", false
	}
	if ev.Kind == KindUnknown || ev.Kind == KindFunctionCall {
		return "", false
	}
	h := sha256.Sum256([]byte(ev.Status + "\x00" + ev.Role + "\x00" + ev.Transcript))
	return fmt.Sprintf("%s:%s:%s:%s", ev.Kind, ev.CallID, ev.Timestamp, hex.EncodeToString(h[:8])), true
}

// AlreadyProcessed checks if we've seen this delivery key.
func (s *ProcessedStore) AlreadyProcessed(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("events: check processed: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed stores the key, returning false if it already existed.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, s.prefix+key, 1, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ok, nil
}
