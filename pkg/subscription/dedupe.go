package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/invoicer/pkg/cache"
)

// DefaultDedupeTTL is how long a delivered event id is remembered.
const DefaultDedupeTTL = 24 * time.Hour

// Deduper remembers provider event ids so redeliveries are acknowledged without reprocessing.
type Deduper interface {
	// Claim records the id and reports whether it was new.
	Claim(ctx context.Context, provider, eventID string) (bool, error)
	// Release forgets a claimed id so a failed event can be retried by the provider.
	Release(ctx context.Context, provider, eventID string) error
}

// RedisDeduper shares claimed ids across instances with SET NX.
type RedisDeduper struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

func NewRedisDeduper(client redis.UniversalClient, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	return &RedisDeduper{client: client, ttl: ttl, prefix: "billing:event:"}
}

func (d *RedisDeduper) key(provider, eventID string) string {
	return d.prefix + provider + ":" + eventID
}

func (d *RedisDeduper) Claim(ctx context.Context, provider, eventID string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.key(provider, eventID), time.Now().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim event %s: %w", eventID, err)
	}
	return ok, nil
}

func (d *RedisDeduper) Release(ctx context.Context, provider, eventID string) error {
	if err := d.client.Del(ctx, d.key(provider, eventID)).Err(); err != nil {
		return fmt.Errorf("release event %s: %w", eventID, err)
	}
	return nil
}

// MemoryDeduper keeps claimed ids in a bounded in-process LRU.
type MemoryDeduper struct {
	seen *cache.LRU[string, struct{}]
}

func NewMemoryDeduper(capacity int, ttl time.Duration, opts ...cache.Option) *MemoryDeduper {
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	if capacity <= 0 {
		capacity = 10000
	}
	opts = append([]cache.Option{cache.WithTTL(ttl)}, opts...)
	return &MemoryDeduper{seen: cache.NewLRU[string, struct{}](capacity, opts...)}
}

func (d *MemoryDeduper) Claim(_ context.Context, provider, eventID string) (bool, error) {
	return d.seen.PutIfAbsent(provider+":"+eventID, struct{}{}), nil
}

func (d *MemoryDeduper) Release(_ context.Context, provider, eventID string) error {
	d.seen.Remove(provider + ":" + eventID)
	return nil
}
