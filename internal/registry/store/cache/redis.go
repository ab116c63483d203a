// Package cache backs hash-existence lookups with Redis. Entries are
// advisory: the store stays authoritative and the service falls through to
// it on any miss or cache failure.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	platformredis "provenance/internal/platform/redis"
	"provenance/pkg/domain"
)

const keyPrefix = "provenance:batch:exists:"

// Existence caches per-hash existence answers with a TTL.
type Existence struct {
	client *platformredis.Client
	ttl    time.Duration
}

func NewExistence(client *platformredis.Client, ttl time.Duration) *Existence {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Existence{client: client, ttl: ttl}
}

// Lookup returns the cached answer for hash. found=false on a miss.
func (e *Existence) Lookup(ctx context.Context, hash []byte) (exists bool, found bool, err error) {
	val, err := e.client.Get(ctx, key(hash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, false, nil
		}
		return false, false, fmt.Errorf("existence cache get: %w", err)
	}
	return val == "1", true, nil
}

// Store caches the answer for hash.
func (e *Existence) Store(ctx context.Context, hash []byte, exists bool) error {
	val := "0"
	if exists {
		val = "1"
	}
	if err := e.client.Set(ctx, key(hash), val, e.ttl).Err(); err != nil {
		return fmt.Errorf("existence cache set: %w", err)
	}
	return nil
}

// Invalidate drops the cached answers for the given hashes.
func (e *Existence) Invalidate(ctx context.Context, hashes ...[]byte) error {
	if len(hashes) == 0 {
		return nil
	}
	keys := make([]string, len(hashes))
	for i, h := range hashes {
		keys[i] = key(h)
	}
	if err := e.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("existence cache del: %w", err)
	}
	return nil
}

func key(hash []byte) string {
	return keyPrefix + domain.HashKey(hash)
}
