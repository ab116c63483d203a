//go:build integration

package cache_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	platformredis "provenance/internal/platform/redis"
	"provenance/internal/registry/store/cache"
	"provenance/pkg/testutil/containers"
)

func newExistence(t *testing.T, ttl time.Duration) *cache.Existence {
	rc := containers.NewRedisContainer(t)
	return cache.NewExistence(&platformredis.Client{Client: rc.Client}, ttl)
}

func TestExistenceCache(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	existence := newExistence(t, time.Minute)
	hash := bytes.Repeat([]byte{0x01}, 32)

	t.Run("miss before any store", func(t *testing.T) {
		_, found, err := existence.Lookup(ctx, hash)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("round-trips both answers", func(t *testing.T) {
		require.NoError(t, existence.Store(ctx, hash, true))
		exists, found, err := existence.Lookup(ctx, hash)
		require.NoError(t, err)
		assert.True(t, found)
		assert.True(t, exists)

		other := bytes.Repeat([]byte{0x02}, 32)
		require.NoError(t, existence.Store(ctx, other, false))
		exists, found, err = existence.Lookup(ctx, other)
		require.NoError(t, err)
		assert.True(t, found)
		assert.False(t, exists)
	})

	t.Run("invalidate drops entries", func(t *testing.T) {
		require.NoError(t, existence.Store(ctx, hash, true))
		require.NoError(t, existence.Invalidate(ctx, hash))

		_, found, err := existence.Lookup(ctx, hash)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("invalidate with no hashes is a no-op", func(t *testing.T) {
		require.NoError(t, existence.Invalidate(ctx))
	})
}

func TestExistenceCacheTTL(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	existence := newExistence(t, time.Second)
	hash := bytes.Repeat([]byte{0x03}, 32)

	require.NoError(t, existence.Store(ctx, hash, true))

	assert.Eventually(t, func() bool {
		_, found, err := existence.Lookup(ctx, hash)
		return err == nil && !found
	}, 5*time.Second, 200*time.Millisecond, "entry should expire")
}
