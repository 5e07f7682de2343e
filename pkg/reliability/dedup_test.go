package reliability

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDedupStoreSeenBefore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDedupStore()

	seen, err := store.SeenBefore(ctx, "msg-1", 0)
	require.NoError(t, err)
	assert.False(t, seen, "first sighting must not be reported as seen")

	seen, err = store.SeenBefore(ctx, "msg-1", 0)
	require.NoError(t, err)
	assert.True(t, seen, "repeat sighting must be reported as seen")
}

func TestMemoryDedupStoreRespectsTTL(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDedupStore()

	_, err := store.SeenBefore(ctx, "msg-1", time.Millisecond)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	seen, err := store.SeenBefore(ctx, "msg-1", time.Millisecond)
	require.NoError(t, err)
	assert.False(t, seen, "expired entry must be treated as unseen")
}

func newMiniredisDedupStore(t *testing.T) *RedisDedupStore {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	return NewRedisDedupStoreFromClient(client, "test:dedup:")
}

func TestRedisDedupStoreSeenBefore(t *testing.T) {
	ctx := context.Background()
	store := newMiniredisDedupStore(t)
	defer func() { _ = store.Close() }()

	seen, err := store.SeenBefore(ctx, "msg-1", 0)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = store.SeenBefore(ctx, "msg-1", 0)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestRedisDedupStoreDistinctKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := newMiniredisDedupStore(t)
	defer func() { _ = store.Close() }()

	seenA, err := store.SeenBefore(ctx, "msg-a", 0)
	require.NoError(t, err)
	seenB, err := store.SeenBefore(ctx, "msg-b", 0)
	require.NoError(t, err)

	assert.False(t, seenA)
	assert.False(t, seenB)
}
