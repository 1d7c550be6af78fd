package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resyncdb/resync/keys"
)

func setupRedisPair(t *testing.T) (*RedisCache, *RedisCache) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	newCache := func() *RedisCache {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		c, err := NewRedisCache(client)
		require.NoError(t, err)
		t.Cleanup(func() {
			c.Close()
			client.Close()
		})
		return c
	}
	return newCache(), newCache()
}

// eventually polls for a condition; pub/sub delivery is asynchronous.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestRedisCache_LocalOperations(t *testing.T) {
	c, _ := setupRedisPair(t)

	key := keys.QueryKey{"users", "detail", "1"}
	c.SetQueryData(key, "v")

	got, ok := c.GetQueryData(key)
	require.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestRedisCache_InvalidationFansOutToPeer(t *testing.T) {
	a, b := setupRedisPair(t)

	key := keys.QueryKey{"users", "detail", "1"}
	a.SetQueryData(key, "on a")
	b.SetQueryData(key, "on b")

	a.InvalidateQueries(keys.QueryKey{"users"})

	assert.True(t, a.IsStale(key))
	eventually(t, func() bool { return b.IsStale(key) },
		"peer never observed the invalidation")
}

func TestRedisCache_RemovalFansOutToPeer(t *testing.T) {
	a, b := setupRedisPair(t)

	key := keys.QueryKey{"users", "list"}
	b.SetQueryData(key, "cached")

	a.RemoveQueries(keys.QueryKey{"users"})

	eventually(t, func() bool {
		_, ok := b.GetQueryData(key)
		return !ok
	}, "peer never observed the removal")
}

func TestRedisCache_ValuesStayLocal(t *testing.T) {
	a, b := setupRedisPair(t)

	key := keys.QueryKey{"users", "detail", "1"}
	a.SetQueryData(key, "private")

	// Give fanout a moment; the value must still not appear on the peer.
	time.Sleep(50 * time.Millisecond)
	_, ok := b.GetQueryData(key)
	assert.False(t, ok)
}

func TestRedisCache_SubscriptionsWork(t *testing.T) {
	a, b := setupRedisPair(t)

	ch, cancel := b.Subscribe(keys.QueryKey{"users"})
	defer cancel()

	a.InvalidateQueries(keys.QueryKey{"users"})

	select {
	case ev := <-ch:
		assert.Equal(t, EventInvalidated, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("expected the peer's subscriber to see the invalidation")
	}
}
