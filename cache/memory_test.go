package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resyncdb/resync/keys"
)

func TestMemoryCache_SetAndGet(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()

	key := keys.QueryKey{"users", "detail", "1"}
	c.SetQueryData(key, map[string]any{"id": "1"})

	got, ok := c.GetQueryData(key)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"id": "1"}, got)
	assert.False(t, c.IsStale(key))
}

func TestMemoryCache_GetMissing(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()

	_, ok := c.GetQueryData(keys.QueryKey{"users", "detail", "1"})
	assert.False(t, ok)
}

func TestMemoryCache_InvalidatePrefixMarksChildrenStale(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()

	detail := keys.QueryKey{"users", "detail", "1"}
	list := keys.QueryKey{"users", "list"}
	other := keys.QueryKey{"tags", "detail", "x"}
	c.SetQueryData(detail, "a")
	c.SetQueryData(list, "b")
	c.SetQueryData(other, "c")

	c.InvalidateQueries(keys.QueryKey{"users"})

	assert.True(t, c.IsStale(detail))
	assert.True(t, c.IsStale(list))
	assert.False(t, c.IsStale(other))

	// Invalidation keeps the value available for stale reads.
	got, ok := c.GetQueryData(detail)
	require.True(t, ok)
	assert.Equal(t, "a", got)
}

func TestMemoryCache_SetAfterInvalidateClearsStale(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()

	key := keys.QueryKey{"users", "detail", "1"}
	c.SetQueryData(key, "old")
	c.InvalidateQueries(keys.QueryKey{"users"})
	require.True(t, c.IsStale(key))

	c.SetQueryData(key, "new")
	assert.False(t, c.IsStale(key))
}

func TestMemoryCache_RemovePrefix(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()

	c.SetQueryData(keys.QueryKey{"users", "detail", "1"}, "a")
	c.SetQueryData(keys.QueryKey{"users", "list"}, "b")
	c.SetQueryData(keys.QueryKey{"tags"}, "c")

	c.RemoveQueries(keys.QueryKey{"users"})

	_, ok := c.GetQueryData(keys.QueryKey{"users", "detail", "1"})
	assert.False(t, ok)
	_, ok = c.GetQueryData(keys.QueryKey{"users", "list"})
	assert.False(t, ok)
	_, ok = c.GetQueryData(keys.QueryKey{"tags"})
	assert.True(t, ok)
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_SubscribeReceivesOverlappingEvents(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()

	ch, cancel := c.Subscribe(keys.QueryKey{"users"})
	defer cancel()

	c.SetQueryData(keys.QueryKey{"users", "detail", "1"}, "a")

	select {
	case ev := <-ch:
		assert.Equal(t, EventUpdated, ev.Type)
		assert.Equal(t, keys.QueryKey{"users", "detail", "1"}, ev.Key)
	case <-time.After(time.Second):
		t.Fatal("expected an update event")
	}
}

func TestMemoryCache_SubscribeShortPrefixSeesBroadInvalidation(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()

	// Subscribed to a detail key; an invalidation of the whole resource
	// prefix must still reach it.
	ch, cancel := c.Subscribe(keys.QueryKey{"users", "detail", "1"})
	defer cancel()

	c.InvalidateQueries(keys.QueryKey{"users"})

	select {
	case ev := <-ch:
		assert.Equal(t, EventInvalidated, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("expected an invalidation event")
	}
}

func TestMemoryCache_SubscribeIgnoresUnrelatedKeys(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()

	ch, cancel := c.Subscribe(keys.QueryKey{"users"})
	defer cancel()

	c.SetQueryData(keys.QueryKey{"tags", "list"}, "x")

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryCache_CancelStopsDelivery(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()

	ch, cancel := c.Subscribe(keys.QueryKey{"users"})
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// Cancelling twice is safe.
	cancel()
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "updated", EventUpdated.String())
	assert.Equal(t, "invalidated", EventInvalidated.String())
	assert.Equal(t, "removed", EventRemoved.String())
}
