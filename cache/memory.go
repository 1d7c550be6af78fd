package cache

import (
	"sync"

	"github.com/resyncdb/resync/keys"
)

// subscriberBuffer is the event channel depth per subscriber. Slow
// consumers drop events rather than block cache writers.
const subscriberBuffer = 16

// MemoryCache is the in-process QueryCache implementation.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	subs    map[int]*subscriber
	nextSub int
}

type memoryEntry struct {
	key   keys.QueryKey
	value any
	stale bool
}

type subscriber struct {
	prefix keys.QueryKey
	ch     chan Event
}

// NewMemoryCache creates an empty in-memory query cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*memoryEntry),
		subs:    make(map[int]*subscriber),
	}
}

// SetQueryData implements QueryCache.
func (c *MemoryCache) SetQueryData(key keys.QueryKey, value any) {
	c.mu.Lock()
	c.entries[key.Encode()] = &memoryEntry{key: key, value: value}
	c.mu.Unlock()

	c.notify(Event{Type: EventUpdated, Key: key})
}

// GetQueryData implements QueryCache.
func (c *MemoryCache) GetQueryData(key keys.QueryKey) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key.Encode()]
	if !ok {
		return nil, false
	}
	return entry.value, true
}

// IsStale implements QueryCache.
func (c *MemoryCache) IsStale(key keys.QueryKey) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key.Encode()]
	return ok && entry.stale
}

// InvalidateQueries implements QueryCache.
func (c *MemoryCache) InvalidateQueries(prefix keys.QueryKey) {
	c.mu.Lock()
	for _, entry := range c.entries {
		if entry.key.HasPrefix(prefix) {
			entry.stale = true
		}
	}
	c.mu.Unlock()

	c.notify(Event{Type: EventInvalidated, Key: prefix})
}

// RemoveQueries implements QueryCache.
func (c *MemoryCache) RemoveQueries(prefix keys.QueryKey) {
	c.mu.Lock()
	for encoded, entry := range c.entries {
		if entry.key.HasPrefix(prefix) {
			delete(c.entries, encoded)
		}
	}
	c.mu.Unlock()

	c.notify(Event{Type: EventRemoved, Key: prefix})
}

// Subscribe implements QueryCache.
func (c *MemoryCache) Subscribe(prefix keys.QueryKey) (<-chan Event, func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	sub := &subscriber{prefix: prefix, ch: make(chan Event, subscriberBuffer)}
	c.subs[id] = sub
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		if s, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(s.ch)
		}
		c.mu.Unlock()
	}
	return sub.ch, cancel
}

// Close implements QueryCache. All subscriptions are cancelled.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, sub := range c.subs {
		delete(c.subs, id)
		close(sub.ch)
	}
	c.entries = make(map[string]*memoryEntry)
	return nil
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// notify fans an event out to every subscriber whose prefix overlaps
// the event key. Full subscriber channels drop the event.
func (c *MemoryCache) notify(ev Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, sub := range c.subs {
		if !ev.Key.Overlaps(sub.prefix) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}
