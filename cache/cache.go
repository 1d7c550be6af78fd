// Package cache implements the reactive query cache: values stored
// under hierarchical keys, prefix-based invalidation and removal, and
// subscriptions that notify consumers when keys under their prefix
// change.
package cache

import "github.com/resyncdb/resync/keys"

// EventType classifies a cache notification.
type EventType int

const (
	// EventUpdated fires when a key's value is set.
	EventUpdated EventType = iota
	// EventInvalidated fires when keys under a prefix are marked stale.
	EventInvalidated
	// EventRemoved fires when keys under a prefix are removed.
	EventRemoved
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventUpdated:
		return "updated"
	case EventInvalidated:
		return "invalidated"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event describes a change under a subscribed prefix.
type Event struct {
	Type EventType
	Key  keys.QueryKey
}

// QueryCache is the reactive cache the resource engine publishes into.
// Invalidating or removing a prefix reaches every key sharing that
// prefix, which is what lets one mutation bust an entire family of
// list queries.
type QueryCache interface {
	// SetQueryData stores a value under a key and marks it fresh.
	SetQueryData(key keys.QueryKey, value any)

	// GetQueryData returns the value under a key, stale or not.
	GetQueryData(key keys.QueryKey) (any, bool)

	// IsStale reports whether the key's value has been invalidated
	// since it was last set.
	IsStale(key keys.QueryKey) bool

	// InvalidateQueries marks every key under the prefix stale.
	InvalidateQueries(prefix keys.QueryKey)

	// RemoveQueries drops every key under the prefix.
	RemoveQueries(prefix keys.QueryKey)

	// Subscribe delivers events for keys overlapping the prefix. The
	// returned func cancels the subscription.
	Subscribe(prefix keys.QueryKey) (<-chan Event, func())

	// Close releases backend resources.
	Close() error
}
