package resync

import (
	"github.com/resyncdb/resync/registry"
	"github.com/resyncdb/resync/transport"
)

// Error classification helpers, re-exported so callers can branch on
// failure modes without importing the subpackages.

// IsDuplicateResource reports whether err came from declaring a
// resource name twice.
func IsDuplicateResource(err error) bool {
	return registry.IsDuplicateResource(err)
}

// IsNotInitialized reports whether err came from using a resource
// before Initialize materialized its table.
func IsNotInitialized(err error) bool {
	return registry.IsNotInitialized(err)
}

// IsNotFound reports whether err is an API 404. Read operations never
// return these; write operations can.
func IsNotFound(err error) bool {
	return transport.IsNotFound(err)
}
