// Package resource composes the per-resource façade: the
// stale-while-revalidate operations engine, the URL builder, cache
// seeding and clearing, and read-only metadata.
package resource

import (
	"go.uber.org/zap"

	"github.com/resyncdb/resync/cache"
	"github.com/resyncdb/resync/keys"
	"github.com/resyncdb/resync/store"
	"github.com/resyncdb/resync/transport"
)

// Config declares a resource: a unique name, the REST base URL, and
// optionally the ordered composite key fields. The key field order
// defines both the compound index order and the REST path segment
// order.
type Config struct {
	Name      string
	BaseURL   string
	KeyFields []string
}

// Resource is the façade for one declared resource.
type Resource struct {
	*Operations

	name      string
	keyFields []string
	tables    TableAccessor
	cache     cache.QueryCache
	qkeys     *keys.Factory
}

// New builds a resource façade over its collaborators. The table is
// accessed lazily: operations invoked before the registry's batched
// initialize fail with a NotInitializedError.
func New(
	cfg Config,
	tables TableAccessor,
	client *transport.Client,
	qc cache.QueryCache,
	logger *zap.Logger,
) *Resource {
	fields := make([]string, len(cfg.KeyFields))
	copy(fields, cfg.KeyFields)

	ops := NewOperations(cfg.Name, cfg.BaseURL, fields, tables, client, qc, logger)
	return &Resource{
		Operations: ops,
		name:       cfg.Name,
		keyFields:  fields,
		tables:     tables,
		cache:      qc,
		qkeys:      ops.QueryKeys(),
	}
}

// Name returns the resource name.
func (r *Resource) Name() string {
	return r.name
}

// KeyFields returns a copy of the declared composite key fields, nil
// for simple-key resources.
func (r *Resource) KeyFields() []string {
	if len(r.keyFields) == 0 {
		return nil
	}
	out := make([]string, len(r.keyFields))
	copy(out, r.keyFields)
	return out
}

// Table returns the live table handle, or a NotInitializedError before
// the batched initialize has run.
func (r *Resource) Table() (*store.Table, error) {
	return r.tables.Table()
}
