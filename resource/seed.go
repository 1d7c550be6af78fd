package resource

import (
	"context"

	"github.com/resyncdb/resync/entity"
	"github.com/resyncdb/resync/keys"
)

// SeedOne injects an externally obtained record without a network round
// trip: the normalized form goes to the local store, the raw form to
// the query cache's detail entry.
func (r *Resource) SeedOne(ctx context.Context, item entity.Entity) error {
	tbl, err := r.tables.Table()
	if err != nil {
		return err
	}

	if err := tbl.Put(ctx, entity.Normalize(item, r.keyFields)); err != nil {
		return err
	}

	id, err := keys.EntityID(item, r.keyFields)
	if err != nil {
		return err
	}
	detail, err := r.qkeys.Detail(id)
	if err != nil {
		return err
	}
	r.cache.SetQueryData(detail, item)
	return nil
}

// SeedMany bulk-injects records: normalized forms to the local store,
// the raw sequence to the list entry for params, and each item's detail
// entry individually. Item order is preserved in the list entry.
func (r *Resource) SeedMany(ctx context.Context, items []entity.Entity, params map[string]any) error {
	tbl, err := r.tables.Table()
	if err != nil {
		return err
	}

	if err := tbl.BulkPut(ctx, entity.NormalizeMany(items, r.keyFields)); err != nil {
		return err
	}

	r.cache.SetQueryData(r.qkeys.List(params), items)
	for _, item := range items {
		id, err := keys.EntityID(item, r.keyFields)
		if err != nil {
			return err
		}
		detail, err := r.qkeys.Detail(id)
		if err != nil {
			return err
		}
		r.cache.SetQueryData(detail, item)
	}
	return nil
}

// ClearCache purges both storage layers for this resource: the local
// table's contents and every query cache entry under the resource's
// top-level key prefix.
func (r *Resource) ClearCache(ctx context.Context) error {
	tbl, err := r.tables.Table()
	if err != nil {
		return err
	}
	if err := tbl.Clear(ctx); err != nil {
		return err
	}
	r.cache.RemoveQueries(r.qkeys.All())
	return nil
}
