package resource

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/resyncdb/resync/cache"
	"github.com/resyncdb/resync/entity"
	"github.com/resyncdb/resync/keys"
	"github.com/resyncdb/resync/store"
	"github.com/resyncdb/resync/transport"
)

// TableAccessor resolves the live table handle on each use, so a
// resource declared before Initialize fails with a descriptive error
// instead of binding a dead handle.
type TableAccessor interface {
	Table() (*store.Table, error)
}

// Operations implements the stale-while-revalidate read/write engine
// for one resource. Reads answer from the local store when they can and
// refresh from the network in the background; writes go to the network
// first and mirror into the local store only after the server
// acknowledges.
type Operations struct {
	name      string
	baseURL   string
	keyFields []string

	tables TableAccessor
	client *transport.Client
	cache  cache.QueryCache
	qkeys  *keys.Factory
	logger *zap.Logger

	// background tracks detached refresh tasks; nothing in the read
	// path waits on it, Flush exists for shutdown and tests.
	background sync.WaitGroup
}

// NewOperations wires an operations engine from its collaborators.
func NewOperations(
	name string,
	baseURL string,
	keyFields []string,
	tables TableAccessor,
	client *transport.Client,
	qc cache.QueryCache,
	logger *zap.Logger,
) *Operations {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Operations{
		name:      name,
		baseURL:   baseURL,
		keyFields: keyFields,
		tables:    tables,
		client:    client,
		cache:     qc,
		qkeys:     keys.NewFactory(name, keyFields),
		logger:    logger,
	}
}

// fetchResult carries a network outcome across the cache/network race.
type fetchResult struct {
	value any
	err   error
}

// GetByID returns the record for id, serving the local copy immediately
// when one exists and refreshing it from the network in the background.
// On a local miss the network result is stored and returned. Absence
// and network failure both surface as (nil, nil); read errors never
// propagate past this call.
func (o *Operations) GetByID(ctx context.Context, id any) (entity.Entity, error) {
	tbl, err := o.tables.Table()
	if err != nil {
		return nil, err
	}
	tid, err := keys.NewID(id, o.keyFields)
	if err != nil {
		return nil, err
	}
	storeKey, err := keys.StoreKey(tid, o.keyFields)
	if err != nil {
		return nil, err
	}
	u, err := BuildIDURL(o.baseURL, tid, o.keyFields)
	if err != nil {
		return nil, err
	}

	fetch := o.fetch(ctx, http.MethodGet, u)

	cached, err := tbl.Get(ctx, storeKey)
	if err != nil {
		o.logger.Warn("local read failed, deferring to network",
			zap.String("resource", o.name),
			zap.Error(err))
	}

	if cached != nil {
		o.background.Add(1)
		go func() {
			defer o.background.Done()
			res := <-fetch
			if res.err != nil {
				if !transport.IsNotFound(res.err) {
					o.logger.Error("background refresh failed",
						zap.String("resource", o.name),
						zap.Error(res.err))
				}
				return
			}
			o.storeFresh(res.value)
		}()
		return cached, nil
	}

	res := <-fetch
	if res.err != nil {
		if transport.IsNotFound(res.err) {
			return nil, nil
		}
		o.logger.Error("fetch failed",
			zap.String("resource", o.name),
			zap.Error(res.err))
		return nil, nil
	}

	ent, err := toEntity(res.value)
	if err != nil || ent == nil {
		if err != nil {
			o.logger.Error("unexpected response shape",
				zap.String("resource", o.name),
				zap.Error(err))
		}
		return nil, nil
	}
	if err := tbl.Put(ctx, entity.Normalize(ent, o.keyFields)); err != nil {
		return nil, err
	}
	return ent, nil
}

// List returns the records matching params, serving filtered local data
// immediately when any record matches and refreshing in the background.
// When nothing cached matches, the network result is bulk-stored and
// returned; network failure degrades to an empty list.
func (o *Operations) List(ctx context.Context, params map[string]any) ([]entity.Entity, error) {
	tbl, err := o.tables.Table()
	if err != nil {
		return nil, err
	}
	u, err := BuildURL(o.baseURL, params)
	if err != nil {
		return nil, err
	}

	fetch := o.fetch(ctx, http.MethodGet, u)

	all, err := tbl.ToArray(ctx)
	if err != nil {
		o.logger.Warn("local read failed, deferring to network",
			zap.String("resource", o.name),
			zap.Error(err))
	}
	filtered := entity.FilterEntities(all, params)

	if len(filtered) > 0 {
		o.background.Add(1)
		go func() {
			defer o.background.Done()
			res := <-fetch
			if res.err != nil {
				o.logger.Error("background refresh failed",
					zap.String("resource", o.name),
					zap.Error(res.err))
				return
			}
			o.storeFreshList(res.value)
		}()
		return filtered, nil
	}

	res := <-fetch
	if res.err != nil {
		o.logger.Error("list fetch failed",
			zap.String("resource", o.name),
			zap.Error(res.err))
		return []entity.Entity{}, nil
	}

	list, err := toEntities(res.value)
	if err != nil {
		o.logger.Error("unexpected response shape",
			zap.String("resource", o.name),
			zap.Error(err))
		return []entity.Entity{}, nil
	}
	if err := tbl.BulkPut(ctx, entity.NormalizeMany(list, o.keyFields)); err != nil {
		return nil, err
	}
	return list, nil
}

// Create sends the creation request and, once the server acknowledges,
// stores the returned entity locally and updates the query cache. There
// is no local fallback: failures propagate.
func (o *Operations) Create(ctx context.Context, data entity.Entity) (entity.Entity, error) {
	tbl, err := o.tables.Table()
	if err != nil {
		return nil, err
	}

	res, err := o.client.Request(ctx, http.MethodPost, o.baseURL, data)
	if err != nil {
		return nil, err
	}
	ent, err := toEntity(res)
	if err != nil {
		return nil, err
	}

	if err := tbl.Put(ctx, entity.Normalize(ent, o.keyFields)); err != nil {
		return nil, err
	}
	o.publishMutation(ent)
	return ent, nil
}

// Update sends a partial update and stores the returned full entity.
// Same stance as Create: no safe fallback exists, failures propagate.
func (o *Operations) Update(ctx context.Context, id any, data entity.Entity) (entity.Entity, error) {
	tbl, err := o.tables.Table()
	if err != nil {
		return nil, err
	}
	tid, err := keys.NewID(id, o.keyFields)
	if err != nil {
		return nil, err
	}
	u, err := BuildIDURL(o.baseURL, tid, o.keyFields)
	if err != nil {
		return nil, err
	}

	res, err := o.client.Request(ctx, http.MethodPatch, u, data)
	if err != nil {
		return nil, err
	}
	ent, err := toEntity(res)
	if err != nil {
		return nil, err
	}

	if err := tbl.Put(ctx, entity.Normalize(ent, o.keyFields)); err != nil {
		return nil, err
	}
	o.publishMutation(ent)
	return ent, nil
}

// Remove deletes the record on the server, then removes the local copy.
// A network failure leaves the local copy intact: deleting a record the
// server still has would fabricate an absence.
func (o *Operations) Remove(ctx context.Context, id any) error {
	tbl, err := o.tables.Table()
	if err != nil {
		return err
	}
	tid, err := keys.NewID(id, o.keyFields)
	if err != nil {
		return err
	}
	storeKey, err := keys.StoreKey(tid, o.keyFields)
	if err != nil {
		return err
	}
	u, err := BuildIDURL(o.baseURL, tid, o.keyFields)
	if err != nil {
		return err
	}

	if _, err := o.client.Request(ctx, http.MethodDelete, u, nil); err != nil {
		return err
	}

	if err := tbl.Delete(ctx, storeKey); err != nil {
		return err
	}
	if detail, err := o.qkeys.Detail(tid); err == nil {
		o.cache.RemoveQueries(detail)
	}
	o.cache.InvalidateQueries(o.qkeys.Lists())
	return nil
}

// Flush blocks until every detached background refresh has finished.
func (o *Operations) Flush() {
	o.background.Wait()
}

// QueryKeys returns the resource's query key factory.
func (o *Operations) QueryKeys() *keys.Factory {
	return o.qkeys
}

// fetch issues the network request on a detached context; the caller
// may have returned from cache long before the response lands, and the
// engine has no notion of cancelling the race once started.
func (o *Operations) fetch(ctx context.Context, method, url string) <-chan fetchResult {
	ch := make(chan fetchResult, 1)
	go func() {
		value, err := o.client.Request(context.WithoutCancel(ctx), method, url, nil)
		ch <- fetchResult{value: value, err: err}
	}()
	return ch
}

// storeFresh writes a background single-record refresh to the local
// store. Errors are logged and swallowed: the caller already has its
// answer.
func (o *Operations) storeFresh(value any) {
	ent, err := toEntity(value)
	if err != nil || ent == nil {
		if err != nil {
			o.logger.Error("unexpected response shape",
				zap.String("resource", o.name),
				zap.Error(err))
		}
		return
	}
	tbl, err := o.tables.Table()
	if err != nil {
		return
	}
	if err := tbl.Put(context.Background(), entity.Normalize(ent, o.keyFields)); err != nil {
		o.logger.Error("background store update failed",
			zap.String("resource", o.name),
			zap.Error(err))
	}
}

// storeFreshList is storeFresh for list refreshes.
func (o *Operations) storeFreshList(value any) {
	list, err := toEntities(value)
	if err != nil {
		o.logger.Error("unexpected response shape",
			zap.String("resource", o.name),
			zap.Error(err))
		return
	}
	tbl, err := o.tables.Table()
	if err != nil {
		return
	}
	if err := tbl.BulkPut(context.Background(), entity.NormalizeMany(list, o.keyFields)); err != nil {
		o.logger.Error("background store update failed",
			zap.String("resource", o.name),
			zap.Error(err))
	}
}

// publishMutation pushes a server-acknowledged entity into the query
// cache: the detail entry gets the raw form, and every list under this
// resource is invalidated.
func (o *Operations) publishMutation(ent entity.Entity) {
	if id, err := keys.EntityID(ent, o.keyFields); err == nil {
		if detail, err := o.qkeys.Detail(id); err == nil {
			o.cache.SetQueryData(detail, ent)
		}
	}
	o.cache.InvalidateQueries(o.qkeys.Lists())
}

// toEntity asserts a decoded response value into a record.
func toEntity(v any) (entity.Entity, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected object response, got %T", v)
	}
	return m, nil
}

// toEntities asserts a decoded response value into a record list.
func toEntities(v any) ([]entity.Entity, error) {
	if v == nil {
		return nil, nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected array response, got %T", v)
	}
	out := make([]entity.Entity, 0, len(arr))
	for _, item := range arr {
		ent, err := toEntity(item)
		if err != nil {
			return nil, err
		}
		out = append(out, ent)
	}
	return out, nil
}
