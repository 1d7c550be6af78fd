// Package registry manages the two-phase table lifecycle: resources
// declare their schema as pending, and a batched initialize step
// materializes every pending table in a single store version
// increment.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/resyncdb/resync/store"
)

// Descriptor describes one registered resource table. Immutable after
// registration.
type Descriptor struct {
	Name      string
	BaseURL   string
	KeyFields []string
}

// Registry tracks pending and registered tables for one store. Tables
// move pending to registered exactly once, through InitializeAll.
type Registry struct {
	store  *store.Store
	logger *zap.Logger

	mu         sync.RWMutex
	pending    map[string]*Descriptor
	registered map[string]*Descriptor

	// initMu serializes schema migrations: migration N+1 never starts
	// before migration N's reopen completes.
	initMu sync.Mutex
}

// New creates a registry over the given store.
func New(st *store.Store, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:      st,
		logger:     logger,
		pending:    make(map[string]*Descriptor),
		registered: make(map[string]*Descriptor),
	}
}

// RegisterTable queues a table schema for the next InitializeAll.
// Registering a name that is already pending or registered fails with a
// DuplicateResourceError before any I/O happens.
func (r *Registry) RegisterTable(name string, keyFields []string, baseURL string) error {
	if name == "" {
		return fmt.Errorf("resource name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pending[name]; ok {
		return &DuplicateResourceError{Name: name}
	}
	if _, ok := r.registered[name]; ok {
		return &DuplicateResourceError{Name: name}
	}

	fields := make([]string, len(keyFields))
	copy(fields, keyFields)
	r.pending[name] = &Descriptor{Name: name, BaseURL: baseURL, KeyFields: fields}
	return nil
}

// InitializeAll materializes every pending table as one schema version
// increment: close the store if open, apply all fragments, reopen, then
// mark the batch registered. Calls are strictly serialized; with no
// pending tables this is a no-op, so calling it repeatedly across the
// application lifetime is safe.
func (r *Registry) InitializeAll() error {
	r.initMu.Lock()
	defer r.initMu.Unlock()

	r.mu.RLock()
	batch := make(map[string]*Descriptor, len(r.pending))
	for name, desc := range r.pending {
		batch[name] = desc
	}
	r.mu.RUnlock()

	if len(batch) == 0 {
		return nil
	}

	fragments := make(map[string]string, len(batch))
	for name, desc := range batch {
		fragments[name] = store.Fragment(desc.KeyFields)
	}

	if r.store.IsOpen() {
		if err := r.store.Close(); err != nil {
			return fmt.Errorf("failed to close store for migration: %w", err)
		}
	}
	if err := r.store.ApplySchema(fragments); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}
	if err := r.store.Open(); err != nil {
		return fmt.Errorf("failed to reopen store after migration: %w", err)
	}

	r.mu.Lock()
	for name, desc := range batch {
		r.registered[name] = desc
		delete(r.pending, name)
	}
	r.mu.Unlock()

	r.logger.Debug("initialized tables",
		zap.Int("count", len(batch)),
		zap.Int("version", r.store.Version()))
	return nil
}

// Table returns the live handle for a registered table. Pending or
// unknown names yield a NotInitializedError, never a partially
// initialized handle.
func (r *Registry) Table(name string) (*store.Table, error) {
	r.mu.RLock()
	_, ok := r.registered[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &NotInitializedError{Name: name}
	}
	return r.store.Table(name)
}

// HasTable reports whether a table is registered (materialized).
func (r *Registry) HasTable(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.registered[name]
	return ok
}

// Descriptor returns the descriptor for a name in either state.
func (r *Registry) Descriptor(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if desc, ok := r.registered[name]; ok {
		return desc, true
	}
	desc, ok := r.pending[name]
	return desc, ok
}

// PendingTables returns the sorted names of tables awaiting initialize.
func (r *Registry) PendingTables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedNames(r.pending)
}

// RegisteredTables returns the sorted names of materialized tables.
func (r *Registry) RegisteredTables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedNames(r.registered)
}

func sortedNames(m map[string]*Descriptor) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
