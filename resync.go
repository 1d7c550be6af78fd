// Package resync is a local-first data-access layer: resources read
// from a persistent local store first, synchronize with a remote HTTP
// API in the background, and publish results into a reactive query
// cache.
//
// Resources are declared up front with CreateResource, then a single
// Initialize call materializes every declared table as one local
// schema migration. After that, reads serve local data immediately
// while refreshing from the network, and writes reach the server first
// and mirror locally only on acknowledgment.
package resync

import (
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/resyncdb/resync/cache"
	"github.com/resyncdb/resync/registry"
	"github.com/resyncdb/resync/resource"
	"github.com/resyncdb/resync/store"
	"github.com/resyncdb/resync/transport"
)

// Config configures a Client.
type Config struct {
	// StorePath is the local SQLite database file.
	StorePath string

	// APIEndpoint is the remote API root, e.g. "https://api.example.com/v1".
	APIEndpoint string

	// TokenSource supplies bearer tokens for API requests. Optional.
	TokenSource transport.TokenSource

	// HTTPClient overrides the transport's underlying client. Optional.
	HTTPClient *http.Client

	// Cache overrides the query cache backend. Defaults to the
	// in-memory cache.
	Cache cache.QueryCache

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Client owns the shared storage layers and the resource registry.
type Client struct {
	store     *store.Store
	registry  *registry.Registry
	transport *transport.Client
	cache     cache.QueryCache
	logger    *zap.Logger

	mu        sync.RWMutex
	resources map[string]*resource.Resource
}

// New creates a client. No I/O happens until Initialize.
func New(cfg Config) (*Client, error) {
	if cfg.StorePath == "" {
		return nil, fmt.Errorf("store path must not be empty")
	}
	if cfg.APIEndpoint == "" {
		return nil, fmt.Errorf("api endpoint must not be empty")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	qc := cfg.Cache
	if qc == nil {
		qc = cache.NewMemoryCache()
	}

	opts := []transport.Option{transport.WithLogger(logger)}
	if cfg.TokenSource != nil {
		opts = append(opts, transport.WithTokenSource(cfg.TokenSource))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, transport.WithHTTPClient(cfg.HTTPClient))
	}

	st := store.New(cfg.StorePath)
	return &Client{
		store:     st,
		registry:  registry.New(st, logger),
		transport: transport.NewClient(cfg.APIEndpoint, opts...),
		cache:     qc,
		logger:    logger,
		resources: make(map[string]*resource.Resource),
	}, nil
}

// CreateResource declares a resource and queues its table schema for
// the next Initialize. Duplicate names fail fast with a
// DuplicateResourceError.
func (c *Client) CreateResource(cfg resource.Config) (*resource.Resource, error) {
	if err := c.registry.RegisterTable(cfg.Name, cfg.KeyFields, cfg.BaseURL); err != nil {
		return nil, err
	}

	res := resource.New(
		cfg,
		&tableAccessor{registry: c.registry, name: cfg.Name},
		c.transport,
		c.cache,
		c.logger.With(zap.String("resource", cfg.Name)),
	)

	c.mu.Lock()
	c.resources[cfg.Name] = res
	c.mu.Unlock()
	return res, nil
}

// Initialize materializes every pending table in one batched schema
// migration. Safe to call repeatedly; with nothing pending it does no
// schema work.
func (c *Client) Initialize() error {
	return c.registry.InitializeAll()
}

// Resource returns a declared resource façade by name.
func (c *Client) Resource(name string) (*resource.Resource, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res, ok := c.resources[name]
	return res, ok
}

// GetTable returns the live table handle for a registered resource.
func (c *Client) GetTable(name string) (*store.Table, error) {
	return c.registry.Table(name)
}

// HasTable reports whether a resource's table has been materialized.
func (c *Client) HasTable(name string) bool {
	return c.registry.HasTable(name)
}

// RegisteredTables returns the sorted names of materialized tables.
func (c *Client) RegisteredTables() []string {
	return c.registry.RegisteredTables()
}

// Cache exposes the query cache, e.g. for subscriptions.
func (c *Client) Cache() cache.QueryCache {
	return c.cache
}

// Flush waits for every resource's detached background refreshes.
func (c *Client) Flush() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, res := range c.resources {
		res.Flush()
	}
}

// Close flushes background work and releases the store and cache.
func (c *Client) Close() error {
	c.Flush()
	if err := c.cache.Close(); err != nil {
		c.logger.Warn("failed to close query cache", zap.Error(err))
	}
	return c.store.Close()
}

// tableAccessor resolves a resource's table through the registry on
// every use.
type tableAccessor struct {
	registry *registry.Registry
	name     string
}

// Table implements resource.TableAccessor.
func (a *tableAccessor) Table() (*store.Table, error) {
	return a.registry.Table(a.name)
}
