package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/resyncdb/resync/keys"
)

// DefaultChannel is the pub/sub channel invalidations fan out on.
const DefaultChannel = "resync:queries"

// RedisCache is a QueryCache whose invalidations and removals fan out
// over Redis pub/sub, so every process sharing the channel converges on
// the same staleness view. Values themselves stay process-local; only
// the invalidation signal crosses the wire.
type RedisCache struct {
	inner   *MemoryCache
	client  *redis.Client
	channel string
	origin  string
	logger  *zap.Logger
	cancel  context.CancelFunc
	done    chan struct{}
}

// RedisOption configures a RedisCache.
type RedisOption func(*RedisCache)

// WithChannel overrides the pub/sub channel name.
func WithChannel(channel string) RedisOption {
	return func(c *RedisCache) { c.channel = channel }
}

// WithRedisLogger sets the cache logger.
func WithRedisLogger(l *zap.Logger) RedisOption {
	return func(c *RedisCache) { c.logger = l }
}

// fanoutMessage is the wire form of a cross-process invalidation.
type fanoutMessage struct {
	Origin string   `json:"origin"`
	Op     string   `json:"op"`
	Key    []string `json:"key"`
}

// NewRedisCache creates a fanout cache on an existing Redis client and
// starts the subscription loop. The client is owned by the caller and
// is not closed by Close.
func NewRedisCache(client *redis.Client, opts ...RedisOption) (*RedisCache, error) {
	c := &RedisCache{
		inner:   NewMemoryCache(),
		client:  client,
		channel: DefaultChannel,
		origin:  uuid.NewString(),
		logger:  zap.NewNop(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	sub := client.Subscribe(ctx, c.channel)
	go c.listen(ctx, sub)

	return c, nil
}

// SetQueryData implements QueryCache. Values are process-local and are
// not published.
func (c *RedisCache) SetQueryData(key keys.QueryKey, value any) {
	c.inner.SetQueryData(key, value)
}

// GetQueryData implements QueryCache.
func (c *RedisCache) GetQueryData(key keys.QueryKey) (any, bool) {
	return c.inner.GetQueryData(key)
}

// IsStale implements QueryCache.
func (c *RedisCache) IsStale(key keys.QueryKey) bool {
	return c.inner.IsStale(key)
}

// InvalidateQueries implements QueryCache, fanning the invalidation out
// to peer processes.
func (c *RedisCache) InvalidateQueries(prefix keys.QueryKey) {
	c.inner.InvalidateQueries(prefix)
	c.publish("invalidate", prefix)
}

// RemoveQueries implements QueryCache, fanning the removal out to peer
// processes.
func (c *RedisCache) RemoveQueries(prefix keys.QueryKey) {
	c.inner.RemoveQueries(prefix)
	c.publish("remove", prefix)
}

// Subscribe implements QueryCache.
func (c *RedisCache) Subscribe(prefix keys.QueryKey) (<-chan Event, func()) {
	return c.inner.Subscribe(prefix)
}

// Close stops the fanout loop and releases local entries.
func (c *RedisCache) Close() error {
	c.cancel()
	<-c.done
	return c.inner.Close()
}

// publish sends a fanout message; failures are logged, never fatal, a
// peer that misses one simply stays fresh-looking until its next sync.
func (c *RedisCache) publish(op string, key keys.QueryKey) {
	msg, err := json.Marshal(fanoutMessage{Origin: c.origin, Op: op, Key: key})
	if err != nil {
		c.logger.Error("failed to encode cache fanout", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.client.Publish(ctx, c.channel, msg).Err(); err != nil {
		c.logger.Error("failed to publish cache fanout",
			zap.String("op", op),
			zap.Error(err))
	}
}

// listen applies peer invalidations to the local entries.
func (c *RedisCache) listen(ctx context.Context, sub *redis.PubSub) {
	defer close(c.done)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			var msg fanoutMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				c.logger.Warn("ignoring malformed cache fanout", zap.Error(err))
				continue
			}
			if msg.Origin == c.origin {
				continue
			}
			switch msg.Op {
			case "invalidate":
				c.inner.InvalidateQueries(keys.QueryKey(msg.Key))
			case "remove":
				c.inner.RemoveQueries(keys.QueryKey(msg.Key))
			default:
				c.logger.Warn("ignoring unknown cache fanout op", zap.String("op", msg.Op))
			}
		}
	}
}
