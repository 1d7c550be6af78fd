// Package live applies server-pushed invalidation events to the query
// cache over a websocket, so locally cached data goes stale as soon as
// another writer changes it instead of waiting for the next read.
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/resyncdb/resync/cache"
	"github.com/resyncdb/resync/keys"
)

const (
	// writeWait bounds control-message writes to the peer.
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong before declaring the
	// connection dead.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxBackoff caps reconnect delay.
	maxBackoff = 30 * time.Second
)

// Event is one server-pushed change notification.
type Event struct {
	// Resource is the resource name the change belongs to.
	Resource string `json:"resource"`

	// Action is what happened: "created", "updated", or "deleted".
	Action string `json:"action"`

	// ID is the serialized identifier of the changed record, when the
	// change concerns a single record.
	ID string `json:"id,omitempty"`
}

// Listener maintains the websocket connection and translates events
// into query cache operations. Connection errors are logged and
// retried with capped exponential backoff, never surfaced to the host
// application.
type Listener struct {
	url    string
	header http.Header
	cache  cache.QueryCache
	logger *zap.Logger
	dialer *websocket.Dialer
}

// Option configures a Listener.
type Option func(*Listener)

// WithHeader sets headers sent on the websocket handshake, e.g. an
// Authorization header.
func WithHeader(h http.Header) Option {
	return func(l *Listener) { l.header = h }
}

// WithLogger sets the listener logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Listener) { l.logger = logger }
}

// NewListener creates a listener for the given websocket URL that
// applies events to qc. Run starts it.
func NewListener(url string, qc cache.QueryCache, opts ...Option) *Listener {
	l := &Listener{
		url:    url,
		cache:  qc,
		logger: zap.NewNop(),
		dialer: websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run connects and processes events until ctx is cancelled,
// reconnecting on failure.
func (l *Listener) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if err := l.connectAndRead(ctx); err != nil {
			l.logger.Warn("live connection lost",
				zap.String("url", l.url),
				zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// connectAndRead runs one connection lifetime: dial, keepalive, read
// until error or cancellation.
func (l *Listener) connectAndRead(ctx context.Context) error {
	conn, _, err := l.dialer.DialContext(ctx, l.url, l.header)
	if err != nil {
		return err
	}
	defer conn.Close()

	l.logger.Info("live connection established", zap.String("url", l.url))

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go l.keepalive(ctx, conn, done)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var ev Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			l.logger.Warn("ignoring malformed live event", zap.Error(err))
			continue
		}
		l.apply(ev)
	}
}

// apply translates one event into cache operations. A deletion removes
// the record's detail entry outright; anything else marks the whole
// resource prefix stale and lets the next read refetch.
func (l *Listener) apply(ev Event) {
	if ev.Resource == "" {
		return
	}
	factory := keys.NewFactory(ev.Resource, nil)

	if ev.Action == "deleted" && ev.ID != "" {
		l.cache.RemoveQueries(factory.DetailSerialized(ev.ID))
		l.cache.InvalidateQueries(factory.Lists())
		return
	}
	l.cache.InvalidateQueries(factory.All())
}

// keepalive pings the peer until the connection or context ends.
func (l *Listener) keepalive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			conn.Close()
			return
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
