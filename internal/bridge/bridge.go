// Package bridge maintains the live WebSocket connection for one conversation
// and relays recognized message events to a callback. It holds no message
// state itself; dedupe and ordering belong to the feed.
package bridge

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-feed/internal/model"
	"github.com/capitalize-ai/inbox-feed/pkg/logger"
	"github.com/capitalize-ai/inbox-feed/pkg/metrics"
)

// MessageHandler receives the payload of each recognized live event.
type MessageHandler func(msg *model.Message)

// Bridge is a forwarding relay between the conversation WebSocket and a
// message callback. One Bridge serves exactly one conversation; switching
// conversations means closing this Bridge and dialing a new one.
type Bridge struct {
	url       string
	onMessage MessageHandler
	dialer    *websocket.Dialer
	logger    *logger.Logger
	maxWait   time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	conn *websocket.Conn

	done chan struct{}
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the bridge logger.
func WithLogger(log *logger.Logger) Option {
	return func(b *Bridge) { b.logger = log }
}

// WithDialer overrides the WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(b *Bridge) { b.dialer = d }
}

// WithMaxReconnectWait caps the backoff interval between reconnect attempts.
func WithMaxReconnectWait(d time.Duration) Option {
	return func(b *Bridge) { b.maxWait = d }
}

// WithToken appends an auth token query parameter to the connection URL.
// Browser WebSocket clients cannot set an Authorization header, so the server
// accepts the token in the query string.
func WithToken(token string) Option {
	return func(b *Bridge) {
		u, err := url.Parse(b.url)
		if err != nil {
			return
		}
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
		b.url = u.String()
	}
}

// EndpointURL builds the conversation WebSocket URL from a base address.
func EndpointURL(base, conversationID string) string {
	return strings.TrimRight(base, "/") + "/ws/conversations/" + url.PathEscape(conversationID)
}

// Dial opens a Bridge for conversationID against the given base address and
// starts its read loop. Reconnection on drop is automatic; messages missed
// while disconnected are not replayed by this layer.
func Dial(ctx context.Context, base, conversationID string, onMessage MessageHandler, opts ...Option) *Bridge {
	ctx, cancel := context.WithCancel(ctx)
	b := &Bridge{
		url:       EndpointURL(base, conversationID),
		onMessage: onMessage,
		dialer:    websocket.DefaultDialer,
		logger:    logger.Global().WithConversation(conversationID),
		maxWait:   30 * time.Second,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

// URL returns the connection URL the bridge dials.
func (b *Bridge) URL() string {
	return b.url
}

// Close tears down the connection and stops reconnecting.
func (b *Bridge) Close() {
	b.cancel()
	b.mu.Lock()
	if b.conn != nil {
		b.conn.Close()
	}
	b.mu.Unlock()
	<-b.done
}

func (b *Bridge) run() {
	defer close(b.done)

	for {
		if b.ctx.Err() != nil {
			return
		}

		if err := b.connect(); err != nil {
			// Context canceled during backoff.
			return
		}

		metrics.IncrementWSConnections()
		b.readLoop()
		metrics.DecrementWSConnections()

		if b.ctx.Err() != nil {
			return
		}
		metrics.WSReconnectsTotal.Inc()
		b.logger.Warn("connection lost, reconnecting")
	}
}

// connect dials until a connection is established, with exponential backoff.
func (b *Bridge) connect() error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = b.maxWait
	bo.MaxElapsedTime = 0 // retry forever

	return backoff.Retry(func() error {
		conn, _, err := b.dialer.DialContext(b.ctx, b.url, nil)
		if err != nil {
			b.logger.Debug("dial failed", zap.Error(err))
			return err
		}

		b.mu.Lock()
		b.conn = conn
		b.mu.Unlock()

		// Close may have run between the dial and the store above.
		if b.ctx.Err() != nil {
			conn.Close()
		}
		return nil
	}, backoff.WithContext(bo, b.ctx))
}

func (b *Bridge) readLoop() {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return
		}
		b.handleFrame(data)
	}
}

// handleFrame parses one inbound frame. Malformed JSON and unrecognized event
// types are dropped without surfacing an error.
func (b *Bridge) handleFrame(data []byte) {
	var event model.LiveEvent
	if err := json.Unmarshal(data, &event); err != nil {
		metrics.RecordLiveEvent("dropped")
		b.logger.Debug("dropping malformed frame", zap.Error(err))
		return
	}

	switch event.Type {
	case model.EventTypeNewMessage, model.EventTypeIncomingMessage:
		msg, err := event.MessagePayload()
		if err != nil {
			metrics.RecordLiveEvent("dropped")
			b.logger.Debug("dropping frame with bad payload", zap.Error(err))
			return
		}
		b.onMessage(msg)
	default:
		metrics.RecordLiveEvent("dropped")
	}
}
