// Package realtime subscribes to the backend's change feed over a websocket
// channel. The channel authenticates with the same backend-scoped token as
// table queries; the token supplier pushes refreshed tokens in through
// SetAuth so open subscriptions survive token rotation.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// reconnectDelay separates an auth failure on the channel from the
// resubscribe attempt, giving the refresh cycle time to land a new token.
const reconnectDelay = 2 * time.Second

// Event is one row change delivered by the feed.
type Event struct {
	Type   string         `json:"type"` // INSERT | UPDATE | DELETE
	Table  string         `json:"table"`
	Record map[string]any `json:"record"`
	Old    map[string]any `json:"old_record"`
}

// Handler consumes change events.
type Handler func(Event)

// Channel is one change-feed connection. SetAuth may be called at any time,
// before or after Subscribe.
type Channel struct {
	url    string
	apiKey string
	dialer *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	token   string
	refSeq  int
	closed  bool
	handler Handler
	topic   string
}

// NewChannel builds a channel for the backend's realtime endpoint.
func NewChannel(url, apiKey string) *Channel {
	return &Channel{url: url, apiKey: apiKey, dialer: websocket.DefaultDialer}
}

// SetAuth installs token for the channel. If a connection is open, the token
// is pushed onto it immediately so the live subscription adopts it without
// resubscribing. Implements the token supplier's sink interface.
func (c *Channel) SetAuth(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	if c.conn == nil || token == "" {
		return
	}
	msg := c.frameLocked("access_token", map[string]any{"access_token": token})
	if err := c.conn.WriteJSON(msg); err != nil {
		logrus.WithError(err).Warn("failed to push token onto realtime channel")
	}
}

// Subscribe opens the connection, joins the change topic for table, and
// delivers events to handler until ctx ends or Close is called. A channel
// auth error triggers a resubscribe after a fixed delay.
func (c *Channel) Subscribe(ctx context.Context, schema, table string, handler Handler) error {
	c.mu.Lock()
	c.handler = handler
	c.topic = fmt.Sprintf("realtime:%s:%s", schema, table)
	c.mu.Unlock()

	for {
		if err := c.connect(ctx); err != nil {
			return err
		}
		// A cancelled context must unblock a read waiting on a silent feed,
		// so a watcher closes the connection out from under it.
		watchDone := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				c.disconnect()
			case <-watchDone:
			}
		}()
		err := c.readLoop(ctx)
		close(watchDone)
		c.disconnect()
		if ctx.Err() != nil || c.isClosed() {
			return nil
		}
		logrus.WithError(err).Warn("realtime channel dropped, resubscribing")
		select {
		case <-time.After(reconnectDelay):
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Channel) connect(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url+"?apikey="+c.apiKey+"&vsn=1.0.0", nil)
	if err != nil {
		return fmt.Errorf("dial realtime endpoint: %w", err)
	}

	// The join and auth writes stay under the mutex: SetAuth writes from the
	// refresh goroutine under the same lock, and the websocket allows only
	// one writer at a time.
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
	join := c.frameLocked("phx_join", map[string]any{})
	if err := conn.WriteJSON(join); err != nil {
		return fmt.Errorf("join change topic: %w", err)
	}
	if c.token != "" {
		auth := c.frameLocked("access_token", map[string]any{"access_token": c.token})
		if err := conn.WriteJSON(auth); err != nil {
			return fmt.Errorf("authenticate channel: %w", err)
		}
	}
	logrus.WithField("topic", c.topic).Info("realtime subscription open")
	return nil
}

func (c *Channel) readLoop(ctx context.Context) error {
	for {
		c.mu.Lock()
		conn := c.conn
		handler := c.handler
		c.mu.Unlock()
		if conn == nil {
			return nil
		}

		var frame struct {
			Event   string          `json:"event"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			return err
		}

		switch frame.Event {
		case "INSERT", "UPDATE", "DELETE":
			var ev Event
			if err := json.Unmarshal(frame.Payload, &ev); err != nil {
				logrus.WithError(err).Warn("undecodable change event")
				continue
			}
			ev.Type = frame.Event
			if handler != nil {
				handler(ev)
			}
		case "phx_error", "phx_close":
			return fmt.Errorf("channel reported %s", frame.Event)
		default:
			// Heartbeats and join replies.
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Channel) frameLocked(event string, payload map[string]any) map[string]any {
	c.refSeq++
	return map[string]any{
		"topic":   c.topic,
		"event":   event,
		"payload": payload,
		"ref":     strconv.Itoa(c.refSeq),
	}
}

func (c *Channel) disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Channel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close tears the subscription down.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}
