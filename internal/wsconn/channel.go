// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package wsconn keeps a single WebSocket connection alive, reconnecting
// after a fixed delay whenever it drops.
package wsconn

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultReconnectDelay is the wait between a close and the next dial.
const DefaultReconnectDelay = 5 * time.Second

// DefaultWriteTimeout bounds a single Send on a stalled connection.
const DefaultWriteTimeout = 10 * time.Second

// ErrNotOpen is returned by Send while no connection is established.
var ErrNotOpen = errors.New("websocket channel is not open")

// EventKind tells what happened on the channel.
type EventKind int

const (
	Opened EventKind = iota
	Message
	Closed
)

func (k EventKind) String() string {
	switch k {
	case Opened:
		return "opened"
	case Message:
		return "message"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one transport event. Data is set for Message, Err for Closed
// (nil on a normal close).
type Event struct {
	Kind EventKind
	Data []byte
	Err  error
}

// Channel is a reconnecting WebSocket client. Events are delivered in order
// on a single channel; Send may be called from any goroutine.
type Channel struct {
	url            string
	name           string
	dialer         *websocket.Dialer
	reconnectDelay time.Duration
	writeTimeout   time.Duration
	events         chan Event

	mu   sync.Mutex // guards conn and serializes writes
	conn *websocket.Conn

	attempts uint64
}

// Option configures a Channel.
type Option func(*Channel)

// WithReconnectDelay overrides DefaultReconnectDelay.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Channel) { c.reconnectDelay = d }
}

// WithWriteTimeout overrides DefaultWriteTimeout.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Channel) { c.writeTimeout = d }
}

// WithName sets the prefix used in log lines.
func WithName(name string) Option {
	return func(c *Channel) { c.name = name }
}

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Channel) { c.dialer = d }
}

// WithEventBuffer sets the capacity of the events channel.
func WithEventBuffer(n int) Option {
	return func(c *Channel) { c.events = make(chan Event, n) }
}

// New creates a channel for url. Nothing is dialed until Run.
func New(url string, opts ...Option) *Channel {
	c := &Channel{
		url:            url,
		name:           "wsconn",
		dialer:         websocket.DefaultDialer,
		reconnectDelay: DefaultReconnectDelay,
		writeTimeout:   DefaultWriteTimeout,
		events:         make(chan Event, 64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the dialed address.
func (c *Channel) URL() string { return c.url }

// Events returns the event stream. It is never closed.
func (c *Channel) Events() <-chan Event { return c.events }

// IsOpen reports whether a connection is currently established.
func (c *Channel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Attempts returns how many dials have been made so far.
func (c *Channel) Attempts() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Send writes payload as one text frame. A peer that stops reading makes
// Send fail after the write timeout instead of blocking.
func (c *Channel) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotOpen
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return fmt.Errorf("%s: set write deadline: %w", c.name, err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("%s: write: %w", c.name, err)
	}
	return nil
}

// Run dials the server and keeps reconnecting until ctx is cancelled.
// Every close, including a failed dial, is followed by exactly one new
// attempt after the reconnect delay. There is no backoff and no retry cap.
func (c *Channel) Run(ctx context.Context) error {
	for {
		log.Printf("%s: connecting to %s", c.name, c.url)

		c.mu.Lock()
		c.attempts++
		c.mu.Unlock()

		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("%s: dial error: %v", c.name, err)
			c.emit(ctx, Event{Kind: Closed, Err: err})
		} else {
			err = c.serve(ctx, conn)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("%s: connection closed: %v", c.name, err)
			c.emit(ctx, Event{Kind: Closed, Err: err})
		}

		log.Printf("%s: reconnecting in %s", c.name, c.reconnectDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectDelay):
		}
	}
}

// serve publishes conn, pumps its messages into the event stream and
// returns the error that ended the read loop. A normal close returns nil.
func (c *Channel) serve(ctx context.Context, conn *websocket.Conn) error {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	log.Printf("%s: connection established", c.name)
	c.emit(ctx, Event{Kind: Opened})

	done := make(chan struct{})
	defer close(done)
	// WriteControl and Close are safe next to a concurrent WriteMessage, so
	// shutdown never waits for c.mu held by a blocked Send.
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("%s: websocket error: %v", c.name, err)
			}
			return err
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		if !c.emit(ctx, Event{Kind: Message, Data: data}) {
			return ctx.Err()
		}
	}
}

// emit delivers ev unless ctx is cancelled first.
func (c *Channel) emit(ctx context.Context, ev Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
