// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"
)

// DefaultThrottle is the minimum wall-clock gap between two sent frames.
const DefaultThrottle = 100 * time.Millisecond

// Sink is the outbound transport, normally a *wsconn.Channel.
type Sink interface {
	Send(payload []byte) error
	IsOpen() bool
}

// PublisherStats counts what happened to offered readings.
type PublisherStats struct {
	Sent      uint64
	Gated     uint64 // acquisition not running or sink not open
	Throttled uint64
	Failed    uint64
}

// Publisher forwards readings to a Sink while an acquisition is running.
// Readings that arrive sooner than the throttle interval after the last
// sent one are dropped, not queued.
type Publisher struct {
	sink     Sink
	running  func() bool
	throttle time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastSend time.Time
	stats    PublisherStats
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithThrottle overrides DefaultThrottle.
func WithThrottle(d time.Duration) PublisherOption {
	return func(p *Publisher) { p.throttle = d }
}

// WithPublisherClock replaces time.Now.
func WithPublisherClock(now func() time.Time) PublisherOption {
	return func(p *Publisher) { p.now = now }
}

// NewPublisher returns a publisher writing to sink, gated by running.
func NewPublisher(sink Sink, running func() bool, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		sink:     sink,
		running:  running,
		throttle: DefaultThrottle,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Offer sends r if the acquisition is running, the sink is open and the
// throttle interval has elapsed. It reports whether r was sent.
func (p *Publisher) Offer(r Reading) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running() || !p.sink.IsOpen() {
		p.stats.Gated++
		return false
	}

	now := p.now()
	if !p.lastSend.IsZero() && now.Sub(p.lastSend) < p.throttle {
		p.stats.Throttled++
		return false
	}

	payload, err := json.Marshal(Frame{X: r.X, Y: r.Y, Z: r.Z, Timestamp: now.UnixMilli()})
	if err != nil {
		p.stats.Failed++
		log.Printf("motion: json marshal error: %v", err)
		return false
	}
	if err := p.sink.Send(payload); err != nil {
		p.stats.Failed++
		log.Printf("motion: send error: %v", err)
		return false
	}

	p.lastSend = now
	p.stats.Sent++
	return true
}

// Stats returns a copy of the counters.
func (p *Publisher) Stats() PublisherStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Run polls src every interval and offers each reading until ctx is done.
func (p *Publisher) Run(ctx context.Context, src Source, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		r, err := src.Next()
		if errors.Is(err, ErrNoReading) {
			continue
		}
		if err != nil {
			log.Printf("motion: source error: %v", err)
			continue
		}
		p.Offer(r)
	}
}
