// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"log"
	"sync"
	"time"
)

// StreamState is whether the server reports a running acquisition.
type StreamState int

const (
	Stopped StreamState = iota
	Running
)

func (s StreamState) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// DefaultRefreshInterval is the minimum time between two chart refreshes.
const DefaultRefreshInterval = 100 * time.Millisecond

// Stats counts what the consumer did with the frames it was given.
type Stats struct {
	Frames       uint64 // frames handed to HandleMessage or Handle
	Heartbeats   uint64
	Buffered     uint64 // data frames appended to the buffer
	Ignored      uint64 // data frames received while stopped
	Evicted      uint64
	Refreshes    uint64
	DecodeErrors uint64
	RenderErrors uint64
	Resets       uint64
}

// Consumer applies inbound telemetry frames to the display buffer and
// drives throttled chart refreshes.
//
// Frames must be handed over in arrival order. All methods are safe to call
// from several goroutines; a frame is fully applied before the next one is
// looked at.
type Consumer struct {
	mu sync.Mutex

	chart           Chart
	buf             *Buffer
	state           StreamState
	epoch           float64
	haveEpoch       bool
	hAxis, vAxis    Axis
	refreshInterval time.Duration
	lastRefresh     time.Time
	now             func() time.Time
	stats           Stats
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithBufferSize overrides DefaultBufferSize.
func WithBufferSize(n int) Option {
	return func(c *Consumer) { c.buf = NewBuffer(n) }
}

// WithRefreshInterval overrides DefaultRefreshInterval.
func WithRefreshInterval(d time.Duration) Option {
	return func(c *Consumer) { c.refreshInterval = d }
}

// WithClock replaces time.Now for the refresh throttle.
func WithClock(now func() time.Time) Option {
	return func(c *Consumer) { c.now = now }
}

// WithAxes sets the initial horizontal and vertical axis selection.
func WithAxes(h, v Axis) Option {
	return func(c *Consumer) {
		c.hAxis = h
		c.vAxis = v
	}
}

// NewConsumer returns a consumer in the Stopped state drawing on chart.
func NewConsumer(chart Chart, opts ...Option) *Consumer {
	c := &Consumer{
		chart:           chart,
		buf:             NewBuffer(DefaultBufferSize),
		hAxis:           AxisTimestamp,
		vAxis:           AxisX,
		refreshInterval: DefaultRefreshInterval,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HandleMessage decodes one raw frame and applies it. Decode errors are
// logged and returned; the consumer state is left untouched by them.
func (c *Consumer) HandleMessage(raw []byte) error {
	f, err := DecodeFrame(raw)
	if err != nil {
		c.mu.Lock()
		c.stats.Frames++
		c.stats.DecodeErrors++
		c.mu.Unlock()
		log.Printf("telemetry: discarding frame: %v", err)
		return err
	}
	c.Handle(f)
	return nil
}

// Handle applies an already decoded frame.
func (c *Consumer) Handle(f Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Frames++

	switch f.Type {
	case FrameHeartbeat:
		c.stats.Heartbeats++
		log.Println("telemetry: heartbeat received from server")

	case FrameState:
		switch f.State {
		case StateStarted:
			c.state = Running
			c.resetLocked(InitialSeriesConfig())
			log.Println("telemetry: acquisition started, plot reset")
		case StateStopped:
			c.state = Stopped
			log.Println("telemetry: acquisition stopped, plot frozen")
		}

	case FrameData:
		if c.state != Running {
			c.stats.Ignored++
			return
		}
		c.appendLocked(f.Sample)
	}
}

// SetAxes changes the axis selection. Like an acquisition start it clears
// the buffer, the epoch and the chart, but it leaves the stream state alone.
func (c *Consumer) SetAxes(h, v Axis) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hAxis = h
	c.vAxis = v
	c.resetLocked(AxesSeriesConfig(h, v))
	log.Printf("telemetry: axis selection changed to %s/%s, plot reset", h, v)
}

func (c *Consumer) resetLocked(cfg SeriesConfig) {
	c.buf.Reset()
	c.haveEpoch = false
	c.epoch = 0
	c.stats.Resets++
	if err := c.chart.ResetSeries(cfg); err != nil {
		c.stats.RenderErrors++
		log.Printf("telemetry: chart reset error: %v", err)
	}
}

func (c *Consumer) appendLocked(s Sample) {
	if !c.haveEpoch {
		c.epoch = s.Timestamp
		c.haveEpoch = true
		log.Printf("telemetry: start time set to %v", c.epoch)
	}

	if c.buf.Push(Point{
		Time: (s.Timestamp - c.epoch) / 1000,
		X:    s.X,
		Y:    s.Y,
		Z:    s.Z,
	}) {
		c.stats.Evicted++
	}
	c.stats.Buffered++

	now := c.now()
	if now.Sub(c.lastRefresh) >= c.refreshInterval {
		c.refreshLocked()
		c.lastRefresh = now
	}
}

// refreshLocked plots the latest point on all three series and slides the
// visible window so it ends at that point.
func (c *Consumer) refreshLocked() {
	latest, ok := c.buf.Latest()
	if !ok {
		return
	}
	c.stats.Refreshes++

	h := latest.Value(c.hAxis)
	for i, v := range []float64{latest.X, latest.Y, latest.Z} {
		if err := c.chart.AppendPoint(i, h, v); err != nil {
			c.stats.RenderErrors++
			log.Printf("telemetry: chart append error on series %d: %v", i, err)
			return
		}
	}

	window := float64(c.buf.Cap()) * 0.05
	if err := c.chart.SetVisibleRange(h-window, h); err != nil {
		c.stats.RenderErrors++
		log.Printf("telemetry: chart range error: %v", err)
	}
}

// State returns the current stream state.
func (c *Consumer) State() StreamState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Axes returns the current horizontal and vertical axis selection.
func (c *Consumer) Axes() (Axis, Axis) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hAxis, c.vAxis
}

// Epoch returns the acquisition epoch in source milliseconds, if set.
func (c *Consumer) Epoch() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch, c.haveEpoch
}

// Snapshot returns the buffered points, oldest first.
func (c *Consumer) Snapshot() []Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Snapshot()
}

// Stats returns a copy of the frame counters.
func (c *Consumer) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
