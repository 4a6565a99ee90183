// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

// DefaultBufferSize is the number of points the display keeps.
const DefaultBufferSize = 200

// Point is a buffered sample with its time already shifted to the
// acquisition epoch, in seconds.
type Point struct {
	Time float64 `json:"timestamp"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
}

// Value returns the point's value on the given axis.
func (p Point) Value(a Axis) float64 {
	switch a {
	case AxisX:
		return p.X
	case AxisY:
		return p.Y
	case AxisZ:
		return p.Z
	default:
		return p.Time
	}
}

// Buffer is a fixed-capacity FIFO of points. When full, pushing drops the
// oldest point first. Not safe for concurrent use.
type Buffer struct {
	points []Point
	head   int // index of the oldest point
	size   int
}

// NewBuffer returns an empty buffer holding at most capacity points.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &Buffer{points: make([]Point, capacity)}
}

// Push appends p, evicting the oldest point when the buffer is full.
// It reports whether a point was evicted.
func (b *Buffer) Push(p Point) bool {
	capacity := len(b.points)
	if b.size < capacity {
		b.points[(b.head+b.size)%capacity] = p
		b.size++
		return false
	}
	b.points[b.head] = p
	b.head = (b.head + 1) % capacity
	return true
}

// Latest returns the most recently pushed point.
func (b *Buffer) Latest() (Point, bool) {
	if b.size == 0 {
		return Point{}, false
	}
	return b.points[(b.head+b.size-1)%len(b.points)], true
}

// Len returns the number of buffered points.
func (b *Buffer) Len() int { return b.size }

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int { return len(b.points) }

// Reset drops all points.
func (b *Buffer) Reset() {
	b.head = 0
	b.size = 0
}

// Snapshot copies the points out, oldest first.
func (b *Buffer) Snapshot() []Point {
	out := make([]Point, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.points[(b.head+i)%len(b.points)]
	}
	return out
}
