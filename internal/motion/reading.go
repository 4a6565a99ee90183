// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import "errors"

// ErrNoReading is returned by a Source that has nothing new to offer yet.
var ErrNoReading = errors.New("no new motion reading")

// Reading is one acceleration measurement in m/s².
type Reading struct {
	X float64
	Y float64
	Z float64
}

// Source is anything that can provide motion readings over time.
type Source interface {
	Next() (Reading, error)
}

// Frame is the outbound JSON sent to the server for every accepted reading.
// Timestamp is wall-clock UNIX time in milliseconds.
type Frame struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Timestamp int64   `json:"timestamp"`
}
