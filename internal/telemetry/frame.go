// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
)

// FrameType tags an inbound telemetry frame.
type FrameType string

const (
	FrameHeartbeat FrameType = "heartbeat"
	FrameData      FrameType = "data"
	FrameState     FrameType = "state"
)

// Acquisition state values carried by "state" frames.
const (
	StateStarted = "started"
	StateStopped = "stopped"
)

var (
	ErrMalformedFrame   = errors.New("malformed frame")
	ErrUnknownFrameType = errors.New("unknown frame type")
)

// Sample is one acceleration sample as forwarded by the server.
// Timestamp is in milliseconds on the sender's clock.
type Sample struct {
	Timestamp float64 `json:"timestamp"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
}

// Frame is a decoded inbound frame. Sample is set for FrameData, State for
// FrameState.
type Frame struct {
	Type   FrameType
	Sample Sample
	State  string
}

// wireFrame mirrors every field any frame type may carry. Pointers tell a
// missing field apart from a zero value.
type wireFrame struct {
	Type      *string  `json:"type"`
	State     *string  `json:"state"`
	Timestamp *float64 `json:"timestamp"`
	X         *float64 `json:"x"`
	Y         *float64 `json:"y"`
	Z         *float64 `json:"z"`
}

// DecodeFrame classifies one raw text frame.
func DecodeFrame(raw []byte) (Frame, error) {
	var w wireFrame
	if err := json.Unmarshal(raw, &w); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if w.Type == nil {
		return Frame{}, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}

	switch FrameType(*w.Type) {
	case FrameHeartbeat:
		return Frame{Type: FrameHeartbeat}, nil

	case FrameData:
		if w.Timestamp == nil || w.X == nil || w.Y == nil || w.Z == nil {
			return Frame{}, fmt.Errorf("%w: data frame requires timestamp, x, y and z", ErrMalformedFrame)
		}
		return Frame{
			Type: FrameData,
			Sample: Sample{
				Timestamp: *w.Timestamp,
				X:         *w.X,
				Y:         *w.Y,
				Z:         *w.Z,
			},
		}, nil

	case FrameState:
		if w.State == nil {
			return Frame{}, fmt.Errorf("%w: state frame without state", ErrMalformedFrame)
		}
		switch *w.State {
		case StateStarted, StateStopped:
			return Frame{Type: FrameState, State: *w.State}, nil
		default:
			return Frame{}, fmt.Errorf("%w: unknown state %q", ErrMalformedFrame, *w.State)
		}

	default:
		return Frame{}, fmt.Errorf("%w: %q", ErrUnknownFrameType, *w.Type)
	}
}
