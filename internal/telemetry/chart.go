// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import "fmt"

// Axis selects which point field is plotted on a chart axis.
type Axis string

const (
	AxisTimestamp Axis = "timestamp"
	AxisX         Axis = "x"
	AxisY         Axis = "y"
	AxisZ         Axis = "z"
)

// ParseAxis validates an axis name.
func ParseAxis(s string) (Axis, error) {
	switch a := Axis(s); a {
	case AxisTimestamp, AxisX, AxisY, AxisZ:
		return a, nil
	}
	return "", fmt.Errorf("unknown axis %q (want timestamp, x, y or z)", s)
}

// Label is the axis title shown for a selected axis.
func (a Axis) Label() string {
	switch a {
	case AxisTimestamp:
		return "Timestamp (s)"
	case AxisX:
		return "X-axis (m/s²)"
	case AxisY:
		return "Y-axis (m/s²)"
	case AxisZ:
		return "Z-axis (m/s²)"
	default:
		return ""
	}
}

// Series describes one plotted line.
type Series struct {
	Name  string
	Color string // hex, without '#'
}

// SeriesConfig is the empty chart layout a chart is reset to.
type SeriesConfig struct {
	Title  string
	XLabel string
	YLabel string
	Series []Series
}

// Chart is a rendering backend for the rolling telemetry plot.
type Chart interface {
	// ResetSeries clears all series and applies cfg.
	ResetSeries(cfg SeriesConfig) error
	// AppendPoint adds one point to the series at index series.
	AppendPoint(series int, x, y float64) error
	// SetVisibleRange sets the visible horizontal range.
	SetVisibleRange(lo, hi float64) error
}

// The three plotted series, in the order AppendPoint indexes them.
var defaultSeries = []Series{
	{Name: "X-axis", Color: "17BECF"},
	{Name: "Y-axis", Color: "7F7F7F"},
	{Name: "Z-axis", Color: "B22222"},
}

const chartTitle = "Real-Time Accelerometer Data"

// InitialSeriesConfig is the layout applied when an acquisition starts.
func InitialSeriesConfig() SeriesConfig {
	return SeriesConfig{
		Title:  chartTitle,
		XLabel: "Timestamp (s)",
		YLabel: "Acceleration (m/s²)",
		Series: append([]Series(nil), defaultSeries...),
	}
}

// AxesSeriesConfig is the layout applied after an axis selection change.
func AxesSeriesConfig(h, v Axis) SeriesConfig {
	return SeriesConfig{
		Title:  chartTitle,
		XLabel: h.Label(),
		YLabel: v.Label(),
		Series: append([]Series(nil), defaultSeries...),
	}
}
