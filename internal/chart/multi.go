// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package chart

import "github.com/relabs-tech/motion_telemetry/internal/telemetry"

// Multi fans every call out to all charts. Every chart is called even when
// an earlier one fails; the first error is returned.
type Multi []telemetry.Chart

func (m Multi) ResetSeries(cfg telemetry.SeriesConfig) error {
	return m.each(func(c telemetry.Chart) error { return c.ResetSeries(cfg) })
}

func (m Multi) AppendPoint(series int, x, y float64) error {
	return m.each(func(c telemetry.Chart) error { return c.AppendPoint(series, x, y) })
}

func (m Multi) SetVisibleRange(lo, hi float64) error {
	return m.each(func(c telemetry.Chart) error { return c.SetVisibleRange(lo, hi) })
}

func (m Multi) each(fn func(telemetry.Chart) error) error {
	var first error
	for _, c := range m {
		if err := fn(c); err != nil && first == nil {
			first = err
		}
	}
	return first
}
