// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package chart holds the rendering backends for the rolling telemetry plot.
package chart

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/relabs-tech/motion_telemetry/internal/telemetry"
)

// DefaultMaxPoints bounds the history kept per series.
const DefaultMaxPoints = 1000

// PNGChart renders the plot to a PNG file each time the visible range moves.
type PNGChart struct {
	mu        sync.Mutex
	path      string
	width     int
	height    int
	maxPoints int

	cfg    telemetry.SeriesConfig
	xs, ys [][]float64
	lo, hi float64

	renders int
}

// NewPNGChart writes width×height PNGs to path.
func NewPNGChart(path string, width, height int) *PNGChart {
	return &PNGChart{
		path:      path,
		width:     width,
		height:    height,
		maxPoints: DefaultMaxPoints,
	}
}

// Path is the output file.
func (c *PNGChart) Path() string { return c.path }

// Renders counts files written so far.
func (c *PNGChart) Renders() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renders
}

func (c *PNGChart) ResetSeries(cfg telemetry.SeriesConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
	c.xs = make([][]float64, len(cfg.Series))
	c.ys = make([][]float64, len(cfg.Series))
	c.lo, c.hi = 0, 0
	return nil
}

func (c *PNGChart) AppendPoint(series int, x, y float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if series < 0 || series >= len(c.xs) {
		return fmt.Errorf("png chart: no series %d", series)
	}
	c.xs[series] = appendBounded(c.xs[series], x, c.maxPoints)
	c.ys[series] = appendBounded(c.ys[series], y, c.maxPoints)
	return nil
}

// SetVisibleRange moves the window and re-renders. Nothing is written until
// every series has two points inside the window.
func (c *PNGChart) SetVisibleRange(lo, hi float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lo, c.hi = lo, hi

	ch, ok := c.buildLocked()
	if !ok {
		return nil
	}

	var buf bytes.Buffer
	if err := ch.Render(gochart.PNG, &buf); err != nil {
		return fmt.Errorf("png chart: render: %w", err)
	}
	if err := writeFileAtomic(c.path, buf.Bytes()); err != nil {
		return fmt.Errorf("png chart: %w", err)
	}
	c.renders++
	return nil
}

func (c *PNGChart) buildLocked() (gochart.Chart, bool) {
	if len(c.cfg.Series) == 0 || c.hi <= c.lo {
		return gochart.Chart{}, false
	}

	series := make([]gochart.Series, 0, len(c.cfg.Series))
	for i, s := range c.cfg.Series {
		var xs, ys []float64
		for j, x := range c.xs[i] {
			if x >= c.lo && x <= c.hi {
				xs = append(xs, x)
				ys = append(ys, c.ys[i][j])
			}
		}
		if len(xs) < 2 {
			return gochart.Chart{}, false
		}
		series = append(series, gochart.ContinuousSeries{
			Name:    s.Name,
			XValues: xs,
			YValues: ys,
			Style: gochart.Style{
				StrokeColor: drawing.ColorFromHex(s.Color),
				StrokeWidth: 2,
			},
		})
	}

	ch := gochart.Chart{
		Title:      c.cfg.Title,
		Width:      c.width,
		Height:     c.height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis: gochart.XAxis{
			Name:  c.cfg.XLabel,
			Range: &gochart.ContinuousRange{Min: c.lo, Max: c.hi},
		},
		YAxis:  gochart.YAxis{Name: c.cfg.YLabel},
		Series: series,
	}
	ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}
	return ch, true
}

func appendBounded(s []float64, v float64, limit int) []float64 {
	s = append(s, v)
	if limit > 0 && len(s) > limit {
		s = append(s[:0], s[len(s)-limit:]...)
	}
	return s
}

// writeFileAtomic replaces path so readers never see a partial image.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".chart-*.png")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}
