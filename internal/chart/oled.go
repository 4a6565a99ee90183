// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package chart

import (
	"fmt"
	"image"
	"io"
	"log"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/motion_telemetry/internal/telemetry"
)

const (
	oledWidth  = 128
	oledHeight = 64
	plotTop    = 28
)

// Drawer is the display surface. *ssd1306.Dev satisfies it.
type Drawer interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// OLEDChart shows the latest sample and a strip plot on a 128x64 panel.
type OLEDChart struct {
	mu     sync.Mutex
	dev    Drawer
	cfg    telemetry.SeriesConfig
	h      float64
	values [3][]float64
}

// NewOLEDChart draws on dev.
func NewOLEDChart(dev Drawer) *OLEDChart {
	return &OLEDChart{dev: dev}
}

// OpenOLED initializes periph and an SSD1306 on the named I2C bus ("" for
// the first one). Close the returned closer to release the bus.
func OpenOLED(busName string) (*ssd1306.Dev, io.Closer, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open I2C bus: %w", err)
	}

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, nil, fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized on I2C bus %q", busName)
	return dev, bus, nil
}

func (c *OLEDChart) ResetSeries(cfg telemetry.SeriesConfig) error {
	c.mu.Lock()
	c.cfg = cfg
	c.h = 0
	for i := range c.values {
		c.values[i] = nil
	}
	c.mu.Unlock()

	img := image1bit.NewVerticalLSB(image.Rect(0, 0, oledWidth, oledHeight))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	drawer.Dot = fixed.P(0, 13)
	drawer.DrawString("ACCEL TELEMETRY")
	drawer.Dot = fixed.P(0, 39)
	drawer.DrawString("Waiting for data")
	return c.dev.Draw(c.dev.Bounds(), img, image.Point{})
}

func (c *OLEDChart) AppendPoint(series int, x, y float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if series < 0 || series >= len(c.values) {
		return fmt.Errorf("oled chart: no series %d", series)
	}
	c.h = x
	c.values[series] = appendBounded(c.values[series], y, oledWidth)
	return nil
}

// SetVisibleRange redraws the panel. The strip plot always spans the last
// 128 refreshes, so the range itself is not used.
func (c *OLEDChart) SetVisibleRange(lo, hi float64) error {
	c.mu.Lock()
	img := c.renderLocked()
	c.mu.Unlock()
	return c.dev.Draw(c.dev.Bounds(), img, image.Point{})
}

func (c *OLEDChart) renderLocked() *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, oledWidth, oledHeight))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	var latest [3]float64
	for i, v := range c.values {
		if n := len(v); n > 0 {
			latest[i] = v[n-1]
		}
	}
	drawer.Dot = fixed.P(0, 12)
	drawer.DrawString(fmt.Sprintf("X%+6.2f Y%+6.2f", latest[0], latest[1]))
	drawer.Dot = fixed.P(0, 25)
	drawer.DrawString(fmt.Sprintf("Z%+6.2f H%7.1f", latest[2], c.h))

	lo, hi, ok := valueRange(c.values[:])
	if !ok {
		return img
	}
	if hi == lo {
		lo, hi = lo-1, hi+1
	}
	rows := oledHeight - plotTop - 1
	for _, v := range c.values {
		offset := oledWidth - len(v)
		for i, y := range v {
			py := plotTop + int(float64(rows)*(hi-y)/(hi-lo))
			img.SetBit(offset+i, py, image1bit.On)
		}
	}
	return img
}

func valueRange(series [][]float64) (lo, hi float64, ok bool) {
	for _, s := range series {
		for _, v := range s {
			if !ok {
				lo, hi, ok = v, v, true
				continue
			}
			lo = min(lo, v)
			hi = max(hi, v)
		}
	}
	return lo, hi, ok
}
