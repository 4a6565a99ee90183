// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import (
	"math"
	"time"
)

type mockSource struct {
	start time.Time
	since func(time.Time) time.Duration
}

// NewMockSource creates a mock motion source that generates smoothly
// changing accelerations around 1g on Z.
func NewMockSource() Source {
	return &mockSource{start: time.Now(), since: time.Since}
}

func (m *mockSource) Next() (Reading, error) {
	elapsed := m.since(m.start).Seconds()

	return Reading{
		X: 2 * math.Sin(elapsed),
		Y: 1.5 * math.Cos(elapsed*0.7),
		Z: 9.81 + 0.5*math.Sin(elapsed*3),
	}, nil
}
