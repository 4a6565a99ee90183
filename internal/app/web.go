// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"log"
	"net/http"
	"os"

	"github.com/relabs-tech/motion_telemetry/internal/telemetry"
)

type telemetryView struct {
	State    string            `json:"state"`
	XAxis    string            `json:"x_axis"`
	YAxis    string            `json:"y_axis"`
	Epoch    *float64          `json:"epoch,omitempty"`
	Points   []telemetry.Point `json:"points"`
	Stats    telemetry.Stats   `json:"stats"`
	Buffered int               `json:"buffered"`
}

// newViewerHandler exposes the consumer state and the latest chart image.
func newViewerHandler(consumer *telemetry.Consumer, chartPath string) http.Handler {
	mux := http.NewServeMux()

	// JSON API endpoint: buffered points and counters
	mux.HandleFunc("/api/telemetry", func(w http.ResponseWriter, r *http.Request) {
		h, v := consumer.Axes()
		points := consumer.Snapshot()
		view := telemetryView{
			State:    consumer.State().String(),
			XAxis:    string(h),
			YAxis:    string(v),
			Points:   points,
			Stats:    consumer.Stats(),
			Buffered: len(points),
		}
		if epoch, ok := consumer.Epoch(); ok {
			view.Epoch = &epoch
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(view); err != nil {
			log.Printf("viewer: json encode error: %v", err)
		}
	})

	// Axis selection, same effect as the stdin command
	mux.HandleFunc("/api/axes", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h, err := telemetry.ParseAxis(r.FormValue("x"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		v, err := telemetry.ParseAxis(r.FormValue("y"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		consumer.SetAxes(h, v)
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/chart.png", func(w http.ResponseWriter, r *http.Request) {
		if _, err := os.Stat(chartPath); err != nil {
			http.Error(w, "no chart yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, chartPath)
	})

	return mux
}
