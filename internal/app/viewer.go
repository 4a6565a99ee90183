// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/relabs-tech/motion_telemetry/internal/chart"
	"github.com/relabs-tech/motion_telemetry/internal/config"
	"github.com/relabs-tech/motion_telemetry/internal/telemetry"
	"github.com/relabs-tech/motion_telemetry/internal/wsconn"
)

// RunViewer subscribes to the visualization socket and keeps the rolling
// chart up to date. "axes <h> <v>" on stdin changes the plotted axes.
func RunViewer(ctx context.Context) error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not initialized")
	}

	h, err := telemetry.ParseAxis(cfg.ChartXAxis)
	if err != nil {
		return fmt.Errorf("CHART_X_AXIS: %w", err)
	}
	v, err := telemetry.ParseAxis(cfg.ChartYAxis)
	if err != nil {
		return fmt.Errorf("CHART_Y_AXIS: %w", err)
	}

	png := chart.NewPNGChart(cfg.ChartOutputPath, cfg.ChartWidth, cfg.ChartHeight)
	charts := chart.Multi{png}
	if cfg.OLEDEnabled {
		dev, bus, err := chart.OpenOLED(cfg.OLEDI2CBus)
		if err != nil {
			log.Printf("viewer: OLED display disabled: %v", err)
		} else {
			defer bus.Close()
			charts = append(charts, chart.NewOLEDChart(dev))
		}
	}

	consumer := telemetry.NewConsumer(charts,
		telemetry.WithBufferSize(cfg.DisplayBufferSize),
		telemetry.WithRefreshInterval(millis(cfg.DisplayRefreshInterval)),
		telemetry.WithAxes(h, v))

	sock := wsconn.New(cfg.WebSocketURL(cfg.WSVisualizationPath),
		wsconn.WithName("viewer"),
		wsconn.WithReconnectDelay(millis(cfg.ReconnectDelay)))
	go sock.Run(ctx)

	if cfg.ViewerHTTPAddr != "" {
		srv := &http.Server{
			Addr:              cfg.ViewerHTTPAddr,
			Handler:           newViewerHandler(consumer, png.Path()),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Printf("viewer: web server listening on %s", cfg.ViewerHTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("viewer: web server error: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	log.Printf("viewer: plotting %s against %s, writing %s", v, h, cfg.ChartOutputPath)
	return dispatch(ctx, consumer, sock.Events(), readLines(ctx, os.Stdin), os.Stdout)
}

// dispatch is the viewer's single event loop: socket events and stdin
// commands are applied to the consumer in arrival order.
func dispatch(ctx context.Context, consumer *telemetry.Consumer, events <-chan wsconn.Event, lines <-chan string, out io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			st := consumer.Stats()
			log.Printf("viewer: shutting down after %d frames (%d decode errors)", st.Frames, st.DecodeErrors)
			return nil
		case ev := <-events:
			handleViewerEvent(consumer, ev)
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if err := handleViewerCommand(consumer, line, out); err != nil {
				log.Printf("viewer: %v", err)
			}
		}
	}
}

func handleViewerEvent(consumer *telemetry.Consumer, ev wsconn.Event) {
	switch ev.Kind {
	case wsconn.Opened:
		log.Println("viewer: visualization socket connected")
	case wsconn.Message:
		// malformed frames are logged and counted by the consumer
		_ = consumer.HandleMessage(ev.Data)
	case wsconn.Closed:
		if ev.Err != nil {
			log.Printf("viewer: visualization socket closed: %v", ev.Err)
		} else {
			log.Println("viewer: visualization socket closed")
		}
	}
}

func handleViewerCommand(consumer *telemetry.Consumer, line string, out io.Writer) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	switch strings.ToLower(fields[0]) {
	case "axes":
		if len(fields) != 3 {
			return fmt.Errorf("usage: axes <horizontal> <vertical>")
		}
		h, err := telemetry.ParseAxis(strings.ToLower(fields[1]))
		if err != nil {
			return err
		}
		v, err := telemetry.ParseAxis(strings.ToLower(fields[2]))
		if err != nil {
			return err
		}
		consumer.SetAxes(h, v)
		fmt.Fprintf(out, "axes set to %s / %s\n", h, v)
	case "status":
		h, v := consumer.Axes()
		st := consumer.Stats()
		fmt.Fprintf(out, "state=%s axes=%s/%s buffered=%d frames=%d ignored=%d errors=%d\n",
			consumer.State(), h, v, len(consumer.Snapshot()), st.Frames, st.Ignored, st.DecodeErrors)
	default:
		return fmt.Errorf("unknown command %q (want axes or status)", fields[0])
	}
	return nil
}
