// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/relabs-tech/motion_telemetry/internal/capture"
	"github.com/relabs-tech/motion_telemetry/internal/config"
	"github.com/relabs-tech/motion_telemetry/internal/control"
	"github.com/relabs-tech/motion_telemetry/internal/motion"
	"github.com/relabs-tech/motion_telemetry/internal/telemetry"
	"github.com/relabs-tech/motion_telemetry/internal/wsconn"
)

type nopChart struct{ resets int }

func (c *nopChart) ResetSeries(telemetry.SeriesConfig) error { c.resets++; return nil }
func (c *nopChart) AppendPoint(int, float64, float64) error  { return nil }
func (c *nopChart) SetVisibleRange(float64, float64) error   { return nil }

func newAcquisitionServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"Acquisition started"}`))
	})
	mux.HandleFunc("/stop", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"Acquisition stopped"}`))
	})
	mux.HandleFunc("/save", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"Data saved","filename":"sensor_data_1.json"}`))
	})
	mux.HandleFunc("/upload_video", func(w http.ResponseWriter, r *http.Request) {
		_, hdr, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"detail":"missing file"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"filename": hdr.Filename})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type openFlag bool

func (o openFlag) IsOpen() bool     { return bool(o) }
func (o openFlag) Send([]byte) error { return nil }

func TestSenderCommands(t *testing.T) {
	srv := newAcquisitionServer(t)
	ctrl := control.New(srv.URL)
	var out bytes.Buffer
	cmds := &senderCommands{
		ctrl: ctrl,
		pub:  motion.NewPublisher(openFlag(true), ctrl.Running),
		sock: openFlag(true),
		out:  &out,
	}
	ctx := context.Background()

	for _, line := range []string{"start", "status", "save", "STOP"} {
		if err := cmds.handle(ctx, line); err != nil {
			t.Fatalf("%s: %v", line, err)
		}
	}
	if err := cmds.handle(ctx, "launch"); err == nil {
		t.Error("expected error for unknown command")
	}

	got := out.String()
	for _, want := range []string{
		"Acquisition started",
		"running=true connected=true",
		"Data saved to sensor_data_1.json",
		"Acquisition stopped",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if ctrl.Running() {
		t.Error("acquisition should be stopped")
	}
}

func TestDispatchAppliesEventsAndCommands(t *testing.T) {
	ch := &nopChart{}
	consumer := telemetry.NewConsumer(ch)
	events := make(chan wsconn.Event, 8)
	lines := make(chan string, 2)
	var out bytes.Buffer

	events <- wsconn.Event{Kind: wsconn.Opened}
	events <- wsconn.Event{Kind: wsconn.Message, Data: []byte(`{"type":"state","state":"started"}`)}
	events <- wsconn.Event{Kind: wsconn.Message, Data: []byte(`{"type":"data","timestamp":1000,"x":1,"y":2,"z":3}`)}
	events <- wsconn.Event{Kind: wsconn.Message, Data: []byte(`not json`)}
	events <- wsconn.Event{Kind: wsconn.Message, Data: []byte(`{"type":"data","timestamp":1500,"x":4,"y":5,"z":6}`)}
	events <- wsconn.Event{Kind: wsconn.Closed}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- dispatch(ctx, consumer, events, lines, &out) }()

	deadline := time.After(2 * time.Second)
	for consumer.Stats().Frames < 4 {
		select {
		case <-deadline:
			t.Fatalf("Timeout waiting for frames, stats %+v", consumer.Stats())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("dispatch returned %v", err)
	}

	pts := consumer.Snapshot()
	if len(pts) != 2 || pts[0].Time != 0 || pts[1].Time != 0.5 || pts[1].X != 4 {
		t.Errorf("unexpected points %+v", pts)
	}
	if consumer.Stats().DecodeErrors != 1 {
		t.Errorf("Expected 1 decode error, got %d", consumer.Stats().DecodeErrors)
	}
}

func TestViewerCommands(t *testing.T) {
	ch := &nopChart{}
	consumer := telemetry.NewConsumer(ch)
	var out bytes.Buffer

	if err := handleViewerCommand(consumer, "axes y Z", &out); err != nil {
		t.Fatalf("axes: %v", err)
	}
	if h, v := consumer.Axes(); h != telemetry.AxisY || v != telemetry.AxisZ {
		t.Errorf("axes = %s/%s", h, v)
	}
	if ch.resets != 1 {
		t.Errorf("axis change should reset the chart, resets=%d", ch.resets)
	}

	for _, bad := range []string{"axes x", "axes w x", "zoom 2"} {
		if err := handleViewerCommand(consumer, bad, &out); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}

	out.Reset()
	if err := handleViewerCommand(consumer, "status", &out); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "state=stopped axes=y/z") {
		t.Errorf("unexpected status %q", out.String())
	}
}

func TestViewerHandler(t *testing.T) {
	consumer := telemetry.NewConsumer(&nopChart{})
	consumer.Handle(telemetry.Frame{Type: telemetry.FrameState, State: telemetry.StateStarted})
	consumer.Handle(telemetry.Frame{Type: telemetry.FrameData, Sample: telemetry.Sample{Timestamp: 2000, X: 1, Y: 2, Z: 3}})

	chartPath := filepath.Join(t.TempDir(), "chart.png")
	h := newViewerHandler(consumer, chartPath)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/telemetry", nil))
	var view telemetryView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.State != "running" || view.Buffered != 1 || view.Epoch == nil || *view.Epoch != 2000 {
		t.Errorf("unexpected view %+v", view)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chart.png", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("missing chart: expected 503, got %d", rec.Code)
	}

	form := url.Values{"x": {"x"}, "y": {"z"}}
	req := httptest.NewRequest(http.MethodPost, "/api/axes", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("axes: expected 204, got %d", rec.Code)
	}
	if hx, vy := consumer.Axes(); hx != telemetry.AxisX || vy != telemetry.AxisZ {
		t.Errorf("axes = %s/%s", hx, vy)
	}
	if consumer.State() != telemetry.Running || len(consumer.Snapshot()) != 0 {
		t.Error("axis change should clear the buffer and keep running")
	}

	if err := os.WriteFile(chartPath, []byte("\x89PNG"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chart.png", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("chart: expected 200, got %d", rec.Code)
	}
}

func TestReadLinesSkipsBlank(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []string
	for line := range readLines(ctx, strings.NewReader("start\n\n  status  \n")) {
		got = append(got, line)
	}
	if len(got) != 2 || got[0] != "start" || got[1] != "status" {
		t.Errorf("unexpected lines %q", got)
	}
}

func TestOneShotCommands(t *testing.T) {
	srv := newAcquisitionServer(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "motion_config.txt")
	if err := os.WriteFile(cfgPath, []byte("SERVER_URL="+srv.URL+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := config.InitGlobal(cfgPath); err != nil {
		t.Fatalf("InitGlobal: %v", err)
	}
	ctx := context.Background()

	t.Run("acquisition", func(t *testing.T) {
		got, err := RunAcquisition(ctx, "save")
		if err != nil || got != "sensor_data_1.json" {
			t.Errorf("save: got %q, %v", got, err)
		}
		if _, err := RunAcquisition(ctx, "pause"); err == nil {
			t.Error("expected error for unknown action")
		}
	})

	t.Run("video file", func(t *testing.T) {
		clipPath := filepath.Join(dir, "walk.webm")
		if err := os.WriteFile(clipPath, webmHeader, 0o644); err != nil {
			t.Fatal(err)
		}
		name, err := RunVideoUpload(ctx, VideoUploadOptions{File: clipPath})
		if err != nil {
			t.Fatalf("RunVideoUpload: %v", err)
		}
		if !strings.HasPrefix(name, "recorded_video_") || !strings.HasSuffix(name, ".webm") {
			t.Errorf("unexpected filename %q", name)
		}

		rawPath := filepath.Join(dir, "frames.webm")
		if err := os.WriteFile(rawPath, bytes.Repeat([]byte{0x10, 0x80}, 512), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := RunVideoUpload(ctx, VideoUploadOptions{File: rawPath}); !errors.Is(err, capture.ErrFormatMismatch) {
			t.Errorf("Expected ErrFormatMismatch for raw frames, got %v", err)
		}
	})
}

var webmHeader = []byte{0x1A, 0x45, 0xDF, 0xA3, 0x9F, 0x42, 0x86, 0x81, 0x01}

// cameraStream stands in for a GStreamer pipeline.
type cameraStream struct {
	device, mime string
	data         []byte
	onChunk      func([]byte)
}

func (c *cameraStream) Device() string   { return c.device }
func (c *cameraStream) MimeType() string { return c.mime }
func (c *cameraStream) Start(onChunk func([]byte)) error {
	c.onChunk = onChunk
	onChunk(c.data)
	return nil
}
func (c *cameraStream) Stop() error  { return nil }
func (c *cameraStream) Close() error { return nil }

func TestRecordingNegotiatesAndFallsBack(t *testing.T) {
	var opened []string
	rec := recording{
		devices:   []string{"/dev/video0", "/dev/video1"},
		supported: func(m string) bool { return m == "video/webm" || m == "video/mp4" },
		open: func(device, mime string) (capture.Stream, error) {
			opened = append(opened, device+" "+mime)
			if device == "/dev/video0" {
				return nil, os.ErrNotExist
			}
			return &cameraStream{device: device, mime: mime, data: webmHeader}, nil
		},
	}

	clip, err := rec.run(context.Background(), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if clip.MimeType != "video/webm" || !bytes.Equal(clip.Data, webmHeader) {
		t.Errorf("unexpected clip %s %q", clip.MimeType, clip.Data)
	}
	want := []string{"/dev/video0 video/webm", "/dev/video1 video/webm"}
	if len(opened) != 2 || opened[0] != want[0] || opened[1] != want[1] {
		t.Errorf("Expected opens %q, got %q", want, opened)
	}
}

func TestRecordingRefusesUnencodedFrames(t *testing.T) {
	rec := recording{
		devices:   []string{"/dev/video0"},
		supported: func(string) bool { return true },
		open: func(device, mime string) (capture.Stream, error) {
			return &cameraStream{device: device, mime: mime, data: bytes.Repeat([]byte{0x10, 0x80, 0xEB, 0x80}, 2048)}, nil
		},
	}
	if _, err := rec.run(context.Background(), time.Millisecond); !errors.Is(err, capture.ErrFormatMismatch) {
		t.Errorf("Expected ErrFormatMismatch, got %v", err)
	}

	rec.supported = func(string) bool { return false }
	if _, err := rec.run(context.Background(), time.Millisecond); !errors.Is(err, capture.ErrNoFormat) {
		t.Errorf("Expected ErrNoFormat, got %v", err)
	}
}

func TestRecordableHonoursConfig(t *testing.T) {
	cfg := config.Default()
	cfg.RecordContainers = []string{"mp4"}
	cfg.RecordAudio = false
	ok := recordable(cfg)
	for _, mime := range []string{"video/webm", "video/webm;codecs=vp8,opus", "video/mp4;codecs=avc1.42E01E,mp4a.40.2"} {
		if ok(mime) {
			t.Errorf("%s should not be recordable", mime)
		}
	}
}
