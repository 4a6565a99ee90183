// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/relabs-tech/motion_telemetry/internal/capture"
	"github.com/relabs-tech/motion_telemetry/internal/config"
)

// VideoUploadOptions selects what RunVideoUpload sends.
type VideoUploadOptions struct {
	// File uploads an existing .mp4/.webm instead of recording.
	File string
	// Duration of the recording. Recording also ends when ctx is cancelled.
	Duration time.Duration
	// Devices overrides CAMERA_DEVICES, preferred device first.
	Devices []string
}

// RunVideoUpload records a clip (or loads opts.File) and uploads it. It
// returns the name the server stored the clip under.
func RunVideoUpload(ctx context.Context, opts VideoUploadOptions) (string, error) {
	cfg := config.Get()
	if cfg == nil {
		return "", fmt.Errorf("config not initialized")
	}

	var (
		clip capture.Clip
		err  error
	)
	if opts.File != "" {
		clip, err = capture.ClipFromFile(opts.File)
	} else {
		devices := opts.Devices
		if len(devices) == 0 {
			devices = cfg.CameraDevices
		}
		rec := recording{
			devices:   devices,
			supported: recordable(cfg),
		}
		clip, err = rec.run(ctx, opts.Duration)
	}
	if err != nil {
		return "", err
	}

	uploader := capture.NewUploader(cfg.ServerURL, &http.Client{Timeout: millis(cfg.HTTPTimeout)})
	// a cancelled recording still gets uploaded
	filename, err := uploader.Upload(context.WithoutCancel(ctx), clip)
	if err != nil {
		return "", fmt.Errorf("video upload failed: %w", err)
	}
	return filename, nil
}

// recordable accepts the formats the configured containers allow and the
// installed GStreamer plugins can encode.
func recordable(cfg *config.Config) func(string) bool {
	allowed := capture.SupportedContainers(cfg.RecordContainers...)
	return func(mime string) bool {
		if !allowed(mime) {
			return false
		}
		if !cfg.RecordAudio && !capture.VideoOnly(mime) {
			return false
		}
		return capture.ProfileAvailable(mime)
	}
}

// recording is one clip taken from the first usable device. A nil open
// records through GStreamer.
type recording struct {
	devices   []string
	supported func(string) bool
	open      capture.OpenFunc
}

func (r recording) run(ctx context.Context, d time.Duration) (capture.Clip, error) {
	mime := capture.SupportedMimeType(r.supported)
	if mime == "" {
		return capture.Clip{}, capture.ErrNoFormat
	}

	var (
		stream capture.Stream
		err    error
	)
	if r.open == nil {
		stream, err = capture.OpenStream(mime, r.devices...)
	} else {
		stream, err = capture.OpenStreamWith(r.open, mime, r.devices...)
	}
	if err != nil {
		return capture.Clip{}, err
	}

	rec := capture.NewRecorder()
	if err := rec.Start(stream, mime); err != nil {
		stream.Close()
		return capture.Clip{}, err
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		log.Println("video: recording interrupted")
	}

	if err := rec.Stop(); err != nil {
		log.Printf("video: %v", err)
	}
	return rec.Clip()
}
