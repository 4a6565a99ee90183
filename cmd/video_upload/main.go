// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/relabs-tech/motion_telemetry/internal/app"
	"github.com/relabs-tech/motion_telemetry/internal/config"
)

func main() {
	configPath := flag.StringP("config", "c", "./motion_config.txt", "path to configuration file")
	file := flag.StringP("file", "f", "", "upload an existing .mp4/.webm instead of recording")
	duration := flag.DurationP("duration", "d", 10*time.Second, "recording length")
	devices := flag.StringSlice("device", nil, "capture device, preferred first (repeatable; default CAMERA_DEVICES)")
	flag.Parse()

	log.Println("starting video upload")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Ctrl-C ends the recording early; the clip is still uploaded
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	filename, err := app.RunVideoUpload(ctx, app.VideoUploadOptions{
		File:     *file,
		Duration: *duration,
		Devices:  *devices,
	})
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	fmt.Printf("Video uploaded successfully as %s\n", filename)
}
