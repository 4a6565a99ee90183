// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/relabs-tech/motion_telemetry/internal/app"
	"github.com/relabs-tech/motion_telemetry/internal/config"
)

func main() {
	configPath := flag.StringP("config", "c", "./motion_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting motion sender (motion samples → server)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunSender(ctx); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
