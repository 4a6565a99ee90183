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

	flag "github.com/spf13/pflag"

	"github.com/relabs-tech/motion_telemetry/internal/app"
	"github.com/relabs-tech/motion_telemetry/internal/config"
)

func main() {
	configPath := flag.StringP("config", "c", "./motion_config.txt", "path to configuration file")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: acquisition [--config FILE] start|stop|save\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := app.RunAcquisition(ctx, flag.Arg(0))
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	fmt.Println(result)
}
