// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/relabs-tech/motion_telemetry/internal/config"
	"github.com/relabs-tech/motion_telemetry/internal/control"
)

// RunAcquisition performs one lifecycle call (start, stop or save) and
// returns the server's answer.
func RunAcquisition(ctx context.Context, action string) (string, error) {
	cfg := config.Get()
	if cfg == nil {
		return "", fmt.Errorf("config not initialized")
	}

	ctrl := control.New(cfg.ServerURL,
		control.WithHTTPClient(&http.Client{Timeout: millis(cfg.HTTPTimeout)}))

	var (
		result string
		err    error
	)
	switch action {
	case "start":
		result, err = ctrl.Start(ctx)
	case "stop":
		result, err = ctrl.Stop(ctx)
	case "save":
		result, err = ctrl.Save(ctx)
	default:
		return "", fmt.Errorf("unknown action %q (want start, stop or save)", action)
	}
	if err != nil {
		return "", fmt.Errorf("%s acquisition: %w", action, err)
	}
	log.Printf("acquisition: %s -> %s", action, result)
	return result, nil
}
