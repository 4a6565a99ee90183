// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/relabs-tech/motion_telemetry/internal/config"
	"github.com/relabs-tech/motion_telemetry/internal/control"
	"github.com/relabs-tech/motion_telemetry/internal/motion"
	"github.com/relabs-tech/motion_telemetry/internal/wsconn"
)

// RunSender streams motion samples to the server's sender socket while an
// acquisition is running. Acquisition is driven by stdin commands:
// start, stop, save and status.
func RunSender(ctx context.Context) error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not initialized")
	}

	ctrl := control.New(cfg.ServerURL,
		control.WithHTTPClient(&http.Client{Timeout: millis(cfg.HTTPTimeout)}))

	sock := wsconn.New(cfg.WebSocketURL(cfg.WSSenderPath),
		wsconn.WithName("sender"),
		wsconn.WithReconnectDelay(millis(cfg.ReconnectDelay)))
	go sock.Run(ctx)
	go logSenderEvents(ctx, sock)

	pub := motion.NewPublisher(sock, ctrl.Running,
		motion.WithThrottle(millis(cfg.MotionThrottleInterval)))

	src, closer, err := openMotionSource(cfg)
	if err != nil {
		// the sender keeps working for acquisition control
		log.Printf("sender: motion source %q unavailable, publishing disabled: %v", cfg.MotionSource, err)
	} else {
		if closer != nil {
			defer closer.Close()
		}
		log.Printf("sender: using %s motion source", cfg.MotionSource)
		go func() {
			if err := pub.Run(ctx, src, millis(cfg.MotionSampleInterval)); err != nil && ctx.Err() == nil {
				log.Printf("sender: motion publishing stopped: %v", err)
			}
		}()
	}

	cmds := &senderCommands{ctrl: ctrl, pub: pub, sock: sock, out: os.Stdout}
	log.Println("sender: ready, commands: start | stop | save | status")

	lines := readLines(ctx, os.Stdin)
	for {
		select {
		case <-ctx.Done():
			log.Println("sender: shutting down")
			return nil
		case line, ok := <-lines:
			if !ok {
				// stdin closed; keep streaming until cancelled
				lines = nil
				continue
			}
			if err := cmds.handle(ctx, line); err != nil {
				log.Printf("sender: %v", err)
			}
		}
	}
}

func logSenderEvents(ctx context.Context, sock *wsconn.Channel) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-sock.Events():
			switch ev.Kind {
			case wsconn.Opened:
				log.Printf("sender: connected to %s", sock.URL())
			case wsconn.Closed:
				if ev.Err != nil {
					log.Printf("sender: disconnected: %v", ev.Err)
				} else {
					log.Println("sender: disconnected")
				}
			}
		}
	}
}

// openMotionSource builds the source selected by MOTION_SOURCE. The closer
// is nil for sources without resources.
func openMotionSource(cfg *config.Config) (motion.Source, io.Closer, error) {
	switch cfg.MotionSource {
	case "mock":
		return motion.NewMockSource(), nil, nil
	case "mqtt":
		src, err := motion.NewMQTTSource(cfg.MQTTBroker, cfg.MQTTClientID, cfg.TopicIMU, cfg.AccelScale)
		if err != nil {
			return nil, nil, err
		}
		return src, src, nil
	case "serial":
		src, err := motion.OpenSerialSource(cfg.SerialPort, cfg.SerialBaudRate)
		if err != nil {
			return nil, nil, err
		}
		return src, src, nil
	case "device":
		src, err := motion.NewDeviceSource(cfg.IMUSPIDevice, cfg.IMUCSPin, cfg.AccelScale)
		if err != nil {
			return nil, nil, err
		}
		return src, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown motion source %q", cfg.MotionSource)
	}
}

type senderCommands struct {
	ctrl *control.Client
	pub  *motion.Publisher
	sock interface{ IsOpen() bool }
	out  io.Writer
}

func (s *senderCommands) handle(ctx context.Context, line string) error {
	switch cmd := strings.ToLower(strings.TrimSpace(line)); cmd {
	case "start":
		status, err := s.ctrl.Start(ctx)
		if err != nil {
			return fmt.Errorf("start acquisition: %w", err)
		}
		fmt.Fprintln(s.out, status)
	case "stop":
		status, err := s.ctrl.Stop(ctx)
		if err != nil {
			return fmt.Errorf("stop acquisition: %w", err)
		}
		fmt.Fprintln(s.out, status)
	case "save":
		filename, err := s.ctrl.Save(ctx)
		if err != nil {
			return fmt.Errorf("save data: %w", err)
		}
		fmt.Fprintf(s.out, "Data saved to %s\n", filename)
	case "status":
		st := s.pub.Stats()
		fmt.Fprintf(s.out, "running=%v connected=%v sent=%d gated=%d throttled=%d failed=%d\n",
			s.ctrl.Running(), s.sock.IsOpen(), st.Sent, st.Gated, st.Throttled, st.Failed)
	default:
		return fmt.Errorf("unknown command %q (want start, stop, save or status)", cmd)
	}
	return nil
}
