// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package capture

import (
	"errors"
	"fmt"
	"log"
)

// ErrNoCamera is returned when no capture device could be opened.
var ErrNoCamera = errors.New("no capture device available")

// Stream is an opened capture device producing encoded container bytes of
// a single MIME type.
type Stream interface {
	Device() string
	MimeType() string
	// Start begins encoding. onChunk receives each muxed buffer in order
	// and may be called from another goroutine.
	Start(onChunk func([]byte)) error
	// Stop finalizes the container and releases the device. Every chunk
	// has been delivered when it returns.
	Stop() error
	// Close releases the device without finalizing.
	Close() error
}

// OpenFunc opens a single capture device encoding to mime.
type OpenFunc func(device, mime string) (Stream, error)

// OpenStream opens the first device that works, preferred device first,
// as a GStreamer pipeline encoding to mime.
func OpenStream(mime string, devices ...string) (Stream, error) {
	return OpenStreamWith(OpenPipeline, mime, devices...)
}

// OpenStreamWith is OpenStream with a custom opener.
func OpenStreamWith(open OpenFunc, mime string, devices ...string) (Stream, error) {
	if mime == "" {
		return nil, ErrNoFormat
	}
	if len(devices) == 0 {
		return nil, ErrNoCamera
	}

	var errs []error
	for i, d := range devices {
		s, err := open(d, mime)
		if err != nil {
			if i == 0 {
				log.Printf("capture: cannot access %s, trying any available device: %v", d, err)
			}
			errs = append(errs, fmt.Errorf("%s: %w", d, err))
			continue
		}
		log.Printf("capture: stream initialized from %s (%s)", d, mime)
		return s, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrNoCamera, errors.Join(errs...))
}
