// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package capture

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	ErrNoStream         = errors.New("no capture stream available")
	ErrNoFormat         = errors.New("no supported video format found for recording")
	ErrAlreadyRecording = errors.New("already recording")
	ErrNotRecording     = errors.New("not recording")
	ErrNothingRecorded  = errors.New("no video recorded")
	ErrFormatMismatch   = errors.New("recorded data does not match its MIME type")
)

// Clip is a finished recording.
type Clip struct {
	MimeType string
	Data     []byte
}

// Filename is the upload name for a clip finished at t.
func (c Clip) Filename(t time.Time) string {
	return fmt.Sprintf("recorded_video_%d.%s", t.UnixMilli(), Extension(c.MimeType))
}

// Validate checks that the data really is the container MimeType names.
func (c Clip) Validate() error {
	if len(c.Data) == 0 {
		return ErrNothingRecorded
	}
	want := container(c.MimeType)
	if got := SniffContainer(c.Data); got != want {
		if got == "" {
			got = "unknown data"
		}
		return fmt.Errorf("%w: labelled %s, found %s", ErrFormatMismatch, c.MimeType, got)
	}
	return nil
}

// ClipFromFile loads an existing .mp4 or .webm file as a clip. The file
// content must match its extension.
func ClipFromFile(path string) (Clip, error) {
	var mime string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4":
		mime = "video/mp4"
	case ".webm":
		mime = "video/webm"
	default:
		return Clip{}, fmt.Errorf("%s: %w", path, ErrNoFormat)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Clip{}, fmt.Errorf("read clip: %w", err)
	}
	clip := Clip{MimeType: mime, Data: data}
	if err := clip.Validate(); err != nil {
		return Clip{}, fmt.Errorf("%s: %w", path, err)
	}
	return clip, nil
}

// Recorder accumulates the container bytes a stream produces between
// Start and Stop.
type Recorder struct {
	mu        sync.Mutex
	stream    Stream
	mime      string
	chunks    [][]byte
	recording bool
}

// NewRecorder returns an idle recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Start begins recording stream as mime, which must be the format the
// stream encodes to. Chunks from a previous recording are discarded.
func (r *Recorder) Start(stream Stream, mime string) error {
	if stream == nil {
		return ErrNoStream
	}
	if mime == "" {
		return ErrNoFormat
	}
	if got := stream.MimeType(); got != mime {
		return fmt.Errorf("%w: stream encodes %s, asked for %s", ErrFormatMismatch, got, mime)
	}

	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		return ErrAlreadyRecording
	}
	r.stream = stream
	r.mime = mime
	r.chunks = nil
	r.recording = true
	r.mu.Unlock()

	// the stream may deliver chunks before Start returns
	if err := stream.Start(r.appendChunk); err != nil {
		r.mu.Lock()
		r.recording = false
		r.stream = nil
		r.mu.Unlock()
		return fmt.Errorf("start stream: %w", err)
	}
	log.Printf("capture: recording started (%s)", mime)
	return nil
}

func (r *Recorder) appendChunk(chunk []byte) {
	r.mu.Lock()
	r.chunks = append(r.chunks, chunk)
	r.mu.Unlock()
}

// Recording reports whether Start has been called without a matching Stop.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Stop finalizes the stream. Every chunk has been collected when it returns.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return ErrNotRecording
	}
	stream := r.stream
	r.mu.Unlock()

	stopErr := stream.Stop()

	r.mu.Lock()
	r.recording = false
	r.stream = nil
	size := 0
	for _, c := range r.chunks {
		size += len(c)
	}
	r.mu.Unlock()

	log.Printf("capture: recording stopped, %d bytes ready for upload", size)
	if stopErr != nil {
		return fmt.Errorf("stop stream: %w", stopErr)
	}
	return nil
}

// Clip returns the last finished recording. A recording whose bytes are
// not the container its MIME type names is refused.
func (r *Recorder) Clip() (Clip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return Clip{}, ErrAlreadyRecording
	}
	if len(r.chunks) == 0 {
		return Clip{}, ErrNothingRecorded
	}
	clip := Clip{MimeType: r.mime, Data: bytes.Join(r.chunks, nil)}
	if err := clip.Validate(); err != nil {
		return Clip{}, err
	}
	return clip, nil
}
