// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package capture

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// FlushTimeout bounds how long Stop waits for the muxer to finish the
// container after end-of-stream.
const FlushTimeout = 5 * time.Second

// ErrFlushTimeout is returned by Stop when end-of-stream never reached the
// bus.
var ErrFlushTimeout = errors.New("timed out waiting for end of stream")

var gstInit sync.Once

func initGStreamer() {
	gstInit.Do(func() { gst.Init(nil) })
}

// source is the element feeding the video branch.
type source struct {
	factory string
	props   map[string]interface{}
}

func v4l2Source(device string) source {
	return source{factory: "v4l2src", props: map[string]interface{}{"device": device}}
}

// ProfileAvailable reports whether every GStreamer element needed to record
// mime from a V4L2 camera is installed.
func ProfileAvailable(mime string) bool {
	p, ok := ProfileFor(mime)
	if !ok {
		return false
	}
	initGStreamer()
	for _, name := range append([]string{"v4l2src", "appsink"}, p.Factories()...) {
		if _, err := gst.NewElement(name); err != nil {
			return false
		}
	}
	return true
}

// PipelineStream encodes a camera through
//
//	v4l2src ! videoconvert ! <encoder> [! capsfilter] [! parser] ! <muxer> ! appsink
//
// with an optional audio branch into the same muxer. The appsink hands the
// muxed container bytes to the recorder.
type PipelineStream struct {
	device  string
	profile Profile

	pipeline *gst.Pipeline
	sink     *app.Sink

	mu      sync.Mutex
	playing bool
	closed  bool
}

// OpenPipeline builds the pipeline for mime and opens device. The device
// is opened by moving the pipeline to READY, so a missing or busy camera
// fails here and OpenStream can move on to the next one.
func OpenPipeline(device, mime string) (Stream, error) {
	p, ok := ProfileFor(mime)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoFormat, mime)
	}
	s, err := newPipelineStream(v4l2Source(device), p)
	if err != nil {
		return nil, err
	}
	s.device = device
	if err := s.pipeline.SetState(gst.StateReady); err != nil {
		s.pipeline.SetState(gst.StateNull)
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	return s, nil
}

func newPipelineStream(src source, p Profile) (*PipelineStream, error) {
	initGStreamer()

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	videoSrc, err := gst.NewElement(src.factory)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", src.factory, err)
	}
	for k, v := range src.props {
		videoSrc.SetProperty(k, v)
	}

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}

	encoder, err := gst.NewElement(p.VideoEncoder)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", p.VideoEncoder, err)
	}
	switch p.VideoEncoder {
	case "vp8enc", "vp9enc":
		encoder.SetProperty("deadline", int64(1)) // realtime
	case "x264enc":
		encoder.SetProperty("tune", 4)         // zerolatency
		encoder.SetProperty("speed-preset", 1) // ultrafast
	}

	muxer, err := gst.NewElement(p.Muxer)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", p.Muxer, err)
	}
	// appsink cannot seek, so the muxer must never rewrite earlier bytes
	switch p.Muxer {
	case "webmmux":
		muxer.SetProperty("streamable", true)
	case "mp4mux":
		muxer.SetProperty("fragment-duration", uint(1000))
	}

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	// every buffer is part of the file, so nothing may be dropped
	appsink.SetProperty("sync", false)

	video := []*gst.Element{videoSrc, converter, encoder}
	if p.VideoCaps != "" {
		capsfilter, err := gst.NewElement("capsfilter")
		if err != nil {
			return nil, fmt.Errorf("failed to create capsfilter: %w", err)
		}
		capsfilter.SetProperty("caps", gst.NewCapsFromString(p.VideoCaps))
		video = append(video, capsfilter)
	}
	if p.VideoParser != "" {
		parser, err := gst.NewElement(p.VideoParser)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", p.VideoParser, err)
		}
		video = append(video, parser)
	}
	video = append(video, muxer, appsink.Element)

	if err := pipeline.AddMany(video...); err != nil {
		return nil, fmt.Errorf("failed to add video elements: %w", err)
	}
	if err := gst.ElementLinkMany(video...); err != nil {
		return nil, fmt.Errorf("failed to link video elements: %w", err)
	}

	if p.HasAudio() {
		audio := make([]*gst.Element, 0, 5)
		for _, name := range []string{p.AudioSource, "audioconvert", "audioresample", p.AudioEncoder} {
			elem, err := gst.NewElement(name)
			if err != nil {
				return nil, fmt.Errorf("failed to create %s: %w", name, err)
			}
			audio = append(audio, elem)
		}
		if err := pipeline.AddMany(audio...); err != nil {
			return nil, fmt.Errorf("failed to add audio elements: %w", err)
		}
		// the muxer hands out a new request pad for the audio track
		if err := gst.ElementLinkMany(append(audio, muxer)...); err != nil {
			return nil, fmt.Errorf("failed to link audio elements: %w", err)
		}
	}

	return &PipelineStream{profile: p, pipeline: pipeline, sink: appsink}, nil
}

// Device returns the camera the pipeline reads.
func (s *PipelineStream) Device() string { return s.device }

// MimeType returns the format the muxer produces.
func (s *PipelineStream) MimeType() string { return s.profile.MimeType }

// Start sets the pipeline playing. Muxed buffers reach onChunk from the
// streaming thread.
func (s *PipelineStream) Start(onChunk func([]byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNoStream
	}
	if s.playing {
		return ErrAlreadyRecording
	}

	s.sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(sink *app.Sink) gst.FlowReturn {
			return pullChunk(sink, onChunk)
		},
	})
	if err := s.pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("start %s: %w", s.device, err)
	}
	s.playing = true
	return nil
}

// pullChunk copies one muxed buffer out of the appsink. GStreamer reuses
// the buffer memory once it is unmapped.
func pullChunk(sink *app.Sink, onChunk func([]byte)) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		return gst.FlowOK
	}
	chunk := make([]byte, len(data))
	copy(chunk, data)
	buffer.Unmap()

	onChunk(chunk)
	return gst.FlowOK
}

// Stop sends end-of-stream so the muxer can finish the container, waits
// for it to reach the bus and then tears the pipeline down.
func (s *PipelineStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing {
		return ErrNotRecording
	}
	s.playing = false

	s.pipeline.SendEvent(gst.NewEOSEvent())
	err := s.waitEOS(FlushTimeout)
	s.teardown()
	return err
}

// waitEOS drains the bus until end-of-stream or an error.
func (s *PipelineStream) waitEOS(timeout time.Duration) error {
	bus := s.pipeline.GetPipelineBus()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageEOS:
			return nil
		case gst.MessageError:
			gerr := msg.ParseError()
			log.Printf("capture: pipeline error on %s: %s (%s)", s.device, gerr.Error(), gerr.DebugString())
			return fmt.Errorf("%s: %s", s.device, gerr.Error())
		case gst.MessageWarning:
			gerr := msg.ParseWarning()
			log.Printf("capture: pipeline warning on %s: %s", s.device, gerr.Error())
		}
	}
	return fmt.Errorf("%s: %w", s.device, ErrFlushTimeout)
}

// Close releases the camera without finishing the container.
func (s *PipelineStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	s.teardown()
	return nil
}

func (s *PipelineStream) teardown() {
	if s.closed {
		return
	}
	s.closed = true
	s.pipeline.SetState(gst.StateNull)
}
