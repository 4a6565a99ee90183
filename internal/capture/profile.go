// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package capture

// Profile is the GStreamer element chain producing one MIME type.
type Profile struct {
	MimeType string

	// Video branch: source ! videoconvert ! VideoEncoder [! VideoCaps] [! VideoParser] ! Muxer
	VideoEncoder string
	VideoCaps    string
	VideoParser  string

	// Audio branch, empty for video-only formats:
	// AudioSource ! audioconvert ! audioresample ! AudioEncoder ! Muxer
	AudioSource  string
	AudioEncoder string

	Muxer string
}

var profiles = map[string]Profile{
	"video/webm;codecs=vp9,opus": {
		VideoEncoder: "vp9enc",
		AudioSource:  "autoaudiosrc",
		AudioEncoder: "opusenc",
		Muxer:        "webmmux",
	},
	"video/webm;codecs=vp8,opus": {
		VideoEncoder: "vp8enc",
		AudioSource:  "autoaudiosrc",
		AudioEncoder: "opusenc",
		Muxer:        "webmmux",
	},
	"video/webm": {
		VideoEncoder: "vp8enc",
		Muxer:        "webmmux",
	},
	// avc1.42E01E is constrained baseline, mp4a.40.2 is AAC-LC
	"video/mp4;codecs=avc1.42E01E,mp4a.40.2": {
		VideoEncoder: "x264enc",
		VideoCaps:    "video/x-h264,profile=constrained-baseline",
		VideoParser:  "h264parse",
		AudioSource:  "autoaudiosrc",
		AudioEncoder: "avenc_aac",
		Muxer:        "mp4mux",
	},
	"video/mp4": {
		VideoEncoder: "x264enc",
		VideoParser:  "h264parse",
		Muxer:        "mp4mux",
	},
}

// ProfileFor returns the element chain for mime.
func ProfileFor(mime string) (Profile, bool) {
	p, ok := profiles[mime]
	if !ok {
		return Profile{}, false
	}
	p.MimeType = mime
	return p, true
}

// HasAudio reports whether the profile muxes an audio track.
func (p Profile) HasAudio() bool { return p.AudioEncoder != "" }

// Container is the container the muxer writes, "webm" or "mp4".
func (p Profile) Container() string { return container(p.MimeType) }

// Factories lists every element factory the profile needs besides the
// video source and the appsink.
func (p Profile) Factories() []string {
	names := []string{"videoconvert", p.VideoEncoder}
	if p.VideoCaps != "" {
		names = append(names, "capsfilter")
	}
	if p.VideoParser != "" {
		names = append(names, p.VideoParser)
	}
	if p.HasAudio() {
		names = append(names, p.AudioSource, "audioconvert", "audioresample", p.AudioEncoder)
	}
	return append(names, p.Muxer)
}

// VideoOnly reports whether mime records without an audio track.
func VideoOnly(mime string) bool {
	p, ok := ProfileFor(mime)
	return ok && !p.HasAudio()
}
