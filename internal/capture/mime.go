// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package capture records clips from a V4L2 camera through a GStreamer
// encoding pipeline and uploads them to the acquisition server.
package capture

import (
	"bytes"
	"log"
	"strings"
)

// mimeCandidates are tried in order of preference.
var mimeCandidates = []string{
	"video/webm;codecs=vp9,opus",
	"video/webm;codecs=vp8,opus",
	"video/webm",
	"video/mp4;codecs=avc1.42E01E,mp4a.40.2",
	"video/mp4",
}

// MimeCandidates returns the recording formats in order of preference.
func MimeCandidates() []string {
	out := make([]string, len(mimeCandidates))
	copy(out, mimeCandidates)
	return out
}

// SupportedMimeType returns the first candidate accepted by supported, or
// "" when none is.
func SupportedMimeType(supported func(string) bool) string {
	for _, m := range mimeCandidates {
		if supported(m) {
			log.Printf("capture: supported MIME type found: %s", m)
			return m
		}
	}
	log.Printf("capture: no supported MIME type found")
	return ""
}

// SupportedContainers returns a predicate accepting MIME types whose
// container (the part after "video/", before any parameters) is listed.
func SupportedContainers(containers ...string) func(string) bool {
	set := make(map[string]bool, len(containers))
	for _, c := range containers {
		set[strings.ToLower(strings.TrimSpace(c))] = true
	}
	return func(mime string) bool {
		return set[container(mime)]
	}
}

func container(mime string) string {
	base, _, _ := strings.Cut(mime, ";")
	_, sub, ok := strings.Cut(strings.TrimSpace(base), "/")
	if !ok {
		return ""
	}
	return strings.ToLower(sub)
}

// Extension is the file extension used when uploading a clip of this type.
func Extension(mime string) string {
	if strings.Contains(mime, "mp4") {
		return "mp4"
	}
	return "webm"
}

var ebmlMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}

// SniffContainer names the container data starts with: "webm" for an EBML
// header, "mp4" for an ISO BMFF ftyp box, "" for anything else.
func SniffContainer(data []byte) string {
	switch {
	case bytes.HasPrefix(data, ebmlMagic):
		return "webm"
	case len(data) >= 8 && string(data[4:8]) == "ftyp":
		return "mp4"
	default:
		return ""
	}
}
