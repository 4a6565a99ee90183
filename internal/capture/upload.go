// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package capture

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/relabs-tech/motion_telemetry/internal/control"
)

// Uploader posts clips to /upload_video.
type Uploader struct {
	baseURL string
	http    *http.Client
	now     func() time.Time
}

// NewUploader returns an uploader for the server at baseURL. A nil client
// uses http.DefaultClient.
func NewUploader(baseURL string, h *http.Client) *Uploader {
	if h == nil {
		h = http.DefaultClient
	}
	return &Uploader{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    h,
		now:     time.Now,
	}
}

// Upload sends clip as multipart field "file" and returns the name the
// server stored it under. Clips that are not the container their MIME type
// names are refused. Failures are not retried.
func (u *Uploader) Upload(ctx context.Context, clip Clip) (string, error) {
	if err := clip.Validate(); err != nil {
		return "", err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, clip.Filename(u.now())))
	h.Set("Content-Type", clip.MimeType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("upload: create part: %w", err)
	}
	if _, err := part.Write(clip.Data); err != nil {
		return "", fmt.Errorf("upload: write part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("upload: close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+"/upload_video", &body)
	if err != nil {
		return "", fmt.Errorf("upload: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := control.Do(u.http, req, "upload")
	if err != nil {
		return "", err
	}
	log.Printf("capture: video uploaded as %s", resp.Filename)
	return resp.Filename, nil
}
