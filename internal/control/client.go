// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package control drives the acquisition lifecycle on the server.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// HTTPError is a non-2xx response. Detail is the server's "detail" field
// when it sent one.
type HTTPError struct {
	Op     string
	Status int
	Detail string
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: server returned %d", e.Op, e.Status)
}

// Response is the union of the JSON bodies the server answers with.
type Response struct {
	Status   string `json:"status,omitempty"`
	Filename string `json:"filename,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Client calls /start, /stop and /save and tracks whether an acquisition
// is running from this client's point of view.
type Client struct {
	baseURL string
	http    *http.Client
	running atomic.Bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New returns a client for the server at baseURL (http://host:port).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server address the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// HTTPClient returns the underlying HTTP client.
func (c *Client) HTTPClient() *http.Client { return c.http }

// Running reports whether Start was called more recently than Stop.
func (c *Client) Running() bool { return c.running.Load() }

// Start marks the acquisition as running and asks the server to start.
// The flag is set before the request so motion publishing begins at once.
func (c *Client) Start(ctx context.Context) (string, error) {
	c.running.Store(true)
	resp, err := c.post(ctx, "start")
	if err != nil {
		return "", err
	}
	log.Printf("control: acquisition started: %s", resp.Status)
	return resp.Status, nil
}

// Stop clears the running flag and asks the server to stop.
func (c *Client) Stop(ctx context.Context) (string, error) {
	c.running.Store(false)
	resp, err := c.post(ctx, "stop")
	if err != nil {
		return "", err
	}
	log.Printf("control: acquisition stopped: %s", resp.Status)
	return resp.Status, nil
}

// Save asks the server to persist the collected data and returns the file
// name it chose.
func (c *Client) Save(ctx context.Context) (string, error) {
	resp, err := c.post(ctx, "save")
	if err != nil {
		return "", err
	}
	log.Printf("control: data saved to %s", resp.Filename)
	return resp.Filename, nil
}

func (c *Client) post(ctx context.Context, op string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+op, nil)
	if err != nil {
		return Response{}, fmt.Errorf("%s: build request: %w", op, err)
	}
	return Do(c.http, req, op)
}

// Do sends req and decodes the JSON response. Non-2xx statuses become
// *HTTPError.
func Do(h *http.Client, req *http.Request, op string) (Response, error) {
	resp, err := h.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Response{}, fmt.Errorf("%s: read response: %w", op, err)
	}

	var out Response
	decodeErr := json.Unmarshal(body, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Response{}, &HTTPError{Op: op, Status: resp.StatusCode, Detail: out.Detail}
	}
	if decodeErr != nil {
		return Response{}, fmt.Errorf("%s: decode response: %w", op, decodeErr)
	}
	return out, nil
}
