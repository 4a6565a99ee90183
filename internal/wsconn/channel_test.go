// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package wsconn

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func nextEvent(t *testing.T, c *Channel) Event {
	t.Helper()
	select {
	case ev := <-c.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for event")
		return Event{}
	}
}

func TestMessagesArriveInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, m := range []string{"one", "two", "three"} {
			conn.WriteMessage(websocket.TextMessage, []byte(m))
		}
		// hold the connection open until the client leaves
		conn.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := New(wsURL(srv))
	go ch.Run(ctx)

	if ev := nextEvent(t, ch); ev.Kind != Opened {
		t.Fatalf("Expected Opened, got %v", ev.Kind)
	}
	for _, want := range []string{"one", "two", "three"} {
		ev := nextEvent(t, ch)
		if ev.Kind != Message || string(ev.Data) != want {
			t.Fatalf("Expected message %q, got %v %q", want, ev.Kind, ev.Data)
		}
	}
	if !ch.IsOpen() {
		t.Error("channel should report open")
	}
}

func TestReconnectsAfterServerClose(t *testing.T) {
	var connections int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		n := atomic.AddInt32(&connections, 1)
		if n == 1 {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "restart"))
			conn.Close()
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte("back"))
		conn.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := New(wsURL(srv), WithReconnectDelay(20*time.Millisecond))
	go ch.Run(ctx)

	kinds := []EventKind{Opened, Closed, Opened, Message}
	for i, want := range kinds {
		ev := nextEvent(t, ch)
		if ev.Kind != want {
			t.Fatalf("event %d: expected %v, got %v", i, want, ev.Kind)
		}
	}
	if got := atomic.LoadInt32(&connections); got != 2 {
		t.Errorf("Expected 2 connections, got %d", got)
	}
}

func TestDialFailureSchedulesRetry(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := New(url, WithReconnectDelay(10*time.Millisecond))
	go ch.Run(ctx)

	for i := 0; i < 3; i++ {
		ev := nextEvent(t, ch)
		if ev.Kind != Closed || ev.Err == nil {
			t.Fatalf("attempt %d: expected Closed with error, got %v %v", i, ev.Kind, ev.Err)
		}
	}
	if ch.Attempts() < 3 {
		t.Errorf("Expected at least 3 attempts, got %d", ch.Attempts())
	}
}

func TestSendRequiresOpenConnection(t *testing.T) {
	ch := New("ws://127.0.0.1:1/ws")
	if err := ch.Send([]byte("x")); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Expected ErrNotOpen, got %v", err)
	}
}

func TestSendReachesServer(t *testing.T) {
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, data, err := conn.ReadMessage()
		if err == nil {
			received <- string(data)
		}
		conn.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := New(wsURL(srv))
	go ch.Run(ctx)

	if ev := nextEvent(t, ch); ev.Kind != Opened {
		t.Fatalf("Expected Opened, got %v", ev.Kind)
	}
	if err := ch.Send([]byte(`{"x":1}`)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case got := <-received:
		if got != `{"x":1}` {
			t.Errorf("server got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for server to receive")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := New(wsURL(srv))
	done := make(chan error, 1)
	go func() { done <- ch.Run(ctx) }()

	if ev := nextEvent(t, ch); ev.Kind != Opened {
		t.Fatalf("Expected Opened, got %v", ev.Kind)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if ch.IsOpen() {
		t.Error("channel should be closed after Run returns")
	}
}

// stalledServer upgrades and then never reads, so client writes pile up
// until the socket buffers are full.
func stalledServer(t *testing.T) *httptest.Server {
	t.Helper()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })
	return srv
}

// flood sends large frames until Send fails and reports that error.
func flood(ch *Channel) <-chan error {
	failed := make(chan error, 1)
	payload := []byte(strings.Repeat("x", 1<<20))
	go func() {
		for {
			if err := ch.Send(payload); err != nil {
				failed <- err
				return
			}
		}
	}()
	return failed
}

func TestSendTimesOutOnStalledPeer(t *testing.T) {
	srv := stalledServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := New(wsURL(srv), WithWriteTimeout(200*time.Millisecond))
	go ch.Run(ctx)

	if ev := nextEvent(t, ch); ev.Kind != Opened {
		t.Fatalf("Expected Opened, got %v", ev.Kind)
	}

	select {
	case err := <-flood(ch):
		if errors.Is(err, ErrNotOpen) {
			t.Errorf("Expected a write error, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Send kept blocking on a peer that does not read")
	}
}

func TestCancelDoesNotWaitForBlockedSend(t *testing.T) {
	srv := stalledServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	ch := New(wsURL(srv), WithWriteTimeout(time.Minute))
	done := make(chan error, 1)
	go func() { done <- ch.Run(ctx) }()

	if ev := nextEvent(t, ch); ev.Kind != Opened {
		t.Fatalf("Expected Opened, got %v", ev.Kind)
	}
	failed := flood(ch)
	time.Sleep(300 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return while a Send was blocked")
	}
	select {
	case <-failed:
	case <-time.After(3 * time.Second):
		t.Fatal("blocked Send was not released by the close")
	}
}
