// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package control

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, calls *[]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		*calls = append(*calls, r.Method+" /start")
		w.Write([]byte(`{"status":"Acquisition started"}`))
	})
	mux.HandleFunc("/stop", func(w http.ResponseWriter, r *http.Request) {
		*calls = append(*calls, r.Method+" /stop")
		w.Write([]byte(`{"status":"Acquisition stopped"}`))
	})
	mux.HandleFunc("/save", func(w http.ResponseWriter, r *http.Request) {
		*calls = append(*calls, r.Method+" /save")
		w.Write([]byte(`{"status":"Data saved","filename":"sensor_data_1700000000.json"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLifecycle(t *testing.T) {
	var calls []string
	srv := newTestServer(t, &calls)
	c := New(srv.URL + "/")
	ctx := context.Background()

	if c.Running() {
		t.Fatal("new client should not be running")
	}

	status, err := c.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if status != "Acquisition started" || !c.Running() {
		t.Errorf("Start: status=%q running=%v", status, c.Running())
	}

	filename, err := c.Save(ctx)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if filename != "sensor_data_1700000000.json" {
		t.Errorf("Save: filename=%q", filename)
	}

	status, err = c.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if status != "Acquisition stopped" || c.Running() {
		t.Errorf("Stop: status=%q running=%v", status, c.Running())
	}

	want := []string{"POST /start", "POST /save", "POST /stop"}
	if len(calls) != len(want) {
		t.Fatalf("Expected calls %v, got %v", want, calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d: expected %q, got %q", i, want[i], calls[i])
		}
	}
}

func TestServerErrorCarriesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"An error occurred while saving data."}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Save(context.Background())
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("Expected *HTTPError, got %v", err)
	}
	if httpErr.Status != 500 || httpErr.Detail != "An error occurred while saving data." {
		t.Errorf("unexpected error %+v", httpErr)
	}
}

func TestStartSetsFlagEvenWhenServerFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.Start(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if !c.Running() {
		t.Error("running flag should be set before the request")
	}
}

func TestMalformedSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	if _, err := New(srv.URL).Stop(context.Background()); err == nil {
		t.Error("expected decode error")
	}
}
