// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTimeout_NormalRequest(t *testing.T) {
	handler := Timeout(5 * time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Custom-Header", "test-value")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))

	if rr.Code != http.StatusCreated {
		t.Errorf("Status = %d, want %d", rr.Code, http.StatusCreated)
	}
	if body := rr.Body.String(); body != "created" {
		t.Errorf("Body = %q, want %q", body, "created")
	}
	if h := rr.Header().Get("X-Custom-Header"); h != "test-value" {
		t.Errorf("X-Custom-Header = %q, want %q", h, "test-value")
	}
}

func TestTimeout_SlowRequest(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan error, 1)
	handler := Timeout(50 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, err := w.Write([]byte("too late"))
		finished <- err
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("Status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}

	close(release)
	select {
	case err := <-finished:
		if !errors.Is(err, http.ErrHandlerTimeout) {
			t.Errorf("late Write() error = %v, want ErrHandlerTimeout", err)
		}
	case <-time.After(time.Second):
		t.Fatal("handler did not finish")
	}
	if body := rr.Body.String(); body != "Request timeout" {
		t.Errorf("Body = %q, want %q", body, "Request timeout")
	}
}

func TestTimeout_PropagatesPanic(t *testing.T) {
	handler := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	defer func() {
		if p := recover(); p != "boom" {
			t.Errorf("recover() = %v, want boom", p)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestTimeoutWriter_WriteHeaderOnce(t *testing.T) {
	rr := httptest.NewRecorder()
	tw := &timeoutWriter{ResponseWriter: rr}

	tw.WriteHeader(http.StatusOK)
	tw.WriteHeader(http.StatusNotFound)

	if rr.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestTimeoutWriter_WriteImpliesOK(t *testing.T) {
	rr := httptest.NewRecorder()
	tw := &timeoutWriter{ResponseWriter: rr}

	n, err := tw.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != 5 {
		t.Errorf("Write() = %d, want 5", n)
	}
	if !tw.wroteHeader {
		t.Error("wroteHeader = false after Write")
	}
}
