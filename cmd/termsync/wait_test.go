package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/loykin/termsync/internal/httpc"
)

func TestWait_PollsUntilAlive(t *testing.T) {
	var calls int32
	// Server returns 503 for the first 3 calls, then 200
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := DoWait(context.Background(), WaitConfig{URL: srv.URL + "/health", Timeout: "2s", Interval: "20ms"}, httpc.Options{})
	if err != nil {
		t.Fatalf("DoWait: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got < 4 {
		t.Fatalf("expected at least 4 calls, got %d", got)
	}
}

func TestWait_HeadAndCustomStatus(t *testing.T) {
	var method atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method.Store(r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := DoWait(context.Background(), WaitConfig{URL: srv.URL, Method: "head", Status: 204, Timeout: "1s", Interval: "10ms"}, httpc.Options{})
	if err != nil {
		t.Fatalf("DoWait: %v", err)
	}
	if method.Load() != http.MethodHead {
		t.Fatalf("method = %v", method.Load())
	}
}

func TestWait_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := DoWait(context.Background(), WaitConfig{URL: srv.URL, Timeout: "100ms", Interval: "20ms"}, httpc.Options{})
	if err == nil || !strings.Contains(err.Error(), "last=502") {
		t.Fatalf("err = %v", err)
	}
}

func TestWait_ContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := DoWait(ctx, WaitConfig{URL: srv.URL, Timeout: "10s", Interval: "1s"}, httpc.Options{})
	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestWait_NoURLIsNoop(t *testing.T) {
	if err := DoWait(context.Background(), WaitConfig{}, httpc.Options{}); err != nil {
		t.Fatal(err)
	}
}

func TestParseWaitConfig_Defaults(t *testing.T) {
	p := parseWaitConfig(WaitConfig{URL: " http://x ", Timeout: "bogus"})
	if p.method != http.MethodGet || p.expected != http.StatusOK || p.timeout != defaultWaitTimeout || p.interval != defaultWaitInterval || p.url != "http://x" {
		t.Fatalf("params = %+v", p)
	}
}
