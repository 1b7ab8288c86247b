package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/KanavDutta/tokenfence/core"
	"github.com/KanavDutta/tokenfence/metrics"
	"github.com/KanavDutta/tokenfence/pkg/tokenfence"
	"github.com/KanavDutta/tokenfence/store"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{name: "Defaults", level: "", format: ""},
		{name: "Debug json", level: "debug", format: "json"},
		{name: "Upper case", level: "WARN", format: "TEXT"},
		{name: "Bad level", level: "loud", format: "text", wantErr: true},
		{name: "Bad format", level: "info", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := newLogger(&buf, tt.level, tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("newLogger() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			logger.Error("hello")
			if !strings.Contains(buf.String(), "hello") {
				t.Errorf("log output %q missing message", buf.String())
			}
		})
	}
}

func TestRunDemo(t *testing.T) {
	demoFlags.rate = 3
	demoFlags.interval = "1h"
	demoFlags.calls = 5
	demoFlags.pace = 1000
	demoFlags.work = 0

	var out bytes.Buffer
	if err := runDemo(context.Background(), &out, nil); err != nil {
		t.Fatalf("runDemo() failed: %v", err)
	}

	got := out.String()
	if n := strings.Count(got, "granted\n"); n != 3 {
		t.Errorf("granted lines = %d, want 3\n%s", n, got)
	}
	if n := strings.Count(got, "throttled\n"); n != 2 {
		t.Errorf("throttled lines = %d, want 2\n%s", n, got)
	}
	if !strings.Contains(got, "done: granted=3 throttled=2") {
		t.Errorf("missing summary:\n%s", got)
	}
}

func TestRunDemo_InvalidFlags(t *testing.T) {
	demoFlags.rate = 0
	demoFlags.interval = "second"
	demoFlags.calls = 1
	demoFlags.pace = 10

	if err := runDemo(context.Background(), &bytes.Buffer{}, nil); err == nil {
		t.Error("runDemo() with zero rate should fail")
	}

	demoFlags.rate = 1
	demoFlags.pace = 0
	if err := runDemo(context.Background(), &bytes.Buffer{}, nil); err == nil {
		t.Error("runDemo() with zero pace should fail")
	}
}

func TestNewServer(t *testing.T) {
	cfg := tokenfence.NewConfig()
	cfg.SetLimiter("api", tokenfence.LimiterConfig{TokensPerInterval: 2, Interval: core.Hour})
	cfg.SetLimiter("search", tokenfence.LimiterConfig{TokensPerInterval: 10, Interval: core.Second})

	registry, err := tokenfence.NewRegistry(cfg)
	if err != nil {
		t.Fatalf("NewRegistry() failed: %v", err)
	}

	if _, err := newServer(registry, metrics.NewRecorder(), metrics.NewPrometheus(nil), store.NewMemoryStore(0), nil, "nope"); err == nil {
		t.Error("newServer() with unknown guard should fail")
	}

	handler, err := newServer(registry, metrics.NewRecorder(), metrics.NewPrometheus(nil), store.NewMemoryStore(0), nil, "api")
	if err != nil {
		t.Fatalf("newServer() failed: %v", err)
	}

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}
}

func TestNewServer_Routes(t *testing.T) {
	cfg := tokenfence.NewConfig()
	cfg.SetLimiter("search", tokenfence.LimiterConfig{TokensPerInterval: 10, Interval: core.Second})

	registry, err := tokenfence.NewRegistry(cfg)
	if err != nil {
		t.Fatalf("NewRegistry() failed: %v", err)
	}

	handler, err := newServer(registry, metrics.NewRecorder(), metrics.NewPrometheus(nil), store.NewMemoryStore(0), nil, "")
	if err != nil {
		t.Fatalf("newServer() failed: %v", err)
	}

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{method: http.MethodGet, path: "/", want: http.StatusOK},
		{method: http.MethodGet, path: "/health", want: http.StatusOK},
		{method: http.MethodGet, path: "/stats", want: http.StatusOK},
		{method: http.MethodGet, path: "/stats/search/history", want: http.StatusOK},
		{method: http.MethodGet, path: "/metrics", want: http.StatusOK},
		{method: http.MethodPost, path: "/check", body: `{"limiter":"search"}`, want: http.StatusOK},
		{method: http.MethodPost, path: "/time", body: `{"limiter":"search","ms":5}`, want: http.StatusNoContent},
		{method: http.MethodGet, path: "/missing", want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
			if w.Code != tt.want {
				t.Errorf("Status = %d, want %d", w.Code, tt.want)
			}
		})
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	var health map[string]string
	json.NewDecoder(w.Body).Decode(&health)
	if health["service"] != "tokenfence" {
		t.Errorf("service = %q, want tokenfence", health["service"])
	}
}
