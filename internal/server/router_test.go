package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/server/handler"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/middleware"
)

func newTestServer(t *testing.T, limiter *middleware.Limiter) (*httptest.Server, *engine.Engine, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	eng, err := engine.New(config.DefaultEngineConfig(), engine.WithMetrics(m))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { eng.Close() })

	checker := health.NewChecker(0)
	checker.Require("engine", eng.Ping)
	h := handler.New(eng, config.SearchConfig{DefaultLimit: 10, MaxResults: 100, Timeout: time.Second})
	cfg := config.ServerConfig{RequestTimeout: 5 * time.Second, CORSOrigins: []string{"*"}}
	srv := httptest.NewServer(NewRouter(h, checker, cfg, limiter, m))
	t.Cleanup(srv.Close)
	return srv, eng, m
}

func TestRouterEndToEnd(t *testing.T) {
	srv, eng, m := newTestServer(t, nil)
	if err := eng.IngestDocument(context.Background(), "1", "Electric Cars", "electric cars are efficient"); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(srv.URL + "/api/v1/search?q=electric")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("search = %d", resp.StatusCode)
	}
	if resp.Header.Get(middleware.RequestIDHeader) == "" {
		t.Error("response lacks request id")
	}

	resp, err = http.Get(srv.URL + "/health/ready")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ready = %d", resp.StatusCode)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `path="GET /api/v1/search"`) {
		t.Error("request not recorded under its route pattern")
	}

	eng.Close()
	resp, err = http.Get(srv.URL + "/health/ready")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("ready after close = %d", resp.StatusCode)
	}
}

func TestRouterRateLimits(t *testing.T) {
	srv, _, _ := newTestServer(t, middleware.NewLimiter(2, time.Minute))
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := http.Get(srv.URL + "/api/v1/autocomplete?prefix=a")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}
}
