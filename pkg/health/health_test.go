package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func reachable(context.Context) error { return nil }

func unreachable(msg string) Pinger {
	return func(context.Context) error { return errors.New(msg) }
}

func TestRunAggregatesDependencies(t *testing.T) {
	tests := []struct {
		name     string
		required map[string]Pinger
		optional map[string]Pinger
		want     Status
	}{
		{"engine up", map[string]Pinger{"engine": reachable}, nil, StatusUp},
		{"redis down", map[string]Pinger{"engine": reachable}, map[string]Pinger{"redis": unreachable("refused")}, StatusDegraded},
		{"engine down", map[string]Pinger{"engine": unreachable("closed")}, map[string]Pinger{"redis": unreachable("refused")}, StatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(0)
			for name, p := range tt.required {
				c.Require(name, p)
			}
			for name, p := range tt.optional {
				c.Optional(name, p)
			}
			report := c.Run(context.Background())
			if report.Status != tt.want {
				t.Errorf("status = %s, want %s", report.Status, tt.want)
			}
			if len(report.Dependencies) != len(tt.required)+len(tt.optional) {
				t.Errorf("dependencies = %v", report.Dependencies)
			}
			for name := range tt.required {
				if !report.Dependencies[name].Required {
					t.Errorf("%s not marked required", name)
				}
			}
		})
	}
}

func TestPingTimeout(t *testing.T) {
	c := NewChecker(20 * time.Millisecond)
	c.Optional("postgres", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	start := time.Now()
	report := c.Run(context.Background())
	if time.Since(start) > time.Second {
		t.Fatal("ping was not bounded by the checker timeout")
	}
	dep := report.Dependencies["postgres"]
	if dep.Status != StatusDegraded || dep.Error == "" {
		t.Errorf("postgres = %+v", dep)
	}
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker(0)
	c.Optional("redis", unreachable("refused"))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest("GET", "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("degraded readiness code = %d", rec.Code)
	}
	var report Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.Status != StatusDegraded || report.Dependencies["redis"].Error != "refused" {
		t.Errorf("report = %+v", report)
	}

	c.Require("engine", unreachable("closed"))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest("GET", "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("down readiness code = %d", rec.Code)
	}
}

func TestLiveHandler(t *testing.T) {
	c := NewChecker(0)
	c.Require("engine", unreachable("closed"))
	rec := httptest.NewRecorder()
	c.LiveHandler()(rec, httptest.NewRequest("GET", "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("live code = %d", rec.Code)
	}
}
