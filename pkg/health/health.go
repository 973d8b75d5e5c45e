// Package health reports whether searchd can serve queries. The in-memory
// engine is required; the remote cache, document store and change feed are
// optional, and losing one of them only degrades the replica because search
// keeps answering from memory.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// Pinger reports an error when a dependency cannot be reached.
type Pinger func(ctx context.Context) error

// Dependency is the outcome of pinging one registered dependency.
type Dependency struct {
	Status   Status `json:"status"`
	Required bool   `json:"required"`
	Error    string `json:"error,omitempty"`
	Latency  string `json:"latency"`
}

// Report is served by the readiness endpoint.
type Report struct {
	Status       Status                `json:"status"`
	Dependencies map[string]Dependency `json:"dependencies"`
	Uptime       string                `json:"uptime"`
	CheckedAt    time.Time             `json:"checkedAt"`
}

type dependency struct {
	ping     Pinger
	required bool
}

// Checker holds the dependencies of one searchd process.
type Checker struct {
	mu      sync.RWMutex
	deps    map[string]dependency
	timeout time.Duration
	started time.Time
	logger  *slog.Logger
}

// NewChecker bounds every ping by timeout; zero means two seconds.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{
		deps:    make(map[string]dependency),
		timeout: timeout,
		started: time.Now(),
		logger:  slog.Default().With("component", "health"),
	}
}

// Require registers a dependency whose failure takes the replica out of
// rotation.
func (c *Checker) Require(name string, ping Pinger) { c.register(name, ping, true) }

// Optional registers a dependency whose failure marks the replica degraded.
func (c *Checker) Optional(name string, ping Pinger) { c.register(name, ping, false) }

func (c *Checker) register(name string, ping Pinger, required bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deps[name] = dependency{ping: ping, required: required}
}

// Run pings every dependency in parallel. A failed required dependency makes
// the report down; a failed optional one makes it degraded.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	deps := make(map[string]dependency, len(c.deps))
	for name, d := range c.deps {
		deps[name] = d
	}
	c.mu.RUnlock()

	results := make(map[string]Dependency, len(deps))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, d := range deps {
		wg.Go(func() {
			res := c.ping(ctx, d)
			if res.Status != StatusUp {
				c.logger.Warn("dependency unhealthy", "dependency", name, "required", d.required, "error", res.Error)
			}
			mu.Lock()
			results[name] = res
			mu.Unlock()
		})
	}
	wg.Wait()

	report := Report{
		Status:       StatusUp,
		Dependencies: results,
		Uptime:       time.Since(c.started).Round(time.Second).String(),
		CheckedAt:    time.Now().UTC(),
	}
	for _, res := range results {
		if res.Status == StatusDown {
			report.Status = StatusDown
			break
		}
		if res.Status == StatusDegraded {
			report.Status = StatusDegraded
		}
	}
	return report
}

func (c *Checker) ping(ctx context.Context, d dependency) Dependency {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	start := time.Now()
	err := d.ping(ctx)
	res := Dependency{
		Status:   StatusUp,
		Required: d.required,
		Latency:  time.Since(start).Round(time.Millisecond).String(),
	}
	if err != nil {
		res.Error = err.Error()
		res.Status = StatusDegraded
		if d.required {
			res.Status = StatusDown
		}
	}
	return res
}

// LiveHandler answers as long as the process can serve HTTP.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status": "alive",
			"uptime": time.Since(c.started).Round(time.Second).String(),
		})
	}
}

// ReadyHandler fails with 503 only when a required dependency is down.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if report.Status == StatusDown {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(report)
	}
}
