// Package server assembles the HTTP surface of searchd: API routes, health
// endpoints and the middleware chain.
package server

import (
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/server/handler"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/middleware"
)

// NewRouter builds the full handler.
//
// Middleware chain (outermost first):
//
//	RequestID → CORS → RateLimit → Timeout → Metrics → mux
//
// Metrics sits inside the timeout so it sees the mux pattern of the request
// it measures. limiter and m may be nil.
func NewRouter(h *handler.Handler, checker *health.Checker, cfg config.ServerConfig, limiter *middleware.Limiter, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	if cfg.RequestTimeout > 0 {
		chain = middleware.Timeout(cfg.RequestTimeout)(chain)
	}
	if limiter != nil {
		chain = middleware.RateLimit(limiter)(chain)
	}
	if len(cfg.CORSOrigins) > 0 {
		cors := middleware.DefaultCORSConfig()
		cors.AllowOrigins = cfg.CORSOrigins
		chain = middleware.CORS(cors)(chain)
	}
	chain = middleware.RequestID(chain)
	return chain
}
