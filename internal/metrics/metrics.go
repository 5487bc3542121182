// Package metrics defines the Prometheus metrics for the meokten API and
// the chi middleware that records them.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "meokten_api_build_info",
			Help: "Build information of the meokten API",
		},
		[]string{"version", "commit", "date"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meokten_api_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meokten_api_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "meokten_api_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	AgentRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meokten_agent_runs_total",
			Help: "Total number of agent runs by outcome",
		},
		[]string{"outcome"},
	)

	AgentRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "meokten_agent_run_duration_seconds",
			Help:    "Duration of a full agent run in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	AgentRunMessages = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "meokten_agent_run_messages",
			Help:    "Conversation length of a completed agent run",
			Buckets: prometheus.LinearBuckets(5, 5, 6),
		},
	)

	LLMCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meokten_llm_calls_total",
			Help: "Total number of LLM completions by stage",
		},
		[]string{"stage"},
	)

	QueryExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meokten_query_executions_total",
			Help: "Total number of gated SQL executions by status",
		},
		[]string{"status"},
	)
)

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use the route pattern if available, otherwise the raw path.
		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}

		status := strconv.Itoa(ww.Status())
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}
