// Package metrics holds the Prometheus collectors of the recording service
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upload outcomes
const (
	OutcomeStored    = "stored"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	Uploads           *prometheus.CounterVec
	UploadBytes       prometheus.Counter
	SessionsIssued    prometheus.Counter
	ScriptsServed     *prometheus.CounterVec
	ScriptCacheHits   prometheus.Counter
	ScriptCacheMisses prometheus.Counter
	FeedClients       prometheus.Gauge
}

// New registers every collector on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebank_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voicebank_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Uploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebank_uploads_total",
			Help: "Recording uploads by outcome",
		}, []string{"outcome"}),
		UploadBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "voicebank_upload_bytes_total",
			Help: "Audio bytes stored",
		}),
		SessionsIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "voicebank_sessions_issued_total",
			Help: "Recording sessions issued",
		}),
		ScriptsServed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebank_scripts_served_total",
			Help: "Scripts handed out by tier",
		}, []string{"tier"}),
		ScriptCacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "voicebank_script_cache_hits_total",
			Help: "Script cache hits",
		}),
		ScriptCacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "voicebank_script_cache_misses_total",
			Help: "Script cache misses",
		}),
		FeedClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "voicebank_feed_clients",
			Help: "Connected recording feed clients",
		}),
	}
}

// Handler exposes the registry for scraping
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request count and latency. The route label is the chi
// pattern so ids never become label values.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
