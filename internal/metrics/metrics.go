package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cache Store lookups by table and result (hit | miss | error).
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flashdetail_cache_lookups_total",
			Help: "Cache store lookups by table and result.",
		},
		[]string{"table", "result"},
	)

	// Cache Store writes by table and result (ok | error).
	CacheWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flashdetail_cache_writes_total",
			Help: "Cache store writes by table and result.",
		},
		[]string{"table", "result"},
	)

	// Out-of-band edits picked up by the file store.
	CacheReloadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flashdetail_cache_reloads_total",
			Help: "Reloads of the cache file after an external modification.",
		},
	)

	// Resolutions by operation, tier that answered, and outcome kind.
	ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flashdetail_resolutions_total",
			Help: "Resolver calls by operation, answering tier and outcome.",
		},
		[]string{"operation", "source", "outcome"},
	)

	// Candidate endpoint attempts by family and outcome (ok | status | transport).
	RemoteRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flashdetail_remote_requests_total",
			Help: "Requests to remote decode endpoints by family and outcome.",
		},
		[]string{"family", "outcome"},
	)

	RemoteLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flashdetail_remote_latency_seconds",
			Help:    "Latency of individual remote endpoint attempts in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"family"},
	)

	// Histogram: gateway HTTP latency in seconds.
	GatewayLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flashdetail_http_latency_seconds",
			Help:    "HTTP request latency for the gateway in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"route", "method", "status_code"},
	)
)

// Register is called once in main() to register metrics.
func Register() {
	prometheus.MustRegister(
		CacheLookupsTotal,
		CacheWritesTotal,
		CacheReloadsTotal,
		ResolutionsTotal,
		RemoteRequestsTotal,
		RemoteLatencySeconds,
		GatewayLatencySeconds,
	)
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware measures gateway latency per route pattern, so part numbers in
// the path do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		GatewayLatencySeconds.
			WithLabelValues(route, r.Method, strconv.Itoa(rec.statusCode)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
