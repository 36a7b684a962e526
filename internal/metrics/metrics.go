package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adstudio_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adstudio_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Entitlements
	DownloadDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adstudio_download_decisions_total",
			Help: "Download authorization decisions by tier and outcome",
		},
		[]string{"tier", "outcome"},
	)

	LedgerDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "adstudio_ledger_duration_seconds",
			Help:    "Time spent authorizing and recording a download",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	// Catalog
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adstudio_cache_hits_total",
			Help: "Total number of catalog cache hits",
		},
		[]string{"cache"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adstudio_cache_misses_total",
			Help: "Total number of catalog cache misses",
		},
		[]string{"cache"},
	)

	ImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adstudio_catalog_imports_total",
			Help: "Catalog import entries by outcome",
		},
		[]string{"status"},
	)

	// Sessions and orders
	SessionEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adstudio_session_events_total",
			Help: "Session lifecycle events published",
		},
		[]string{"type"},
	)

	OrdersSubmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "adstudio_custom_orders_submitted_total",
			Help: "Custom production orders accepted",
		},
	)

	CheckoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adstudio_checkouts_total",
			Help: "Hosted checkout sessions requested by plan and status",
		},
		[]string{"plan", "status"},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordOrderSubmitted counts an accepted custom order
func RecordOrderSubmitted() {
	OrdersSubmittedTotal.Inc()
}

// RecordDownloadDecision records the outcome of a ledger decision
func RecordDownloadDecision(tier, outcome string, duration time.Duration) {
	if tier == "" {
		tier = "unknown"
	}
	DownloadDecisionsTotal.WithLabelValues(tier, outcome).Inc()
	LedgerDuration.Observe(duration.Seconds())
}

// RecordCacheAccess records cache hit or miss
func RecordCacheAccess(cache string, hit bool) {
	if hit {
		CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

// RecordImport records the outcome of a single catalog import entry
func RecordImport(status string) {
	ImportsTotal.WithLabelValues(status).Inc()
}

// RecordSessionEvent records a published session event
func RecordSessionEvent(eventType string) {
	SessionEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordCheckout records a checkout attempt
func RecordCheckout(plan, status string) {
	CheckoutsTotal.WithLabelValues(plan, status).Inc()
}

// Handler exposes the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Instrument wraps next, labelling each request by the mux pattern that served it.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		RecordHTTPRequest(r.Method, route, rec.status, time.Since(start))
	})
}
