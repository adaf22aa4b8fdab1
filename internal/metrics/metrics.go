// Package metrics exposes Prometheus instrumentation for simulation runs and
// the HTTP service.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chrissnell/qpstream/pkg/qpstream"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qpstream_runs_total",
			Help: "Total number of simulation runs by outcome.",
		},
		[]string{"outcome"},
	)

	advisoriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qpstream_advisories_total",
			Help: "Advisories raised by simulation runs, by kind.",
		},
		[]string{"kind"},
	)

	arrivalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qpstream_arrivals_total",
			Help: "Photon arrivals by fate: injected into the timestream or skipped at the tail.",
		},
		[]string{"fate"},
	)

	samplesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qpstream_samples_total",
			Help: "Total number of timestream samples synthesized.",
		},
	)

	runDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qpstream_run_duration_seconds",
			Help:    "Wall time of a simulation run in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
	)

	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qpstream_result_cache_lookups_total",
			Help: "Result cache lookups by outcome.",
		},
		[]string{"result"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qpstream_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qpstream_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

func init() {
	prometheus.MustRegister(runsTotal)
	prometheus.MustRegister(advisoriesTotal)
	prometheus.MustRegister(arrivalsTotal)
	prometheus.MustRegister(samplesTotal)
	prometheus.MustRegister(runDurationSeconds)
	prometheus.MustRegister(cacheLookupsTotal)
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRun accounts for a finished run. A nil result counts as a failed run.
func RecordRun(res *qpstream.Result, elapsed time.Duration) {
	runDurationSeconds.Observe(elapsed.Seconds())
	if res == nil {
		runsTotal.WithLabelValues("error").Inc()
		return
	}

	runsTotal.WithLabelValues("ok").Inc()
	samplesTotal.Add(float64(res.SampleCount))
	arrivalsTotal.WithLabelValues("injected").Add(float64(len(res.Arrivals)))
	arrivalsTotal.WithLabelValues("skipped").Add(float64(res.Skipped))
	for _, a := range res.Advisories {
		advisoriesTotal.WithLabelValues(a.Kind.String()).Inc()
	}
}

// RecordCacheLookup counts one result cache lookup.
func RecordCacheLookup(hit bool) {
	if hit {
		cacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	cacheLookupsTotal.WithLabelValues("miss").Inc()
}

// normalizeRoute maps a request path to a bounded label set.
func normalizeRoute(path string) string {
	switch path {
	case "/healthz", "/metrics",
		"/api/v1/timestream", "/api/v1/pulse", "/api/v1/psd", "/api/v1/runs":
		return path
	}
	if id, ok := strings.CutPrefix(path, "/api/v1/runs/"); ok && id != "" && !strings.Contains(id, "/") {
		return "/api/v1/runs/{id}"
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
