package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imaged",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imaged",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	httpInflight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "imaged",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "In-flight HTTP requests",
		},
		[]string{"path"},
	)

	loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imaged",
			Subsystem: "wizard",
			Name:      "loads_total",
			Help:      "Image load operations by format and outcome",
		},
		[]string{"format", "outcome"},
	)

	savesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imaged",
			Subsystem: "wizard",
			Name:      "saves_total",
			Help:      "Image save operations by format and outcome",
		},
		[]string{"format", "outcome"},
	)

	registrationRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imaged",
			Subsystem: "registration",
			Name:      "runs_total",
			Help:      "Registration runs started, by initialization",
		},
		[]string{"init"},
	)

	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "imaged",
			Subsystem: "wizard",
			Name:      "sessions_active",
			Help:      "Currently open wizard sessions",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal, httpRequestDuration, httpInflight,
		loadsTotal, savesTotal, registrationRunsTotal, sessionsActive,
	)
}

// statusRecorder wraps http.ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware instruments requests for Prometheus
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := routePatternOrPath(r)
		method := r.Method
		httpInflight.WithLabelValues(path).Inc()
		defer httpInflight.WithLabelValues(path).Dec()

		sr := &statusRecorder{ResponseWriter: w, status: 200}
		start := time.Now()
		next.ServeHTTP(sr, r)
		statusLabel := strconv.Itoa(sr.status)
		dur := time.Since(start).Seconds()
		httpRequestsTotal.WithLabelValues(path, method, statusLabel).Inc()
		httpRequestDuration.WithLabelValues(path, method, statusLabel).Observe(dur)
	})
}

// routePatternOrPath returns the chi route pattern if available, otherwise
// falls back to URL path. This avoids high-cardinality label values.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

func countLoad(format string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if format == "" {
		format = "undetermined"
	}
	loadsTotal.WithLabelValues(format, outcome).Inc()
}

func countSave(format string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if format == "" {
		format = "undetermined"
	}
	savesTotal.WithLabelValues(format, outcome).Inc()
}
