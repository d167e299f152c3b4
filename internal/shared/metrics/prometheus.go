package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	memberMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "member_mutations_total",
			Help: "Total number of member list and settings mutations",
		},
		[]string{"action"},
	)

	recalculations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eligibility_recalculations_total",
			Help: "Total number of eligibility recalculations",
		},
		[]string{"result"},
	)

	targetingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "targeting_runs_total",
			Help: "Total number of targeting funnel runs",
		},
		[]string{"status"},
	)

	loginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "login_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"result"},
	)

	// Warehouse metrics
	warehouseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "warehouse_query_duration_seconds",
			Help:    "Warehouse query duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"query", "driver"},
	)

	warehouseQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warehouse_query_errors_total",
			Help: "Total number of failed warehouse queries",
		},
		[]string{"query", "driver"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := routePattern(r)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// routePattern labels requests by their chi route template so query strings
// and unknown paths cannot grow label cardinality.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// --- Business metric helpers ---

// RecordMemberMutation records an add, delete or settings update.
func RecordMemberMutation(action string) {
	memberMutations.WithLabelValues(action).Inc()
}

// RecordRecalculation records an eligibility recalculation outcome:
// "ok", "skipped" or "error".
func RecordRecalculation(result string) {
	recalculations.WithLabelValues(result).Inc()
}

// RecordTargetingRun records a funnel run.
func RecordTargetingRun(success bool) {
	status := "error"
	if success {
		status = "ok"
	}
	targetingRuns.WithLabelValues(status).Inc()
}

// RecordLogin records a login attempt.
func RecordLogin(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	loginAttempts.WithLabelValues(result).Inc()
}

// RecordWarehouseQuery records the duration of one warehouse statement.
func RecordWarehouseQuery(query, driver string, duration time.Duration, err error) {
	warehouseQueryDuration.WithLabelValues(query, driver).Observe(duration.Seconds())
	if err != nil {
		warehouseQueryErrors.WithLabelValues(query, driver).Inc()
	}
}
