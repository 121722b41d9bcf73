package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_requests_total",
			Help: "Total number of reasoning backend requests by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)
	BackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_request_duration_seconds",
			Help:    "Reasoning backend request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		},
		[]string{"operation"},
	)

	ScoringFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scoring_fallbacks_total",
			Help: "Per-job fallbacks from the AI scorer to the heuristic scorer",
		},
	)
	MatchConfidenceHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "match_confidence",
			Help:    "Distribution of match confidence scores [0,100]",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
		[]string{"source"},
	)

	NotificationDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_decisions_total",
			Help: "High-match notification decisions by outcome (sent, cooldown, ineligible)",
		},
		[]string{"outcome"},
	)

	AnalysisTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_tasks_total",
			Help: "Resume analysis tasks by stage (enqueued, completed, failed)",
		},
		[]string{"stage"},
	)
)

// InitMetrics registers every collector once per process.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(BackendRequestsTotal)
	prometheus.MustRegister(BackendRequestDuration)
	prometheus.MustRegister(ScoringFallbacksTotal)
	prometheus.MustRegister(MatchConfidenceHistogram)
	prometheus.MustRegister(NotificationDecisionsTotal)
	prometheus.MustRegister(AnalysisTasksTotal)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

// ObserveBackendCall records one reasoning-backend round trip.
func ObserveBackendCall(operation, outcome string, dur time.Duration) {
	BackendRequestsTotal.WithLabelValues(operation, outcome).Inc()
	BackendRequestDuration.WithLabelValues(operation).Observe(dur.Seconds())
}

// ObserveConfidence records a final per-job confidence score.
func ObserveConfidence(source string, confidence int) {
	if confidence >= 0 && confidence <= 100 {
		MatchConfidenceHistogram.WithLabelValues(source).Observe(float64(confidence))
	}
}
