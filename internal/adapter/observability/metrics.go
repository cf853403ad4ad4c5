// Package observability provides logging, metrics, and tracing.
//
// It integrates with OpenTelemetry for system monitoring.
// The package provides comprehensive observability features
// including metrics collection, distributed tracing, and logging.
package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts HTTP requests by route, method, and status label.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	// HTTPRequestDuration records request durations by route and method.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	// TasksEnqueuedTotal counts moderation tasks enqueued, by outcome label.
	TasksEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_tasks_enqueued_total",
			Help: "Total number of moderation tasks enqueued",
		},
		[]string{"outcome"},
	)
	// TasksProcessing is a gauge of moderation messages currently being handled by a worker, by stage.
	TasksProcessing = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "moderation_tasks_processing",
			Help: "Number of moderation tasks currently being processed by a worker",
		},
		[]string{"stage"},
	)
	// TasksCompletedTotal counts tasks that transitioned to completed.
	TasksCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "moderation_tasks_completed_total",
			Help: "Total number of moderation tasks completed",
		},
	)
	// TasksFailedTotal counts tasks that transitioned to failed, by reason.
	TasksFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_tasks_failed_total",
			Help: "Total number of moderation tasks failed, by reason",
		},
		[]string{"reason"},
	)
	// TasksDiscardedTotal counts redelivered messages that found no pending row to claim.
	TasksDiscardedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "moderation_tasks_discarded_total",
			Help: "Total number of moderation messages discarded because no pending task remained",
		},
	)
	// DLQMessagesTotal counts messages sent to the dead-letter topic, by reason.
	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_dlq_messages_total",
			Help: "Total number of messages published to the dead-letter topic",
		},
		[]string{"reason"},
	)
	// ProbabilityHistogram is the distribution of scored violation probabilities.
	ProbabilityHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "moderation_probability",
			Help:    "Distribution of scored violation probabilities",
			Buckets: []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)
	// CacheOpsTotal counts cache operations by cache name, op, and outcome (hit/miss/ok/error).
	CacheOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_operations_total",
			Help: "Total number of cache operations",
		},
		[]string{"cache", "op", "outcome"},
	)
)

// InitMetrics registers all Prometheus metrics with the default registry.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(TasksEnqueuedTotal)
	prometheus.MustRegister(TasksProcessing)
	prometheus.MustRegister(TasksCompletedTotal)
	prometheus.MustRegister(TasksFailedTotal)
	prometheus.MustRegister(TasksDiscardedTotal)
	prometheus.MustRegister(DLQMessagesTotal)
	prometheus.MustRegister(ProbabilityHistogram)
	prometheus.MustRegister(CacheOpsTotal)
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
			// fallback when route pattern is unavailable
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

// EnqueueTask increments the enqueued-tasks counter for the given outcome
// (the enqueue service records "accepted" for every published request).
func EnqueueTask(outcome string) {
	TasksEnqueuedTotal.WithLabelValues(outcome).Inc()
}

// StartProcessingTask increments the processing gauge for the given stage.
func StartProcessingTask(stage string) {
	TasksProcessing.WithLabelValues(stage).Inc()
}

// StopProcessingTask decrements the processing gauge for the given stage.
func StopProcessingTask(stage string) {
	TasksProcessing.WithLabelValues(stage).Dec()
}

// CompleteTask marks a task completed and records its violation probability.
func CompleteTask(probability float64) {
	TasksCompletedTotal.Inc()
	if probability >= 0 && probability <= 1 {
		ProbabilityHistogram.Observe(probability)
	}
}

// FailTask marks a task failed for the given reason.
func FailTask(reason string) {
	TasksFailedTotal.WithLabelValues(reason).Inc()
}

// DiscardTask records a redelivered message that found no pending task.
func DiscardTask() {
	TasksDiscardedTotal.Inc()
}

// RecordDLQ records a dead-letter publish for the given reason.
func RecordDLQ(reason string) {
	DLQMessagesTotal.WithLabelValues(reason).Inc()
}

// RecordCacheOp records a cache operation outcome ("hit" or "miss" for gets,
// "ok" for successful sets and deletes, "error" for failures).
func RecordCacheOp(cache, op, outcome string) {
	CacheOpsTotal.WithLabelValues(cache, op, outcome).Inc()
}
