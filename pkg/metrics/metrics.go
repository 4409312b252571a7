// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestsCreated counts work requests created, split by single or bulk creation.
	RequestsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requests_created_total",
			Help: "Work requests created",
		},
		[]string{"mode"},
	)

	// StatusTransitions counts status changes of work requests.
	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "request_status_transitions_total",
			Help: "Work request status transitions",
		},
		[]string{"from", "to"},
	)

	// InvariantRejections counts mutations refused by a lifecycle rule.
	InvariantRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "request_invariant_rejections_total",
			Help: "Mutations rejected by a lifecycle rule",
		},
		[]string{"rule"},
	)

	// SizingChecks counts sizing advisor outcomes per stage.
	SizingChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sizing_checks_total",
			Help: "Sizing advisor checks by stage and result",
		},
		[]string{"stage", "result"},
	)

	// SizingFallbacks counts analyses that returned the fallback result.
	SizingFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sizing_fallbacks_total",
			Help: "Sizing analyses that degraded to the fallback result",
		},
		[]string{"reason"},
	)

	// LLMRequestDuration tracks generation backend latency.
	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "Generation backend request duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 45, 60},
		},
		[]string{"provider", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"provider", "direction"},
	)

	// ReadRetries counts retried read attempts.
	ReadRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "read_retries_total",
			Help: "Read operations retried after a transient failure",
		},
		[]string{"operation"},
	)

	// EventsPublished counts activity events published to the event stream.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activity_events_published_total",
			Help: "Activity events published to JetStream",
		},
		[]string{"type", "status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, route, status string, duration float64) {
	RequestDuration.WithLabelValues(method, route, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, route, status).Inc()
}

// RecordCreated records n newly created work requests.
func RecordCreated(mode string, n int) {
	RequestsCreated.WithLabelValues(mode).Add(float64(n))
}

// RecordTransition records a status change.
func RecordTransition(from, to string) {
	StatusTransitions.WithLabelValues(from, to).Inc()
}

// RecordRejection records a mutation refused by the named rule.
func RecordRejection(rule string) {
	InvariantRejections.WithLabelValues(rule).Inc()
}

// RecordSizing records the outcome of one sizing stage.
func RecordSizing(stage string, tooBig bool) {
	result := "ok"
	if tooBig {
		result = "too_big"
	}
	SizingChecks.WithLabelValues(stage, result).Inc()
}

// RecordSizingFallback records a degraded sizing analysis.
func RecordSizingFallback(reason string) {
	SizingFallbacks.WithLabelValues(reason).Inc()
}

// RecordLLMCall records metrics for one generation call.
func RecordLLMCall(provider, status string, duration float64, tokensIn, tokensOut int) {
	LLMRequestDuration.WithLabelValues(provider, status).Observe(duration)
	LLMTokensTotal.WithLabelValues(provider, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(provider, "out").Add(float64(tokensOut))
}

// RecordReadRetry records one retried read.
func RecordReadRetry(operation string) {
	ReadRetries.WithLabelValues(operation).Inc()
}

// RecordEventPublished records an activity event publish attempt.
func RecordEventPublished(eventType string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	EventsPublished.WithLabelValues(eventType, status).Inc()
}
