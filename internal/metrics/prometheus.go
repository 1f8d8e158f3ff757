// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests by route, method and status code.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchify_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"endpoint", "method", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "switchify_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 2.5, 5},
		},
		[]string{"endpoint", "method"},
	)

	// DecisionsTotal counts served decisions by status and predictor mode.
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchify_decisions_total",
			Help: "Total number of decisions produced",
		},
		[]string{"status", "mode"},
	)

	DecisionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "switchify_decision_errors_total",
			Help: "Total number of predictor failures",
		},
	)

	SpikesDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "switchify_spikes_detected_total",
			Help: "Total number of latency/jitter spikes flagged",
		},
	)

	DDoSSuspected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "switchify_ddos_suspected_total",
			Help: "Total number of DDoS-like patterns flagged",
		},
	)

	// TelemetryReceived counts records entering the queue by origin.
	TelemetryReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchify_telemetry_received_total",
			Help: "Total number of telemetry records enqueued",
		},
		[]string{"origin"},
	)

	QueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "switchify_queue_length",
			Help: "Pending telemetry records",
		},
	)

	// ProbeDuration is the wall time of one live measurement.
	ProbeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "switchify_probe_duration_seconds",
			Help:    "Live telemetry measurement latency in seconds",
			Buckets: []float64{.5, 1, 1.5, 2, 2.5, 3, 5, 10},
		},
	)

	DemoTasksRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "switchify_demo_tasks_running",
			Help: "Demo simulators currently producing telemetry",
		},
	)

	// EventsPublished counts decision events by publish outcome.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchify_events_published_total",
			Help: "Decision events handed to the broker",
		},
		[]string{"result"},
	)

	HistoryWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchify_history_writes_total",
			Help: "Decision history writes to Redis",
		},
		[]string{"result"},
	)
)

// ObserveDecision updates the decision counters for one served result.
func ObserveDecision(status, mode string, spike, ddos bool) {
	DecisionsTotal.WithLabelValues(status, mode).Inc()
	if spike {
		SpikesDetected.Inc()
	}
	if ddos {
		DDoSSuspected.Inc()
	}
}
