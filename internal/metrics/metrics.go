package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Reminder deliveries by outcome: sent, skipped, transport_error, not_found.
	ReminderDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habits_reminder_dispatches_total",
			Help: "Total number of reminder dispatch attempts",
		},
		[]string{"outcome"},
	)

	// Active cron entries held by the runner.
	ScheduledJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "habits_scheduled_jobs",
			Help: "Number of recurring reminder jobs currently scheduled",
		},
	)

	// Register and cancel calls against the job runner.
	JobOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habits_job_operations_total",
			Help: "Total number of job registry operations",
		},
		[]string{"op"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "habits_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "status"},
	)
)

func RecordDispatch(outcome string) {
	ReminderDispatches.WithLabelValues(outcome).Inc()
}

func RecordJobOperation(op string) {
	JobOperations.WithLabelValues(op).Inc()
}

func RecordHTTPRequest(method, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, status).Observe(duration.Seconds())
}
