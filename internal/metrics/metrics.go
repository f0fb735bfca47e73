// Package metrics provides Prometheus metrics for calculation runs and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Streak outcome label for jams that were counted.
const OutcomeIncluded = "included"

var (
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jammertime_runs_total",
			Help: "Total number of finished calculation runs",
		},
		[]string{"status"},
	)
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jammertime_run_duration_seconds",
			Help:    "Calculation run duration in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300, 900},
		},
		[]string{"status"},
	)
	RunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jammertime_runs_active",
			Help: "Number of calculation runs in progress",
		},
	)
	EventsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jammertime_events_processed_total",
			Help: "Machine events passed through the calculation pipeline",
		},
	)
	MachinesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jammertime_machines_processed_total",
			Help: "Machine partitions completed",
		},
	)
	StreaksClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jammertime_streaks_total",
			Help: "Error streaks by classification outcome",
		},
		[]string{"outcome"},
	)
	UnmappedEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jammertime_unmapped_events_total",
			Help: "Events that fell outside every shift",
		},
	)
	EventsImported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jammertime_events_imported_total",
			Help: "Machine events stored through uploads",
		},
	)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jammertime_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jammertime_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func RecordRunStarted() {
	RunsActive.Inc()
}

func RecordRunFinished(status string, duration time.Duration) {
	RunsActive.Dec()
	RunsTotal.WithLabelValues(status).Inc()
	RunDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordPartition accounts one finished machine partition. outcomes maps a
// streak outcome (OutcomeIncluded or an exclusion reason) to its count.
func RecordPartition(events, unmapped int, outcomes map[string]int) {
	MachinesProcessed.Inc()
	EventsProcessed.Add(float64(events))
	UnmappedEvents.Add(float64(unmapped))
	for outcome, n := range outcomes {
		StreaksClassified.WithLabelValues(outcome).Add(float64(n))
	}
}

func RecordEventsImported(n int) {
	EventsImported.Add(float64(n))
}

func RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
