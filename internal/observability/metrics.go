package observability

import (
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

var (
	attemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckask_attempts_total",
			Help: "Total repair-loop attempts by validation verdict.",
		},
		[]string{"verdict"},
	)

	violationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckask_violations_total",
			Help: "Rejected candidate queries by violation kind.",
		},
		[]string{"kind"},
	)

	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckask_sessions_total",
			Help: "Finished sessions by terminal outcome.",
		},
		[]string{"outcome"},
	)

	inferenceDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "duckask_inference_duration_seconds",
			Help:    "Latency of model inference calls.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	executionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "duckask_execution_duration_seconds",
			Help:    "Latency of analytical query execution.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		attemptsTotal,
		violationsTotal,
		sessionsTotal,
		inferenceDurationSeconds,
		executionDurationSeconds,
	)
}

func ObserveAttempt(verdict string) {
	attemptsTotal.WithLabelValues(verdict).Inc()
}

func ObserveViolation(kind string) {
	violationsTotal.WithLabelValues(kind).Inc()
}

func ObserveSession(outcome string) {
	sessionsTotal.WithLabelValues(outcome).Inc()
}

func ObserveInferenceDuration(elapsed time.Duration) {
	inferenceDurationSeconds.Observe(elapsed.Seconds())
}

func ObserveExecutionDuration(elapsed time.Duration) {
	executionDurationSeconds.Observe(elapsed.Seconds())
}

// WriteSnapshot serializes the default registry in Prometheus text format.
// The process is a short-lived CLI, so a textfile snapshot stands in for a
// scrape endpoint.
func WriteSnapshot(path string) error {
	if path == "" {
		return nil
	}
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}
	defer func() { _ = file.Close() }()

	encoder := expfmt.NewEncoder(file, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := encoder.Encode(family); err != nil {
			return fmt.Errorf("encode metric family %q: %w", family.GetName(), err)
		}
	}
	return nil
}
