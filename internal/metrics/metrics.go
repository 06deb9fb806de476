package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the metrics surface the orchestrator uses. Implemented by the
// Prometheus recorder below and by a no-op fake in tests.
type Recorder interface {
	ConversionStarted(source, target string)
	ConversionFinished(source, target, outcome string, duration time.Duration, outputBytes int)
}

// Outcome labels
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

// PrometheusRecorder records conversion metrics keyed by format pair.
type PrometheusRecorder struct {
	started  *prometheus.CounterVec
	finished *prometheus.CounterVec
	duration *prometheus.HistogramVec
	bytes    *prometheus.CounterVec
}

func NewPrometheusRecorder() *PrometheusRecorder {
	return &PrometheusRecorder{
		started: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fileforge_conversions_started_total",
			Help: "Conversions started, by format pair.",
		}, []string{"source", "target"}),
		finished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fileforge_conversions_finished_total",
			Help: "Conversions finished, by format pair and outcome.",
		}, []string{"source", "target", "outcome"}),
		duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fileforge_conversion_duration_seconds",
			Help:    "End-to-end conversion duration, by format pair.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"source", "target"}),
		bytes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fileforge_conversion_output_bytes_total",
			Help: "Converted output bytes, by format pair.",
		}, []string{"source", "target"}),
	}
}

func (r *PrometheusRecorder) ConversionStarted(source, target string) {
	r.started.WithLabelValues(source, target).Inc()
}

func (r *PrometheusRecorder) ConversionFinished(source, target, outcome string, duration time.Duration, outputBytes int) {
	r.finished.WithLabelValues(source, target, outcome).Inc()
	r.duration.WithLabelValues(source, target).Observe(duration.Seconds())
	if outputBytes > 0 {
		r.bytes.WithLabelValues(source, target).Add(float64(outputBytes))
	}
}

// Noop discards all metrics.
type Noop struct{}

func (Noop) ConversionStarted(string, string) {}

func (Noop) ConversionFinished(string, string, string, time.Duration, int) {}
