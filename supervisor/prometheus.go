package supervisor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements MetricsCollector using Prometheus metrics.
type PrometheusCollector struct {
	starts        prometheus.Counter
	readyDuration prometheus.Histogram
	probes        *prometheus.CounterVec
	stops         *prometheus.CounterVec
	stopDuration  prometheus.Histogram

	registry *prometheus.Registry
}

// NewPrometheusCollector creates a collector with its own registry. The
// namespace defaults to "estest" when empty.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	if namespace == "" {
		namespace = "estest"
	}

	pc := &PrometheusCollector{
		registry: prometheus.NewRegistry(),
	}

	pc.starts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_starts_total",
			Help:      "Total number of processes spawned",
		},
	)

	pc.readyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "process_ready_duration_seconds",
			Help:      "Time from spawn to the first successful readiness probe",
			Buckets:   prometheus.DefBuckets,
		},
	)

	pc.probes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readiness_probes_total",
			Help:      "Total number of readiness probe attempts",
		},
		[]string{"result"},
	)

	pc.stops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_stops_total",
			Help:      "Total number of process teardowns",
		},
		[]string{"final_state"},
	)

	pc.stopDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "process_stop_duration_seconds",
			Help:      "Duration of process teardown",
			Buckets:   prometheus.DefBuckets,
		},
	)

	pc.registry.MustRegister(pc.starts, pc.readyDuration, pc.probes, pc.stops, pc.stopDuration)
	return pc
}

// Registry returns the underlying registry for scraping or gathering.
func (pc *PrometheusCollector) Registry() *prometheus.Registry {
	return pc.registry
}

func (pc *PrometheusCollector) ProcessStarted() {
	pc.starts.Inc()
}

func (pc *PrometheusCollector) ProcessReady(elapsed time.Duration) {
	pc.readyDuration.Observe(elapsed.Seconds())
}

func (pc *PrometheusCollector) ProbeCompleted(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	pc.probes.WithLabelValues(result).Inc()
}

func (pc *PrometheusCollector) ProcessStopped(finalState State, elapsed time.Duration) {
	pc.stops.WithLabelValues(finalState.String()).Inc()
	pc.stopDuration.Observe(elapsed.Seconds())
}
