package sikulibridge

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector receives lifecycle and invocation events from a Bridge.
type MetricsCollector interface {
	// StateTransition records a bridge state change.
	StateTransition(from, to State)

	// LaunchAttempt records one engine launch and readiness attempt.
	LaunchAttempt(port int, err error)

	// KeywordCall records one keyword forwarded to the engine.
	KeywordCall(name string, duration time.Duration, err error)
}

type noopMetricsCollector struct{}

func (noopMetricsCollector) StateTransition(from, to State)                             {}
func (noopMetricsCollector) LaunchAttempt(port int, err error)                          {}
func (noopMetricsCollector) KeywordCall(name string, duration time.Duration, err error) {}

// NewNoopMetricsCollector returns a collector that discards everything.
func NewNoopMetricsCollector() MetricsCollector {
	return noopMetricsCollector{}
}

// PrometheusMetricsCollector implements MetricsCollector with Prometheus
// metrics registered on a private registry.
type PrometheusMetricsCollector struct {
	stateTransitions *prometheus.CounterVec
	launchAttempts   *prometheus.CounterVec
	keywordDuration  *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewPrometheusMetricsCollector creates a collector; namespace defaults to
// "sikulibridge".
func NewPrometheusMetricsCollector(namespace string) *PrometheusMetricsCollector {
	if namespace == "" {
		namespace = "sikulibridge"
	}

	pmc := &PrometheusMetricsCollector{
		registry: prometheus.NewRegistry(),
	}

	pmc.stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Total number of bridge state transitions",
		},
		[]string{"from_state", "to_state"},
	)

	pmc.launchAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_launch_attempts_total",
			Help:      "Total number of engine launch attempts",
		},
		[]string{"result"},
	)

	pmc.keywordDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "keyword_call_duration_seconds",
			Help:      "Duration of keywords forwarded to the engine",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"keyword", "status"},
	)

	pmc.registry.MustRegister(
		pmc.stateTransitions,
		pmc.launchAttempts,
		pmc.keywordDuration,
	)

	return pmc
}

// StateTransition records a state transition.
func (pmc *PrometheusMetricsCollector) StateTransition(from, to State) {
	pmc.stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
}

// LaunchAttempt records a launch attempt by result.
func (pmc *PrometheusMetricsCollector) LaunchAttempt(port int, err error) {
	pmc.launchAttempts.WithLabelValues(resultLabel(err)).Inc()
}

// KeywordCall records the duration of a forwarded keyword.
func (pmc *PrometheusMetricsCollector) KeywordCall(name string, duration time.Duration, err error) {
	pmc.keywordDuration.WithLabelValues(name, resultLabel(err)).Observe(duration.Seconds())
}

// Registry returns the Prometheus registry for HTTP handler setup.
func (pmc *PrometheusMetricsCollector) Registry() *prometheus.Registry {
	return pmc.registry
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

var _ MetricsCollector = (*PrometheusMetricsCollector)(nil)
