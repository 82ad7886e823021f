package govdigest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// MetricsNamespace is the namespace for all govdigest metrics.
	MetricsNamespace = "govdigest"

	// MetricsSubsystem is the subsystem for per-source metrics.
	MetricsSubsystem = "source"
)

// Metrics holds the Prometheus metrics updated after each source run.
type Metrics struct {
	RunsTotal        *prometheus.CounterVec
	AttemptsTotal    *prometheus.CounterVec
	DigestsTotal     *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	LastSuccessEpoch *prometheus.GaugeVec
}

// NewMetrics creates and registers the source metrics on reg, or on the
// default registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "runs_total",
				Help:      "Total number of source runs by result",
			},
			[]string{"source", "result"},
		),
		AttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "attempts_total",
				Help:      "Total number of fetch attempts, retries included",
			},
			[]string{"source"},
		),
		DigestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "digests_total",
				Help:      "Total number of digests produced",
			},
			[]string{"source"},
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "run_duration_seconds",
				Help:      "Duration of a source run including retries",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"source"},
		),
		LastSuccessEpoch: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful run",
			},
			[]string{"source"},
		),
	}
}

// observe is a no-op on a nil receiver so the service can run without
// metrics.
func (m *Metrics) observe(source string, attempts, digests int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}

	result := "success"
	if err != nil {
		result = "failure"
	}

	m.RunsTotal.WithLabelValues(source, result).Inc()
	m.AttemptsTotal.WithLabelValues(source).Add(float64(attempts))
	m.DigestsTotal.WithLabelValues(source).Add(float64(digests))
	m.RunDuration.WithLabelValues(source).Observe(elapsed.Seconds())
	if err == nil {
		m.LastSuccessEpoch.WithLabelValues(source).SetToCurrentTime()
	}
}
