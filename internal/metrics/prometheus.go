package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the monitoring worker
type Metrics struct {
	// Probe metrics
	ProbesTotal      *prometheus.CounterVec
	ProbeDuration    prometheus.Histogram
	StateTransitions *prometheus.CounterVec
	ChecksSkipped    prometheus.Counter
	PassDuration     prometheus.Histogram

	// Alert metrics
	AlertsTotal *prometheus.CounterVec

	// Record store / log metrics
	StoreWriteFailures prometheus.Counter
	LogAppendFailures  prometheus.Counter

	// Rotation metrics
	ArchivesWritten  prometheus.Counter
	RotationFailures *prometheus.CounterVec
	RotationDuration prometheus.Histogram
}

// New creates and registers all metrics on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ProbesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkpulse",
			Subsystem: "probe",
			Name:      "total",
			Help:      "Total number of probes by resulting state",
		}, []string{"state"}),
		ProbeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "checkpulse",
			Subsystem: "probe",
			Name:      "duration_seconds",
			Help:      "Probe latency",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 3, 4, 5},
		}),
		StateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkpulse",
			Subsystem: "check",
			Name:      "state_transitions_total",
			Help:      "Number of check state changes by new state",
		}, []string{"state"}),
		ChecksSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "checkpulse",
			Subsystem: "scheduler",
			Name:      "checks_skipped_total",
			Help:      "Checks skipped because they could not be read or validated",
		}),
		PassDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "checkpulse",
			Subsystem: "scheduler",
			Name:      "pass_duration_seconds",
			Help:      "Duration of a full check pass",
			Buckets:   prometheus.DefBuckets,
		}),
		AlertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkpulse",
			Subsystem: "alert",
			Name:      "total",
			Help:      "Alert deliveries by result",
		}, []string{"result"}),
		StoreWriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "checkpulse",
			Subsystem: "store",
			Name:      "write_failures_total",
			Help:      "Failed check record updates",
		}),
		LogAppendFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "checkpulse",
			Subsystem: "log",
			Name:      "append_failures_total",
			Help:      "Failed log appends",
		}),
		ArchivesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "checkpulse",
			Subsystem: "rotation",
			Name:      "archives_written_total",
			Help:      "Log archives written",
		}),
		RotationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkpulse",
			Subsystem: "rotation",
			Name:      "failures_total",
			Help:      "Rotation failures by stage",
		}, []string{"stage"}),
		RotationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "checkpulse",
			Subsystem: "rotation",
			Name:      "pass_duration_seconds",
			Help:      "Duration of a full rotation pass",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
