package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "twopl"

// Metrics are the Prometheus collectors updated by a Scheduler.
type Metrics struct {
	LocksGranted   *prometheus.CounterVec
	LocksRefused   *prometheus.CounterVec
	LocksReleased  prometheus.Counter
	RetryPasses    prometheus.Counter
	Retried        prometheus.Counter
	Ignored        prometheus.Counter
	WaitQueueDepth prometheus.Gauge
	HistoryLength  prometheus.Gauge
}

// NewMetrics creates the scheduler collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		LocksGranted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "lock",
			Name:      "granted_total",
			Help:      "Lock requests granted, by lock mode.",
		}, []string{"mode"}),
		LocksRefused: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "lock",
			Name:      "refused_total",
			Help:      "Lock requests refused, by lock mode. Retries are counted again.",
		}, []string{"mode"}),
		LocksReleased: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "lock",
			Name:      "released_total",
			Help:      "Release events emitted on commit or abort.",
		}),
		RetryPasses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "scheduler",
			Name:      "retry_passes_total",
			Help:      "Retry passes run over a non-empty wait queue.",
		}),
		Retried: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "scheduler",
			Name:      "retried_operations_total",
			Help:      "Operations re-dispatched from the wait queue.",
		}),
		Ignored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "scheduler",
			Name:      "ignored_operations_total",
			Help:      "Input operations accepted as no-ops.",
		}),
		WaitQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "scheduler",
			Name:      "wait_queue_depth",
			Help:      "Operations currently on the wait queue.",
		}),
		HistoryLength: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "scheduler",
			Name:      "history_length",
			Help:      "Entries in the final history, synthetic events included.",
		}),
	}
}
