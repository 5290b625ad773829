package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics are the engine's prometheus collectors. Without a registerer
// they still count but are not exported.
type metrics struct {
	instants        prometheus.Counter
	taskSteps       prometheus.Counter
	tasksCompleted  prometheus.Counter
	conditionChecks prometheus.Counter
	queueDepth      prometheus.Gauge
	frameEvents     prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer, run string) *metrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"run": run}
	return &metrics{
		instants: factory.NewCounter(prometheus.CounterOpts{
			Name:        "simkernel_instants_total",
			Help:        "Total number of simulated instants committed",
			ConstLabels: labels,
		}),
		taskSteps: factory.NewCounter(prometheus.CounterOpts{
			Name:        "simkernel_task_steps_total",
			Help:        "Total number of task steps",
			ConstLabels: labels,
		}),
		tasksCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name:        "simkernel_tasks_completed_total",
			Help:        "Total number of tasks that completed",
			ConstLabels: labels,
		}),
		conditionChecks: factory.NewCounter(prometheus.CounterOpts{
			Name:        "simkernel_condition_checks_total",
			Help:        "Total number of condition searches",
			ConstLabels: labels,
		}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "simkernel_queue_depth",
			Help:        "Current number of scheduled jobs",
			ConstLabels: labels,
		}),
		frameEvents: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "simkernel_instant_events",
			Help:        "Number of events committed per instant",
			Buckets:     []float64{0, 1, 2, 5, 10, 50, 100, 500},
			ConstLabels: labels,
		}),
	}
}
