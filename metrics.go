package kernel

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsRegistry holds the Prometheus collectors for a single Kernel
// instance. Each Kernel gets its own prometheus.Registry rather than
// registering into the global DefaultRegisterer, so multiple kernels can
// coexist in the same process (e.g. under test) without collector name
// collisions.
type metricsRegistry struct {
	reg *prometheus.Registry

	tasksSpawned  prometheus.Counter
	tasksDone     prometheus.Counter
	tasksErrored  *prometheus.CounterVec
	taskLifetime  prometheus.Histogram
	liveTasks     prometheus.Gauge
	trapsHandled  *prometheus.CounterVec
}

func newMetricsRegistry() *metricsRegistry {
	reg := prometheus.NewRegistry()
	m := &metricsRegistry{
		reg: reg,
		tasksSpawned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kernel",
			Name:      "tasks_spawned_total",
			Help:      "Total tasks spawned.",
		}),
		tasksDone: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kernel",
			Name:      "tasks_done_total",
			Help:      "Total tasks that reached a terminal state.",
		}),
		tasksErrored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kernel",
			Name:      "tasks_errored_total",
			Help:      "Total tasks that exited with an error, by outcome (error, cancelled, timeout).",
		}, []string{"outcome"}),
		taskLifetime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kernel",
			Name:      "task_lifetime_seconds",
			Help:      "Wall-clock time from task spawn to completion.",
			Buckets:   prometheus.DefBuckets,
		}),
		liveTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kernel",
			Name:      "live_tasks",
			Help:      "Number of tasks currently known to the kernel.",
		}),
		trapsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kernel",
			Name:      "traps_handled_total",
			Help:      "Total traps dispatched by the kernel, by kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.tasksSpawned, m.tasksDone, m.tasksErrored, m.taskLifetime, m.liveTasks, m.trapsHandled)
	return m
}

// Registry exposes the underlying Prometheus registry so callers can serve
// it over HTTP via promhttp.HandlerFor, or merge it into a larger registry.
func (m *metricsRegistry) Registry() *prometheus.Registry { return m.reg }

func (m *metricsRegistry) observeSpawn() {
	m.tasksSpawned.Inc()
	m.liveTasks.Inc()
}

func (m *metricsRegistry) observeTrap(kind trapKind) {
	m.trapsHandled.WithLabelValues(kind.String()).Inc()
}

func (m *metricsRegistry) observeTaskDone(spawnedAt time.Time, err error) {
	m.tasksDone.Inc()
	m.liveTasks.Dec()
	m.taskLifetime.Observe(time.Since(spawnedAt).Seconds())
	if err == nil {
		return
	}
	outcome := "error"
	if isTaskTimeout(err) {
		outcome = "timeout"
	} else if isCancellation(err) {
		outcome = "cancelled"
	}
	m.tasksErrored.WithLabelValues(outcome).Inc()
}
