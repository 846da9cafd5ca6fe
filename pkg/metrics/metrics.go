package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Job-level gauges
	TasksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "streamtask_tasks_total",
			Help: "Total number of task groups by lifecycle state (unclaimed, running, finished)",
		},
		[]string{"state"},
	)

	NeededContainers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamtask_needed_containers",
			Help: "Number of outstanding container requests not yet satisfied",
		},
	)

	// Container lifecycle counters
	ContainersRequested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "streamtask_containers_requested_total",
			Help: "Total number of container requests issued to the resource manager",
		},
	)

	ContainersAllocated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "streamtask_containers_allocated_total",
			Help: "Total number of containers allocated by the resource manager",
		},
	)

	ContainersReleased = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "streamtask_containers_released_total",
			Help: "Total number of containers released, either as surplus or cluster-initiated",
		},
	)

	ContainersFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "streamtask_containers_failed_total",
			Help: "Total number of containers that completed with a non-zero, non-preemption exit status",
		},
	)

	TasksCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "streamtask_tasks_completed_total",
			Help: "Total number of clean (exit status 0) task completions",
		},
	)

	// Scheduling / dispatch latency
	ContainerLaunchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "streamtask_container_launch_latency_seconds",
			Help:    "Time taken from allocation to node-manager start call returning",
			Buckets: prometheus.DefBuckets,
		},
	)

	EventDispatchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamtask_event_dispatch_latency_seconds",
			Help:    "Time taken to fan an event out to all registered listeners",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"event_kind"},
	)

	JobStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "streamtask_job_status",
			Help: "Current job status as a 0/1 indicator gauge per status value",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(TasksTotal)
	prometheus.MustRegister(NeededContainers)
	prometheus.MustRegister(ContainersRequested)
	prometheus.MustRegister(ContainersAllocated)
	prometheus.MustRegister(ContainersReleased)
	prometheus.MustRegister(ContainersFailed)
	prometheus.MustRegister(TasksCompleted)
	prometheus.MustRegister(ContainerLaunchLatency)
	prometheus.MustRegister(EventDispatchLatency)
	prometheus.MustRegister(JobStatus)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
