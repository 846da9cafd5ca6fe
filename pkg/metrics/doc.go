/*
Package metrics defines and registers the Prometheus metrics for the
stream-processing application master's task-manager core, and exposes
them over HTTP for scraping.

# Metrics Catalog

Job-level gauges:

streamtask_tasks_total{state}:
  - Total task groups by lifecycle state (unclaimed, running, finished)

streamtask_needed_containers:
  - Outstanding container requests not yet satisfied

streamtask_job_status{status}:
  - 0/1 indicator gauge per job status value (UNDEFINED, SUCCEEDED, FAILED)

Container lifecycle counters:

streamtask_containers_requested_total
streamtask_containers_allocated_total
streamtask_containers_released_total
streamtask_containers_failed_total
streamtask_tasks_completed_total

Latency histograms:

streamtask_container_launch_latency_seconds:
  - Time from allocation to the node-manager's start call returning

streamtask_event_dispatch_latency_seconds{event_kind}:
  - Time to fan one event out to every registered listener

# Collector

Collector polls a jobstate.State snapshot on a ticker and republishes
it as the job-level gauges above. The core itself updates the counters
and histograms directly at the point each event is handled; Collector
only covers values that are cheaper to read as a point-in-time
snapshot than to track incrementally.

# Usage

	metrics.ContainersRequested.Inc()

	timer := metrics.NewTimer()
	// ... launch container ...
	timer.ObserveDuration(metrics.ContainerLaunchLatency)

	http.Handle("/metrics", metrics.Handler())
*/
package metrics
