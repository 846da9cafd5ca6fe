/*
Package jobstate holds the application master's in-memory source of
truth for a running stream-processing job: which task groups are
unclaimed, which are bound to a container, which have finished, and the
counters and status derived from those sets.

All mutation happens on the event-dispatcher goroutine (see
pkg/eventloop); the internal mutex only makes the read-side accessors
and Snapshot safe from other goroutines (the status HTTP surface and
the metrics collector), it is not a license for concurrent writers.
Snapshot copies the task sets, counters and status (not the per-task
partition assignments) under one lock acquisition so a consistent
view can be published without blocking the dispatcher for long.
*/
package jobstate
