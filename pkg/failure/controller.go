// Package failure implements the bounded retry policy that decides
// whether a task group's crash is transient or fatal to the job.
//
// The decision isn't "ever failed N times" but "failed N+1 times with
// the most recent two failures close together": transient flaps
// shouldn't kill the job, but tight crash loops should.
package failure

import "github.com/cuemby/streamtask/pkg/jobstate"

// Decision is the outcome of recording a task failure.
type Decision int

const (
	Retry Decision = iota
	Fatal
)

type taskFailure struct {
	count             int
	lastFailureMillis int64
}

// Controller tracks per-task failure counts with a sliding-window
// reset. It holds no goroutine of its own and does no I/O; it reads
// the current time through the caller-supplied nowMs parameter rather
// than holding a clock.Clock itself, so a single Clock reading can be
// shared across multiple Controller calls within one event (see
// pkg/taskmgr). This makes it trivially unit-testable.
type Controller struct {
	retryCount    int
	retryWindowMs int64
	table         map[jobstate.TaskID]taskFailure
}

// NewController builds a Controller. retryCount == 0 means every
// crash is fatal; retryCount < 0 means retries are unbounded.
func NewController(retryCount int, retryWindowMs int64) *Controller {
	return &Controller{
		retryCount:    retryCount,
		retryWindowMs: retryWindowMs,
		table:         make(map[jobstate.TaskID]taskFailure),
	}
}

// RecordFailure records a crash for taskID at nowMs and returns
// whether the job should retry the task or treat it as fatal.
func (c *Controller) RecordFailure(taskID jobstate.TaskID, nowMs int64) Decision {
	if c.retryCount == 0 {
		return Fatal
	}
	if c.retryCount < 0 {
		return Retry
	}

	prev := c.table[taskID]
	newCount := prev.count + 1

	if newCount > c.retryCount {
		if nowMs-prev.lastFailureMillis < c.retryWindowMs {
			return Fatal
		}
		c.table[taskID] = taskFailure{count: 1, lastFailureMillis: nowMs}
		return Retry
	}

	c.table[taskID] = taskFailure{count: newCount, lastFailureMillis: nowMs}
	return Retry
}

// RecordSuccess clears taskID's failure history, the way a worker
// that has run long enough to complete cleanly earns a fresh budget
// if it crashes again later.
func (c *Controller) RecordSuccess(taskID jobstate.TaskID) {
	delete(c.table, taskID)
}
