package metrics

import (
	"time"

	"github.com/cuemby/streamtask/pkg/jobstate"
)

// Collector periodically snapshots a job's state and republishes it as
// gauges on a ticker.
type Collector struct {
	state  *jobstate.State
	stopCh chan struct{}
}

// NewCollector creates a metrics Collector for state.
func NewCollector(state *jobstate.State) *Collector {
	return &Collector{
		state:  state,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics on a 15s ticker.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	snap := c.state.Snapshot()

	TasksTotal.WithLabelValues("unclaimed").Set(float64(len(snap.UnclaimedTasks)))
	TasksTotal.WithLabelValues("running").Set(float64(len(snap.RunningTasks)))
	TasksTotal.WithLabelValues("finished").Set(float64(len(snap.FinishedTasks)))

	NeededContainers.Set(float64(snap.NeededContainers))

	for _, status := range []jobstate.Status{jobstate.StatusUndefined, jobstate.StatusSucceeded, jobstate.StatusFailed} {
		value := 0.0
		if snap.Status == status {
			value = 1.0
		}
		JobStatus.WithLabelValues(string(status)).Set(value)
	}
}
