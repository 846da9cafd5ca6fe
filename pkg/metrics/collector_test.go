package metrics

import (
	"testing"
	"time"

	"github.com/cuemby/streamtask/pkg/jobstate"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorPublishesTaskCounts(t *testing.T) {
	state := jobstate.New(3)
	state.ClaimAllUnclaimed()
	state.BindContainer(0, jobstate.ContainerHandle{ID: "c0"}, nil)
	state.BindContainer(1, jobstate.ContainerHandle{ID: "c1"}, nil)
	state.ReleaseRunning(1)
	state.MarkFinished(1, true)

	c := NewCollector(state)
	c.collect()

	if got := testutil.ToFloat64(TasksTotal.WithLabelValues("unclaimed")); got != 1 {
		t.Errorf("unclaimed gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(TasksTotal.WithLabelValues("running")); got != 1 {
		t.Errorf("running gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(TasksTotal.WithLabelValues("finished")); got != 1 {
		t.Errorf("finished gauge = %v, want 1", got)
	}
}

func TestCollectorStartStop(t *testing.T) {
	state := jobstate.New(1)
	c := NewCollector(state)
	c.Start()
	time.Sleep(10 * time.Millisecond)
	c.Stop()
}
