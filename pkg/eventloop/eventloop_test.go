package eventloop

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/streamtask/pkg/clock"
	"github.com/cuemby/streamtask/pkg/cmdbuilder"
	"github.com/cuemby/streamtask/pkg/jobstate"
	"github.com/cuemby/streamtask/pkg/lifecycle"
	"github.com/cuemby/streamtask/pkg/nmclient"
	"github.com/cuemby/streamtask/pkg/rmclient"
	"github.com/cuemby/streamtask/pkg/taskmgr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopHappyPathShutsDownOnCompletion(t *testing.T) {
	state := jobstate.New(1)
	rm := rmclient.NewFake(rmclient.Capability{MemMB: 4096, CPUCores: 4})
	nm := nmclient.NewFake()
	clk := clock.NewFake(0)

	lc := lifecycle.New(lifecycle.Config{RequiredMemMB: 1024, RequiredCPUCores: 1}, rm, state)
	tm := taskmgr.New(taskmgr.Config{
		TaskCount:     1,
		MemMB:         1024,
		CPUCores:      1,
		RetryCount:    8,
		RetryWindowMs: 300000,
		CommandConfig: cmdbuilder.Config{EntryPoint: "/bin/streamtask-worker"},
	}, state, rm, nm, clk, nmclient.Credentials{})

	loop := New(rm, state, time.Hour, lc, tm)

	rm.PushAllocated(jobstate.ContainerHandle{ID: "A"})
	rm.PushCompleted("A", 0)
	rm.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, loop.Run(ctx))

	assert.Equal(t, jobstate.StatusSucceeded, state.CurrentStatus())
	assert.True(t, rm.Unregistered)
	assert.Equal(t, jobstate.StatusSucceeded, rm.FinalStatus)
}

func TestLoopHonorsClusterShutdownRequest(t *testing.T) {
	state := jobstate.New(2)
	rm := rmclient.NewFake(rmclient.Capability{MemMB: 4096, CPUCores: 4})
	nm := nmclient.NewFake()
	clk := clock.NewFake(0)

	lc := lifecycle.New(lifecycle.Config{RequiredMemMB: 1024, RequiredCPUCores: 1}, rm, state)
	tm := taskmgr.New(taskmgr.Config{
		TaskCount:     2,
		MemMB:         1024,
		CPUCores:      1,
		RetryCount:    8,
		RetryWindowMs: 300000,
		CommandConfig: cmdbuilder.Config{EntryPoint: "/bin/streamtask-worker"},
	}, state, rm, nm, clk, nmclient.Credentials{})

	loop := New(rm, state, time.Hour, lc, tm)

	rm.PushAllocated(jobstate.ContainerHandle{ID: "A"})
	rm.PushShutdownRequest()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, loop.Run(ctx))

	// The job never reached a terminal state on its own, so the loop
	// unregisters as FAILED.
	assert.True(t, rm.Unregistered)
	assert.Equal(t, jobstate.StatusFailed, rm.FinalStatus)
}

// A capability rejection during init must prevent the Task Manager
// from ever requesting a container.
func TestLoopCapabilityRejectionSkipsTaskManagerInit(t *testing.T) {
	state := jobstate.New(1)
	rm := rmclient.NewFake(rmclient.Capability{MemMB: 512, CPUCores: 2})
	nm := nmclient.NewFake()
	clk := clock.NewFake(0)

	lc := lifecycle.New(lifecycle.Config{RequiredMemMB: 1024, RequiredCPUCores: 2}, rm, state)
	tm := taskmgr.New(taskmgr.Config{
		TaskCount:     1,
		MemMB:         1024,
		CPUCores:      2,
		RetryCount:    8,
		RetryWindowMs: 300000,
		CommandConfig: cmdbuilder.Config{EntryPoint: "/bin/streamtask-worker"},
	}, state, rm, nm, clk, nmclient.Credentials{})

	loop := New(rm, state, time.Hour, lc, tm)
	rm.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, loop.Run(ctx))

	assert.Equal(t, jobstate.StatusFailed, state.CurrentStatus())
	assert.Equal(t, 0, rm.RequestCount())
	assert.True(t, rm.Unregistered)
	assert.Equal(t, jobstate.StatusFailed, rm.FinalStatus)
}
