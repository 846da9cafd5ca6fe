// Package taskmgr implements the Task Manager: it reacts to
// allocation/completion callbacks from the resource manager, binds
// task groups to containers, and decides when to request replacements
// or release surplus allocations.
package taskmgr

import (
	"context"
	"fmt"

	"github.com/cuemby/streamtask/pkg/clock"
	"github.com/cuemby/streamtask/pkg/cmdbuilder"
	"github.com/cuemby/streamtask/pkg/failure"
	"github.com/cuemby/streamtask/pkg/jobstate"
	"github.com/cuemby/streamtask/pkg/log"
	"github.com/cuemby/streamtask/pkg/metrics"
	"github.com/cuemby/streamtask/pkg/nmclient"
	"github.com/cuemby/streamtask/pkg/partition"
	"github.com/cuemby/streamtask/pkg/rmclient"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// exitStatusReleased is the cluster's sentinel for "preempted or
// lost", not a crash.
const exitStatusReleased = -100

// exitStatusClean is a worker's successful exit.
const exitStatusClean = 0

// Config carries the launch and resource-request parameters a Task
// Manager needs.
type Config struct {
	TaskCount     int
	MemMB         int
	CPUCores      int
	RetryCount    int
	RetryWindowMs int64

	AllPartitions []jobstate.PartitionRef
	Package       nmclient.LocalizedResource
	CommandConfig cmdbuilder.Config

	// NewCommandBuilder constructs a fresh CommandBuilder for each
	// launch. Defaults to cmdbuilder.NewShell if nil.
	NewCommandBuilder cmdbuilder.Factory
}

// Manager is the Task Manager. All exported On* methods must only be
// called from the event-dispatcher goroutine; Manager keeps no lock of
// its own because jobstate.State and failure.Controller already
// serialize correctly under that single-writer discipline.
type Manager struct {
	cfg Config

	state      *jobstate.State
	failureCtl *failure.Controller
	clock      clock.Clock

	rm rmclient.Client
	nm nmclient.Client

	newBuilder cmdbuilder.Factory

	credentials nmclient.Credentials

	tooManyFailedContainers bool

	logger zerolog.Logger
}

// New constructs a Task Manager bound to the given job state. state
// must already exist with TaskCount == cfg.TaskCount.
func New(cfg Config, state *jobstate.State, rm rmclient.Client, nm nmclient.Client, clk clock.Clock, credentials nmclient.Credentials) *Manager {
	newBuilder := cfg.NewCommandBuilder
	if newBuilder == nil {
		newBuilder = func() cmdbuilder.Builder { return cmdbuilder.NewShell() }
	}

	return &Manager{
		cfg:         cfg,
		state:       state,
		failureCtl:  failure.NewController(cfg.RetryCount, cfg.RetryWindowMs),
		clock:       clk,
		rm:          rm,
		nm:          nm,
		newBuilder:  newBuilder,
		credentials: credentials,
		logger:      log.WithComponent("taskmgr"),
	}
}

// OnInit claims every task as unclaimed and requests one container
// per task group.
func (m *Manager) OnInit(ctx context.Context) error {
	m.state.ClaimAllUnclaimed()

	m.logger.Info().Int("task_count", m.cfg.TaskCount).Msg("requesting initial containers")
	for i := 0; i < m.cfg.TaskCount; i++ {
		if err := m.requestContainer(ctx); err != nil {
			return fmt.Errorf("taskmgr: failed to request initial container %d: %w", i, err)
		}
	}
	return nil
}

func (m *Manager) requestContainer(ctx context.Context) error {
	requestID := uuid.New().String()
	m.logger.Debug().Str("request_id", requestID).Int("mem_mb", m.cfg.MemMB).Int("cpu_cores", m.cfg.CPUCores).Msg("requesting container")
	metrics.ContainersRequested.Inc()
	return m.rm.RequestContainer(ctx, m.cfg.MemMB, m.cfg.CPUCores)
}

// OnContainerAllocated handles a single allocation callback. If an
// unclaimed task exists it is launched in the container; otherwise
// the allocation is surplus and is released untouched.
func (m *Manager) OnContainerAllocated(ctx context.Context, container jobstate.ContainerHandle) error {
	metrics.ContainersAllocated.Inc()

	taskID, ok := m.state.PickUnclaimed()
	if !ok {
		m.logger.Info().Str("container_id", container.ID).Msg("no unclaimed task, releasing surplus allocation")
		metrics.ContainersReleased.Inc()
		return m.rm.ReleaseContainer(ctx, container.ID)
	}

	owned := partition.Assign(taskID, m.cfg.TaskCount, m.cfg.AllPartitions)

	timer := metrics.NewTimer()
	if err := m.launch(ctx, taskID, container, owned); err != nil {
		return fmt.Errorf("taskmgr: failed to launch task %d in container %s: %w", taskID, container.ID, err)
	}
	timer.ObserveDuration(metrics.ContainerLaunchLatency)

	m.state.BindContainer(taskID, container, owned)
	taskLogger := log.ForTask(int(taskID), container.ID)
	taskLogger.Info().
		Str("node", container.Host).
		Int("partitions", len(owned)).
		Msg("task bound to container")
	return nil
}

func (m *Manager) launch(ctx context.Context, taskID jobstate.TaskID, container jobstate.ContainerHandle, owned []jobstate.PartitionRef) error {
	builder := m.newBuilder().
		SetConfig(m.cfg.CommandConfig).
		SetName(fmt.Sprintf("task-%d", taskID)).
		SetStreamPartitions(owned)

	cmdLine, err := builder.BuildCommand()
	if err != nil {
		return fmt.Errorf("failed to build command: %w", err)
	}
	env, err := builder.BuildEnvironment()
	if err != nil {
		return fmt.Errorf("failed to build environment: %w", err)
	}

	launch := nmclient.LaunchContext{
		Package:     m.cfg.Package,
		Command:     []string{cmdLine},
		Environment: env,
		Credentials: nmclient.Sanitize(m.credentials),
	}
	return m.nm.StartContainer(ctx, container.ID, launch)
}

// OnContainerCompleted handles a completion callback, branching on
// exit status. The TaskId is removed from runningTasks/taskPartitions
// before any other mutation, regardless of whether it is known.
func (m *Manager) OnContainerCompleted(ctx context.Context, completion rmclient.Completion) error {
	taskID, known := m.state.TaskForContainer(completion.ContainerID)
	if known {
		m.state.ReleaseRunning(taskID)
	}

	switch completion.ExitStatus {
	case exitStatusClean:
		return m.onCleanExit(taskID, known)
	case exitStatusReleased:
		return m.onPreempted(ctx, taskID, known, completion.ContainerID)
	default:
		return m.onCrash(ctx, taskID, known, completion.ContainerID)
	}
}

func (m *Manager) onCleanExit(taskID jobstate.TaskID, known bool) error {
	if known {
		m.failureCtl.RecordSuccess(taskID)
	}
	m.state.MarkFinished(taskID, known)
	metrics.TasksCompleted.Inc()
	m.logger.Info().Int("task_id", int(taskID)).Bool("known", known).Msg("task completed cleanly")
	return nil
}

func (m *Manager) onPreempted(ctx context.Context, taskID jobstate.TaskID, known bool, containerID string) error {
	m.state.IncrementReleased()
	metrics.ContainersReleased.Inc()
	m.logger.Warn().Str("container_id", containerID).Bool("known", known).Msg("container released or lost by cluster")

	if !known {
		return nil
	}
	m.state.ReturnToUnclaimed(taskID)
	m.state.IncrementNeeded()
	if err := m.requestContainer(ctx); err != nil {
		return fmt.Errorf("taskmgr: failed to request replacement for preempted task %d: %w", taskID, err)
	}
	return nil
}

func (m *Manager) onCrash(ctx context.Context, taskID jobstate.TaskID, known bool, containerID string) error {
	m.state.IncrementFailed()
	metrics.ContainersFailed.Inc()

	if !known {
		m.logger.Warn().Str("container_id", containerID).Msg("unbound container crashed, nothing to retry")
		return nil
	}

	m.state.ReturnToUnclaimed(taskID)

	decision := m.failureCtl.RecordFailure(taskID, m.clock.NowMillis())
	if decision == failure.Fatal {
		m.tooManyFailedContainers = true
		m.state.SetFailed()
		m.logger.Error().Int("task_id", int(taskID)).Msg("task exhausted its retry budget, failing job")
		return nil
	}

	m.state.IncrementNeeded()
	m.logger.Warn().Int("task_id", int(taskID)).Msg("task crashed, requesting replacement container")
	if err := m.requestContainer(ctx); err != nil {
		return fmt.Errorf("taskmgr: failed to request replacement for crashed task %d: %w", taskID, err)
	}
	return nil
}

// OnContainerReleased is informational only: the state transition it
// implies is already covered by the -100 branch of OnContainerCompleted.
func (m *Manager) OnContainerReleased(_ context.Context, containerID string) error {
	m.logger.Debug().Str("container_id", containerID).Msg("container released notification received")
	return nil
}

// ShouldShutdown reports the shutdown condition: either the job
// finished every task or it failed fatally.
func (m *Manager) ShouldShutdown() bool {
	return m.state.CompletedCount() == m.cfg.TaskCount || m.tooManyFailedContainers
}

// JobFailed reports whether this manager's retry policy triggered a
// fatal failure, distinct from every task simply completing.
func (m *Manager) JobFailed() bool {
	return m.tooManyFailedContainers
}
