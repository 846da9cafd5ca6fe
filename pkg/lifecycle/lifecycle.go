// Package lifecycle implements the Lifecycle Coordinator: it registers
// the app master with the resource manager, validates the granted
// capability against what the job actually needs, and unregisters with
// a final status once the job is done. It is registered before the
// Task Manager in the event-dispatcher's listener list so a capability
// rejection prevents the Task Manager's onInit from ever requesting a
// container.
package lifecycle

import (
	"context"
	"fmt"

	"github.com/cuemby/streamtask/pkg/jobstate"
	"github.com/cuemby/streamtask/pkg/log"
	"github.com/cuemby/streamtask/pkg/rmclient"
	"github.com/rs/zerolog"
)

// Config is the capability a job needs to run at all.
type Config struct {
	RequiredMemMB    int
	RequiredCPUCores int

	Host        string
	Port        int
	TrackingURL string
}

// Coordinator is the Lifecycle Coordinator. Like taskmgr.Manager, its
// exported On* methods must only be called from the event-dispatcher
// goroutine.
type Coordinator struct {
	cfg   Config
	rm    rmclient.Client
	state *jobstate.State

	shouldShutdown bool

	logger zerolog.Logger
}

// New constructs a Lifecycle Coordinator.
func New(cfg Config, rm rmclient.Client, state *jobstate.State) *Coordinator {
	return &Coordinator{
		cfg:    cfg,
		rm:     rm,
		state:  state,
		logger: log.WithComponent("lifecycle"),
	}
}

// OnInit registers the app master and validates the granted capability
// against the job's requirements. If the cluster's maximum grantable
// capability falls short, the job is failed before a single container
// is ever requested.
func (c *Coordinator) OnInit(ctx context.Context) error {
	granted, err := c.rm.Register(ctx, c.cfg.Host, c.cfg.Port, c.cfg.TrackingURL)
	if err != nil {
		return fmt.Errorf("lifecycle: registration failed: %w", err)
	}

	c.logger.Info().
		Int("granted_mem_mb", granted.MemMB).
		Int("granted_cpu_cores", granted.CPUCores).
		Int("required_mem_mb", c.cfg.RequiredMemMB).
		Int("required_cpu_cores", c.cfg.RequiredCPUCores).
		Msg("registered with resource manager")

	if granted.MemMB < c.cfg.RequiredMemMB || granted.CPUCores < c.cfg.RequiredCPUCores {
		c.logger.Error().Msg("cluster cannot grant the required capability, failing job before any container request")
		c.shouldShutdown = true
		c.state.SetFailed()
		return nil
	}
	return nil
}

// OnReboot handles the resource manager's Reboot event. A reboot means
// the app master is being restarted with state it did not persist,
// which this core treats as unsupported: it is always fatal.
func (c *Coordinator) OnReboot(_ context.Context) error {
	c.logger.Error().Msg("resource manager requested reboot, which this job does not support")
	c.shouldShutdown = true
	c.state.SetFailed()
	return nil
}

// OnShutdownRequest handles the resource manager asking the job to
// stop. The request is honored cooperatively: the dispatch loop drains
// the current event and exits, and the job unregisters with the status
// it reached, or FAILED if it had not reached a terminal one (see
// pkg/eventloop).
func (c *Coordinator) OnShutdownRequest(_ context.Context) error {
	c.logger.Info().Msg("resource manager requested shutdown")
	c.shouldShutdown = true
	return nil
}

// ShouldShutdown reports whether this coordinator's own checks (a
// capability rejection, an unsupported reboot, or a cluster shutdown
// request) have already decided the job must end.
func (c *Coordinator) ShouldShutdown() bool {
	return c.shouldShutdown
}

// Unregister reports the job's final status to the resource manager.
// Called once, by the event loop, after any listener's ShouldShutdown
// has gone true or the event source has closed.
func (c *Coordinator) Unregister(ctx context.Context, status jobstate.Status, message string) error {
	if err := c.rm.Unregister(ctx, status, message, c.cfg.TrackingURL); err != nil {
		return fmt.Errorf("lifecycle: unregister failed: %w", err)
	}
	return nil
}
