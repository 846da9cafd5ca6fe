// Package eventloop implements the Event Loop / Listener Fan-out: a
// single dispatcher goroutine drains a bounded queue of
// resource-manager events plus a periodic heartbeat tick, and fans
// each one out to an ordered list of listeners. The dispatch loop is a
// ticker-driven select, generalized from a single ticker to a
// multiplexed event+heartbeat source the way pkg/events.Broker funnels
// heterogeneous publishes through one channel.
//
// Listeners are expressed as minimal capability interfaces
// (Initializer, AllocatedHandler, CompletedHandler, RebootHandler,
// ShutdownRequestHandler, HeartbeatHandler, ShutdownSignaler,
// Unregisterer) rather than one fat
// interface every listener must implement in full; taskmgr.Manager and
// lifecycle.Coordinator each implement only the subset that applies to
// them.
package eventloop

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/streamtask/pkg/jobstate"
	"github.com/cuemby/streamtask/pkg/log"
	"github.com/cuemby/streamtask/pkg/metrics"
	"github.com/cuemby/streamtask/pkg/rmclient"
	"github.com/rs/zerolog"
)

// Initializer is implemented by listeners that need to run setup logic
// once, before the main dispatch loop starts.
type Initializer interface {
	OnInit(ctx context.Context) error
}

// AllocatedHandler is implemented by listeners that react to a
// container allocation.
type AllocatedHandler interface {
	OnContainerAllocated(ctx context.Context, container jobstate.ContainerHandle) error
}

// CompletedHandler is implemented by listeners that react to a
// container completion.
type CompletedHandler interface {
	OnContainerCompleted(ctx context.Context, completion rmclient.Completion) error
}

// RebootHandler is implemented by listeners that react to the resource
// manager's reboot signal.
type RebootHandler interface {
	OnReboot(ctx context.Context) error
}

// ShutdownRequestHandler is implemented by listeners that react to the
// resource manager asking the job to stop.
type ShutdownRequestHandler interface {
	OnShutdownRequest(ctx context.Context) error
}

// HeartbeatHandler is implemented by listeners that want to run logic
// on every heartbeat tick.
type HeartbeatHandler interface {
	OnHeartbeat(ctx context.Context) error
}

// ShutdownSignaler is implemented by every listener; the loop samples
// it after each dispatched event.
type ShutdownSignaler interface {
	ShouldShutdown() bool
}

// Unregisterer is implemented by the listener responsible for telling
// the resource manager the job's final status (lifecycle.Coordinator).
type Unregisterer interface {
	Unregister(ctx context.Context, status jobstate.Status, message string) error
}

// Loop is the single-threaded event dispatcher.
type Loop struct {
	listeners []any
	source    rmclient.EventSource
	state     *jobstate.State

	heartbeatInterval time.Duration

	logger zerolog.Logger
}

// New builds a Loop that dispatches events from source, plus a
// heartbeat every heartbeatInterval, to listeners in order.
func New(source rmclient.EventSource, state *jobstate.State, heartbeatInterval time.Duration, listeners ...any) *Loop {
	return &Loop{
		listeners:         listeners,
		source:            source,
		state:             state,
		heartbeatInterval: heartbeatInterval,
		logger:            log.WithComponent("eventloop"),
	}
}

// Run initializes every listener in order, stopping early if one of
// them already signals shutdown (the Task Manager's onInit runs only
// if no prior listener signaled shutdown), then drains the event queue
// until some listener's ShouldShutdown is true, and finally
// unregisters with the job's final status.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.init(ctx); err != nil {
		return fmt.Errorf("eventloop: init failed: %w", err)
	}

	if !l.anyShutdown() {
		if err := l.dispatchLoop(ctx); err != nil {
			return fmt.Errorf("eventloop: dispatch failed: %w", err)
		}
	}

	return l.shutdown(ctx)
}

func (l *Loop) init(ctx context.Context) error {
	for _, listener := range l.listeners {
		init, ok := listener.(Initializer)
		if !ok {
			continue
		}
		if err := init.OnInit(ctx); err != nil {
			return err
		}
		if l.anyShutdown() {
			l.logger.Warn().Msg("listener signaled shutdown during init, skipping remaining listeners")
			break
		}
	}
	return nil
}

func (l *Loop) dispatchLoop(ctx context.Context) error {
	ticker := time.NewTicker(l.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-l.source.Events():
			if !ok {
				return nil
			}
			l.dispatch(ctx, event)
		case <-ticker.C:
			l.dispatch(ctx, rmclient.Event{Kind: rmclient.EventHeartbeat})
		}

		if l.anyShutdown() {
			return nil
		}
	}
}

// dispatch fans event out to every listener in registration order. A
// listener error is logged and dispatch continues: it means an
// outbound call to the resource manager or a node manager failed, and
// the upstream client's own retry is trusted rather than tearing the
// loop down (persistent failure shows up as the job no longer making
// progress, which the counters make observable).
func (l *Loop) dispatch(ctx context.Context, event rmclient.Event) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.EventDispatchLatency, kindLabel(event.Kind))

	for _, listener := range l.listeners {
		var err error
		switch event.Kind {
		case rmclient.EventAllocated:
			if h, ok := listener.(AllocatedHandler); ok {
				err = h.OnContainerAllocated(ctx, event.Container)
			}
		case rmclient.EventCompleted:
			if h, ok := listener.(CompletedHandler); ok {
				err = h.OnContainerCompleted(ctx, event.Completion)
			}
		case rmclient.EventReboot:
			if h, ok := listener.(RebootHandler); ok {
				err = h.OnReboot(ctx)
			}
		case rmclient.EventHeartbeat:
			if h, ok := listener.(HeartbeatHandler); ok {
				err = h.OnHeartbeat(ctx)
			}
		case rmclient.EventShutdownRequest:
			if h, ok := listener.(ShutdownRequestHandler); ok {
				err = h.OnShutdownRequest(ctx)
			}
		}
		if err != nil {
			l.logger.Error().Err(err).Str("event", kindLabel(event.Kind)).Msg("listener failed handling event")
		}
		if l.anyShutdown() {
			break
		}
	}
}

func (l *Loop) anyShutdown() bool {
	for _, listener := range l.listeners {
		if s, ok := listener.(ShutdownSignaler); ok && s.ShouldShutdown() {
			return true
		}
	}
	return false
}

func (l *Loop) shutdown(ctx context.Context) error {
	status := l.state.CurrentStatus()
	message := "job finished"
	if status == jobstate.StatusFailed {
		message = "job failed"
	} else if status == jobstate.StatusUndefined {
		status = jobstate.StatusFailed
		message = "job stopped before reaching a terminal state"
		l.state.SetFailed()
	}

	for _, listener := range l.listeners {
		if u, ok := listener.(Unregisterer); ok {
			if err := u.Unregister(ctx, status, message); err != nil {
				return fmt.Errorf("unregister failed: %w", err)
			}
			return nil
		}
	}
	return nil
}

func kindLabel(kind rmclient.EventKind) string {
	switch kind {
	case rmclient.EventAllocated:
		return "allocated"
	case rmclient.EventCompleted:
		return "completed"
	case rmclient.EventReboot:
		return "reboot"
	case rmclient.EventShutdownRequest:
		return "shutdown_request"
	case rmclient.EventHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}
