// Package rmclient describes the resource-manager client contract the
// core negotiates containers through. The core only ever depends on
// the Client and EventSource interfaces in this package -- the
// resource manager itself, and the wire protocol used to reach it, are
// external collaborators out of this repo's scope. production.go
// provides the one concrete adapter that bridges those interfaces onto
// a real gRPC connection; it is glue code, not core logic.
package rmclient

import (
	"context"

	"github.com/cuemby/streamtask/pkg/jobstate"
)

// Capability is a granted or requestable (memory, CPU) pair.
type Capability struct {
	MemMB    int
	CPUCores int
}

// Client is the async capability-offering contract the resource
// manager exposes: register once, then request/release containers and
// unregister at the end.
type Client interface {
	// Register announces the app master's RPC endpoint and tracking
	// URL, and returns the cluster's maximum grantable capability.
	Register(ctx context.Context, host string, port int, trackingURL string) (Capability, error)

	// RequestContainer submits one container request at the given
	// resource shape and fixed priority 0.
	RequestContainer(ctx context.Context, memMB, cpuCores int) error

	// ReleaseContainer returns a container the job no longer needs.
	ReleaseContainer(ctx context.Context, containerID string) error

	// Unregister reports the job's final status and a human message.
	Unregister(ctx context.Context, status jobstate.Status, message, trackingURL string) error
}

// EventKind distinguishes the four asynchronous callback kinds the
// resource manager emits plus the periodic heartbeat tick pkg/eventloop
// injects on the same queue.
type EventKind int

const (
	EventAllocated EventKind = iota
	EventCompleted
	EventReboot
	EventShutdownRequest
	EventHeartbeat
)

// Completion carries a completed container's exit status. ExitStatus
// 0 is a clean exit; -100 means the cluster released or lost the
// container; anything else is a worker crash.
type Completion struct {
	ContainerID string
	ExitStatus  int
}

// Event is one message on the bounded queue the event-dispatcher
// drains. Container is set for EventAllocated, Completion for
// EventCompleted; the other kinds carry neither.
type Event struct {
	Kind       EventKind
	Container  jobstate.ContainerHandle
	Completion Completion
}

// EventSource is the channel the resource-manager client's internal
// callback threads publish onto; pkg/eventloop is the sole consumer.
type EventSource interface {
	Events() <-chan Event
}
