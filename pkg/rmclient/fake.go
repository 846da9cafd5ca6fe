package rmclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/streamtask/pkg/jobstate"
)

// Fake is an in-memory Client + EventSource used by tests. It records
// every call so tests can
// assert on what the core asked the resource manager to do, and lets
// the test drive asynchronous events onto the same bounded queue a
// real client would use.
type Fake struct {
	mu sync.Mutex

	MaxCapability Capability

	Requested    []Capability
	Released     []string
	Unregistered bool
	FinalStatus  jobstate.Status
	FinalMessage string

	events chan Event
}

// NewFake creates a Fake resource-manager client that will report
// maxCap as the cluster's grantable capability on Register.
func NewFake(maxCap Capability) *Fake {
	return &Fake{
		MaxCapability: maxCap,
		events:        make(chan Event, 256),
	}
}

// Events implements EventSource.
func (f *Fake) Events() <-chan Event {
	return f.events
}

// Register implements Client.
func (f *Fake) Register(_ context.Context, _ string, _ int, _ string) (Capability, error) {
	return f.MaxCapability, nil
}

// RequestContainer implements Client.
func (f *Fake) RequestContainer(_ context.Context, memMB, cpuCores int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Requested = append(f.Requested, Capability{MemMB: memMB, CPUCores: cpuCores})
	return nil
}

// ReleaseContainer implements Client.
func (f *Fake) ReleaseContainer(_ context.Context, containerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Released = append(f.Released, containerID)
	return nil
}

// Unregister implements Client.
func (f *Fake) Unregister(_ context.Context, status jobstate.Status, message, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Unregistered = true
	f.FinalStatus = status
	f.FinalMessage = message
	return nil
}

// RequestCount returns how many container requests have been issued
// so far, for test assertions about replacement-request counts.
func (f *Fake) RequestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Requested)
}

// PushAllocated enqueues an Allocated event for the given container.
func (f *Fake) PushAllocated(container jobstate.ContainerHandle) {
	f.events <- Event{Kind: EventAllocated, Container: container}
}

// PushCompleted enqueues a Completed event.
func (f *Fake) PushCompleted(containerID string, exitStatus int) {
	f.events <- Event{Kind: EventCompleted, Completion: Completion{ContainerID: containerID, ExitStatus: exitStatus}}
}

// PushReboot enqueues a Reboot event.
func (f *Fake) PushReboot() {
	f.events <- Event{Kind: EventReboot}
}

// PushShutdownRequest enqueues a ShutdownRequest event.
func (f *Fake) PushShutdownRequest() {
	f.events <- Event{Kind: EventShutdownRequest}
}

// Close closes the event channel; safe to call once all pushes are done.
func (f *Fake) Close() {
	close(f.events)
}

// String renders a short summary, useful in test failure messages.
func (f *Fake) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fmt.Sprintf("rmclient.Fake{requested=%d released=%d unregistered=%v}", len(f.Requested), len(f.Released), f.Unregistered)
}
