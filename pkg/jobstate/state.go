package jobstate

import (
	"sync"
)

// TaskID identifies a task group. Dense in [0, TaskCount) and stable
// for the lifetime of the job.
type TaskID int

// PartitionRef identifies a single partition of a named input stream.
type PartitionRef struct {
	System      string
	Stream      string
	PartitionID int
}

// ContainerHandle is the opaque identifier the resource manager grants
// for an execution slot. The core only compares handles for equality
// and logs them; Host/Port/MemMB/CPUCores are carried for logging and
// for the status HTTP surface.
type ContainerHandle struct {
	ID       string
	Host     string
	Port     int
	MemMB    int
	CPUCores int
}

// Status is the terminal (or not yet terminal) state of the job.
type Status string

const (
	StatusUndefined Status = "UNDEFINED"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// State is the application master's single-writer source of truth.
// Every method that mutates State must only be called from the
// event-dispatcher goroutine (see pkg/eventloop); the read accessors
// and Snapshot may be called from any goroutine.
type State struct {
	mu sync.Mutex

	TaskCount int

	unclaimedTasks map[TaskID]struct{}
	runningTasks   map[TaskID]ContainerHandle
	finishedTasks  map[TaskID]struct{}
	taskPartitions map[TaskID][]PartitionRef

	neededContainers int

	completedTasks     int
	failedContainers   int
	releasedContainers int

	status Status
}

// New creates a State for a job with taskCount task groups. The task
// sets stay empty until ClaimAllUnclaimed is called (see
// pkg/taskmgr.Manager.OnInit).
func New(taskCount int) *State {
	s := &State{
		TaskCount:      taskCount,
		unclaimedTasks: make(map[TaskID]struct{}, taskCount),
		runningTasks:   make(map[TaskID]ContainerHandle, taskCount),
		finishedTasks:  make(map[TaskID]struct{}, taskCount),
		taskPartitions: make(map[TaskID][]PartitionRef, taskCount),
		status:         StatusUndefined,
	}
	return s
}

// ClaimAllUnclaimed resets unclaimedTasks to the full task-id range and
// sets neededContainers to the task count. Called once, from onInit.
func (s *State) ClaimAllUnclaimed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < s.TaskCount; i++ {
		s.unclaimedTasks[TaskID(i)] = struct{}{}
	}
	s.neededContainers = s.TaskCount
}

// PickUnclaimed returns the smallest TaskID in unclaimedTasks and true,
// or (0, false) if unclaimedTasks is empty. Picking the smallest keeps
// allocation deterministic for tests.
func (s *State) PickUnclaimed() (TaskID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.unclaimedTasks) == 0 {
		return 0, false
	}
	best := TaskID(-1)
	for id := range s.unclaimedTasks {
		if best == -1 || id < best {
			best = id
		}
	}
	return best, true
}

// BindContainer moves taskID out of unclaimedTasks and into
// runningTasks bound to the given handle, recording its partition
// assignment. Decrements NeededContainers.
func (s *State) BindContainer(taskID TaskID, handle ContainerHandle, partitions []PartitionRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.unclaimedTasks, taskID)
	s.runningTasks[taskID] = handle
	s.taskPartitions[taskID] = partitions
	if s.neededContainers > 0 {
		s.neededContainers--
	}
}

// TaskForContainer returns the TaskID bound to handle's ID, if any.
func (s *State) TaskForContainer(containerID string) (TaskID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, h := range s.runningTasks {
		if h.ID == containerID {
			return id, true
		}
	}
	return 0, false
}

// ReleaseRunning removes taskID from runningTasks/taskPartitions
// unconditionally; it is a no-op if taskID is not running. Must be
// called before any of MarkFinished/ReturnToUnclaimed so that a task
// is never simultaneously running and unclaimed/finished.
func (s *State) ReleaseRunning(taskID TaskID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runningTasks, taskID)
	delete(s.taskPartitions, taskID)
}

// MarkFinished adds taskID to finishedTasks and increments
// CompletedTasks. If status becomes SUCCEEDED (CompletedTasks ==
// TaskCount) Status is updated. taskKnown controls whether taskID is
// actually recorded in finishedTasks: a completion for an unbound
// container still increments CompletedTasks (the counter is left
// uncapped on purpose), but there is no TaskID to add to the set.
func (s *State) MarkFinished(taskID TaskID, taskKnown bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completedTasks++
	if taskKnown {
		s.finishedTasks[taskID] = struct{}{}
	}
	if s.completedTasks == s.TaskCount {
		s.status = StatusSucceeded
	}
}

// ReturnToUnclaimed puts taskID back into unclaimedTasks. It does not
// touch neededContainers: a retryable completion pairs it with
// IncrementNeeded before requesting a replacement, while a fatal crash
// returns the task without ever asking for another container.
func (s *State) ReturnToUnclaimed(taskID TaskID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unclaimedTasks[taskID] = struct{}{}
}

// IncrementNeeded records one more outstanding container request.
func (s *State) IncrementNeeded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.neededContainers++
}

// IncrementReleased increments the released-containers counter.
func (s *State) IncrementReleased() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releasedContainers++
}

// IncrementFailed increments the failed-containers counter.
func (s *State) IncrementFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedContainers++
}

// SetFailed marks the job as fatally failed.
func (s *State) SetFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusFailed
}

// UnclaimedCount returns len(unclaimedTasks).
func (s *State) UnclaimedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.unclaimedTasks)
}

// RunningCount returns len(runningTasks).
func (s *State) RunningCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runningTasks)
}

// FinishedCount returns len(finishedTasks).
func (s *State) FinishedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.finishedTasks)
}

// NeededCount returns the number of outstanding container requests.
func (s *State) NeededCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.neededContainers
}

// CompletedCount returns the monotonic clean-completion counter.
func (s *State) CompletedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completedTasks
}

// FailedCount returns the monotonic failed-containers counter.
func (s *State) FailedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failedContainers
}

// ReleasedCount returns the monotonic released-containers counter.
func (s *State) ReleasedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releasedContainers
}

// CurrentStatus returns the job's status.
func (s *State) CurrentStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Snapshot is a point-in-time, deep copy of State safe to read from
// any goroutine (e.g. the status HTTP surface).
type Snapshot struct {
	TaskCount          int
	UnclaimedTasks     []TaskID
	RunningTasks       map[TaskID]ContainerHandle
	FinishedTasks      []TaskID
	NeededContainers   int
	CompletedTasks     int
	FailedContainers   int
	ReleasedContainers int
	Status             Status
}

// Snapshot returns a deep copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		TaskCount:          s.TaskCount,
		NeededContainers:   s.neededContainers,
		CompletedTasks:     s.completedTasks,
		FailedContainers:   s.failedContainers,
		ReleasedContainers: s.releasedContainers,
		Status:             s.status,
		RunningTasks:       make(map[TaskID]ContainerHandle, len(s.runningTasks)),
	}
	for id := range s.unclaimedTasks {
		snap.UnclaimedTasks = append(snap.UnclaimedTasks, id)
	}
	for id := range s.finishedTasks {
		snap.FinishedTasks = append(snap.FinishedTasks, id)
	}
	for id, h := range s.runningTasks {
		snap.RunningTasks[id] = h
	}
	return snap
}
