// Package partition maps a task group to the input-stream partitions
// it owns. Assignment is a pure function of (taskID, taskCount,
// allPartitions): it holds no state and is safe to call concurrently.
package partition

import (
	"sort"

	"github.com/cuemby/streamtask/pkg/jobstate"
)

// Assign returns the subset of allPartitions owned by taskID. It
// sorts partitions by (System, Stream, PartitionID) and assigns them
// round-robin modulo taskCount, so TaskId k owns every partition whose
// sorted index satisfies index mod taskCount == k. Stable under
// reordering of allPartitions since the sort is by value, not input
// position.
func Assign(taskID jobstate.TaskID, taskCount int, allPartitions []jobstate.PartitionRef) []jobstate.PartitionRef {
	if taskCount <= 0 {
		return nil
	}

	sorted := make([]jobstate.PartitionRef, len(allPartitions))
	copy(sorted, allPartitions)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.System != b.System {
			return a.System < b.System
		}
		if a.Stream != b.Stream {
			return a.Stream < b.Stream
		}
		return a.PartitionID < b.PartitionID
	})

	var owned []jobstate.PartitionRef
	for idx, p := range sorted {
		if idx%taskCount == int(taskID) {
			owned = append(owned, p)
		}
	}
	return owned
}

// AssignAll computes the assignment for every task in [0, taskCount)
// in one pass, useful for tests and for the status surface that wants
// the full partition-to-task mapping at once.
func AssignAll(taskCount int, allPartitions []jobstate.PartitionRef) map[jobstate.TaskID][]jobstate.PartitionRef {
	result := make(map[jobstate.TaskID][]jobstate.PartitionRef, taskCount)
	for i := 0; i < taskCount; i++ {
		result[jobstate.TaskID(i)] = Assign(jobstate.TaskID(i), taskCount, allPartitions)
	}
	return result
}
