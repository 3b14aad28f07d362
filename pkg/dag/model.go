// Package dag holds the shared data model (Stage/Task/LaunchTask/DataSpec)
// and the JSON loader that builds a DAG from its wire format.
//
// Stages live in a single slice indexed by id. Each stage holds pointers to
// its tasks, each task points back to its stage, and each task keeps every
// launch attempt it has had as a *LaunchTask in a map keyed by tid. These
// are shared pointers, not copies: the scheduler's registry and the
// executors' task procs refer to the same Task and LaunchTask values across
// event boundaries.
package dag

import (
	"time"

	"github.com/khryptorgraphics/dagsim/pkg/skew"
)

// StageStatus is a Stage's lifecycle state.
type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageRunning   StageStatus = "running"
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
)

// TaskStatus is a Task's lifecycle state.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskKilled    TaskStatus = "killed"
)

// LaunchStatus is a LaunchTask's lifecycle state.
type LaunchStatus string

const (
	LaunchRunning   LaunchStatus = "running"
	LaunchCompleted LaunchStatus = "completed"
	LaunchKilled    LaunchStatus = "killed"
)

// NoLaunch is the sentinel Task.Current value meaning "no authoritative
// launch attempt". Real tids are minted starting at 1.
const NoLaunch = 0

// ShuffleStats is the average shuffle-read duration charged to a stage's
// own tasks when they pull a parent stage's output across the network.
type ShuffleStats struct {
	Avg time.Duration
}

// StageStats is a stage's compute-time and shuffle-cost statistics.
type StageStats struct {
	Avg     time.Duration
	Shuffle *ShuffleStats // nil for source stages
}

// DataSpec describes an input or output data distribution. Splits is
// precomputed at load time purely for metric accounting; the scheduler
// never consults it for timing.
type DataSpec struct {
	SizeBytes    int64
	Partitions   int
	Distribution skew.Descriptor
	Splits       []float64
}

// Stage is one node of the job DAG.
type Stage struct {
	ID         int
	Deps       []int
	Status     StageStatus
	Partitions int
	Stats      StageStats
	Input      *DataSpec
	Output     *DataSpec
	Tasks      []*Task
}

// Task is one partition of a Stage.
type Task struct {
	Index         int
	Stage         *Stage
	Status        TaskStatus
	Current       int
	LaunchedTasks map[int]*LaunchTask
}

// LaunchTask is one dispatch attempt of a Task onto an executor. Its tid,
// eid and Task back-reference are immutable once minted; only Status
// mutates.
type LaunchTask struct {
	TID    int
	EID    int
	Task   *Task
	Status LaunchStatus
}

// HasLiveMapOutput reports whether this task's authoritative launch
// attempt produced output that is still fetchable, i.e. the task completed
// and its authoritative executor, per aliveEID, is still a cluster member.
func (t *Task) HasLiveMapOutput(aliveEID func(eid int) bool) bool {
	if t.Status != TaskCompleted || t.Current == NoLaunch {
		return false
	}
	lt, ok := t.LaunchedTasks[t.Current]
	if !ok {
		return false
	}
	return aliveEID(lt.EID)
}

// DAG is the topologically-sorted list of stages forming one job.
type DAG struct {
	Stages []*Stage
}

// Stage returns the stage with the given id, or nil if out of range.
func (g *DAG) Stage(id int) *Stage {
	if id < 0 || id >= len(g.Stages) {
		return nil
	}
	return g.Stages[id]
}

// Completed reports whether every stage in the DAG is completed.
func (g *DAG) Completed() bool {
	for _, s := range g.Stages {
		if s.Status != StageCompleted {
			return false
		}
	}
	return true
}
