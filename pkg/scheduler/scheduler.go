// Package scheduler implements the single coordinator: the authoritative
// cluster membership, the global task-launch registry, and the dispatch
// loop that drives the DAG toward completion.
//
// There are no goroutines and no locks here. The whole engine runs on a
// single real goroutine (pkg/kernel's event loop); every handler below
// runs to completion before the next event is popped, which is exactly
// the cooperative, single-threaded semantics the stale-message check in
// handleStatusUpdate relies on.
package scheduler

import (
	"time"

	"github.com/khryptorgraphics/dagsim/pkg/dag"
	"github.com/khryptorgraphics/dagsim/pkg/proto"
	"github.com/rs/zerolog"
)

// Scheduler is the cluster coordinator.
type Scheduler struct {
	graph *dag.DAG
	log   zerolog.Logger

	membership    *proto.Membership
	executorOrder []int // insertion order, for first-fit tie-breaking

	scheduled map[int]*dag.LaunchTask // tid -> launch, authoritative registry

	nextTID int

	onStageCompleted  func(stageID int)
	onTaskRescheduled func(stageID int)
	onTaskCompleted   func(stageID, taskIndex int, compute time.Duration)
}

// New builds a Scheduler over graph, coordinating executors through the
// shared membership table. log receives one structured event per handled
// message, matching the stdout log line format internal/logging wraps it
// in.
func New(graph *dag.DAG, membership *proto.Membership, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		graph:      graph,
		log:        log,
		membership: membership,
		scheduled:  make(map[int]*dag.LaunchTask),
		nextTID:    1,
	}
}

// OnStageCompleted registers a callback invoked whenever a stage
// transitions to completed, used by the controller for reporting.
func (s *Scheduler) OnStageCompleted(fn func(stageID int)) { s.onStageCompleted = fn }

// OnTaskRescheduled registers a callback invoked whenever a completed task
// of a FetchFailed's parent stage is reset back to pending because its map
// output was lost (recomputation), used by the controller's per-stage
// recomputation-count report. Tasks of the stage that reported the
// FetchFailed are reset without invoking it.
func (s *Scheduler) OnTaskRescheduled(fn func(stageID int)) { s.onTaskRescheduled = fn }

// OnTaskCompleted registers a callback invoked every time an individual
// task launch reaches LaunchCompleted, with the stage's compute duration —
// used by the controller to accumulate utilization's numerator.
func (s *Scheduler) OnTaskCompleted(fn func(stageID, taskIndex int, compute time.Duration)) {
	s.onTaskCompleted = fn
}

// Done reports whether every stage in the DAG has completed.
func (s *Scheduler) Done() bool { return s.graph.Completed() }

// Handle dispatches an inbound message to its handler. Unknown message
// types are logged and ignored.
func (s *Scheduler) Handle(msg interface{}) {
	switch m := msg.(type) {
	case proto.ExecutorRegistered:
		s.handleExecutorRegistered(m)
	case proto.ExecutorKilled:
		s.handleExecutorKilled(m)
	case proto.StatusUpdate:
		s.handleStatusUpdate(m)
	case proto.FetchFailed:
		s.handleFetchFailed(m)
	default:
		s.log.Warn().Interface("message", msg).Msg("scheduler: unhandled message type")
	}
	s.ScheduleRunnableTasks()
}

func (s *Scheduler) handleExecutorRegistered(m proto.ExecutorRegistered) {
	eid := m.Executor.ID()
	if _, exists := s.membership.Get(eid); !exists {
		s.executorOrder = append(s.executorOrder, eid)
	}
	s.membership.Register(m.Executor)
	s.log.Info().Int("eid", eid).Msg("scheduler: executor registered")
}

// handleExecutorKilled derives "every tid currently on this executor" from
// the scheduler's own scheduled registry (every launch whose eid is the
// dead executor) rather than querying the executor, whose task procs are
// not part of the ExecutorPort interface.
func (s *Scheduler) handleExecutorKilled(m proto.ExecutorKilled) {
	for tid, lt := range s.scheduled {
		if lt.EID != m.EID {
			continue
		}
		lt.Task.Status = dag.TaskKilled
		lt.Task.Current = dag.NoLaunch
		lt.Status = dag.LaunchKilled
		delete(s.scheduled, tid)
	}
	s.membership.Remove(m.EID)
	s.executorOrder = removeInt(s.executorOrder, m.EID)
	s.log.Info().Int("eid", m.EID).Msg("scheduler: executor killed")
}

func (s *Scheduler) handleStatusUpdate(m proto.StatusUpdate) {
	launched, ok := s.scheduled[m.TID]
	if !ok || launched.Task.Current != m.TID {
		s.log.Debug().Int("tid", m.TID).Msg("scheduler: stale status update, discarding")
		return
	}

	switch m.Status {
	case dag.LaunchCompleted:
		task := launched.Task
		task.Status = dag.TaskCompleted
		launched.Status = dag.LaunchCompleted
		delete(s.scheduled, m.TID)
		if s.onTaskCompleted != nil {
			s.onTaskCompleted(task.Stage.ID, task.Index, task.Stage.Stats.Avg)
		}
		if stageCompleted(task.Stage) {
			task.Stage.Status = dag.StageCompleted
			if s.onStageCompleted != nil {
				s.onStageCompleted(task.Stage.ID)
			}
		}
		s.releaseSlot(launched.EID)
		s.log.Info().Int("tid", m.TID).Int("stage", task.Stage.ID).Int("task", task.Index).
			Msg("scheduler: task completed")

	case dag.LaunchKilled:
		task := launched.Task
		task.Status = dag.TaskKilled
		task.Current = dag.NoLaunch
		launched.Status = dag.LaunchKilled
		delete(s.scheduled, m.TID)
		s.releaseSlot(launched.EID)
		s.log.Info().Int("tid", m.TID).Msg("scheduler: task killed")

	default:
		s.log.Warn().Str("status", string(m.Status)).Msg("scheduler: unexpected status update")
	}
}

// handleFetchFailed resets the current stage fully (its partial output may
// depend on an inconsistent parent snapshot), while the failed parent
// stage only has its dead-executor partitions recomputed. The asymmetry is
// deliberate: parent output on live executors is still fetchable.
func (s *Scheduler) handleFetchFailed(m proto.FetchFailed) {
	launched, ok := s.scheduled[m.TID]
	if !ok {
		s.log.Debug().Int("tid", m.TID).Msg("scheduler: stale fetch failure, discarding")
		return
	}

	currentStage := launched.Task.Stage
	currentStage.Status = dag.StagePending
	for _, t := range currentStage.Tasks {
		t.Status = dag.TaskPending
		t.Current = dag.NoLaunch
	}
	delete(s.scheduled, m.TID)

	parent := s.graph.Stage(m.Dep)
	parent.Status = dag.StageFailed
	for _, t := range parent.Tasks {
		if t.HasLiveMapOutput(s.isAlive) {
			continue
		}
		if t.Status == dag.TaskCompleted {
			if s.onTaskRescheduled != nil {
				s.onTaskRescheduled(parent.ID)
			}
		}
		t.Status = dag.TaskPending
		t.Current = dag.NoLaunch
	}

	s.releaseSlot(launched.EID)
	s.log.Warn().Int("tid", m.TID).Int("dep", m.Dep).Msg("scheduler: fetch failed, recomputing lost partitions")
}

func (s *Scheduler) isAlive(eid int) bool { return s.membership.Alive(eid) }

func (s *Scheduler) releaseSlot(eid int) {
	if ex, ok := s.membership.Get(eid); ok {
		ex.ReleaseSlot()
	}
}

func stageCompleted(st *dag.Stage) bool {
	for _, t := range st.Tasks {
		if t.Status != dag.TaskCompleted {
			return false
		}
	}
	return true
}

func removeInt(xs []int, v int) []int {
	out := xs[:0]
	for _, x := range xs {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
