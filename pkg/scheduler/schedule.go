package scheduler

import (
	"github.com/khryptorgraphics/dagsim/pkg/dag"
	"github.com/khryptorgraphics/dagsim/pkg/proto"
)

// ScheduleRunnableTasks repeatedly dispatches while a free executor and a
// runnable task both exist. First-fit on
// executors (insertion order) crossed with first-fit on tasks (stage id
// order, then task index order) gives stable, reproducible dispatch
// without needing any affinity or locality bookkeeping.
func (s *Scheduler) ScheduleRunnableTasks() {
	for {
		ex := s.firstFreeExecutor()
		if ex == nil {
			return
		}
		task := s.firstRunnableTask()
		if task == nil {
			return
		}
		s.dispatch(ex, task)
	}
}

func (s *Scheduler) firstFreeExecutor() proto.ExecutorPort {
	for _, eid := range s.executorOrder {
		ex, ok := s.membership.Get(eid)
		if ok && ex.AvailableSlots() > 0 {
			return ex
		}
	}
	return nil
}

// firstRunnableTask traverses eligible stages in id order and, within each,
// tasks in index order, returning the first task that is neither completed
// nor running.
func (s *Scheduler) firstRunnableTask() *dag.Task {
	for _, stage := range s.graph.Stages {
		if !s.stageEligible(stage) {
			continue
		}
		for _, t := range stage.Tasks {
			if t.Status != dag.TaskCompleted && t.Status != dag.TaskRunning {
				return t
			}
		}
	}
	return nil
}

func (s *Scheduler) stageEligible(stage *dag.Stage) bool {
	if stage.Status == dag.StageCompleted {
		return false
	}
	for _, depID := range stage.Deps {
		if s.graph.Stage(depID).Status != dag.StageCompleted {
			return false
		}
	}
	return true
}

// dispatch mints a tid, constructs the LaunchTask, makes it authoritative,
// registers it, and hands it to the executor.
func (s *Scheduler) dispatch(ex proto.ExecutorPort, task *dag.Task) {
	task.Stage.Status = dag.StageRunning
	task.Status = dag.TaskRunning

	tid := s.nextTID
	s.nextTID++

	lt := &dag.LaunchTask{
		TID:    tid,
		EID:    ex.ID(),
		Task:   task,
		Status: dag.LaunchRunning,
	}
	task.Current = tid
	task.LaunchedTasks[tid] = lt
	s.scheduled[tid] = lt

	ex.Dispatch(lt)

	s.log.Debug().Int("tid", tid).Int("eid", ex.ID()).Int("stage", task.Stage.ID).
		Int("task", task.Index).Msg("scheduler: dispatched")
}
