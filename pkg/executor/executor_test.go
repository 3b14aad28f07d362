package executor

import (
	"testing"
	"time"

	"github.com/khryptorgraphics/dagsim/pkg/dag"
	"github.com/khryptorgraphics/dagsim/pkg/kernel"
	"github.com/khryptorgraphics/dagsim/pkg/proto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingScheduler captures forwarded messages instead of running the
// real scheduler, so executor behavior can be asserted in isolation.
type recordingScheduler struct {
	msgs []interface{}
}

func (r *recordingScheduler) Handle(msg interface{}) { r.msgs = append(r.msgs, msg) }

func newSourceStage(partitions int, avg time.Duration) *dag.Stage {
	st := &dag.Stage{ID: 0, Status: dag.StagePending, Partitions: partitions, Stats: dag.StageStats{Avg: avg}}
	st.Tasks = make([]*dag.Task, partitions)
	for i := range st.Tasks {
		st.Tasks[i] = &dag.Task{Index: i, Stage: st, Status: dag.TaskPending, Current: dag.NoLaunch, LaunchedTasks: map[int]*dag.LaunchTask{}}
	}
	return st
}

func TestTaskProcWithNoDepsRunsComputeThenCompletes(t *testing.T) {
	k := kernel.New()
	stage := newSourceStage(1, 10*time.Second)
	g := &dag.DAG{Stages: []*dag.Stage{stage}}
	m := proto.NewMembership()
	sched := &recordingScheduler{}

	ex := New(0, 1, k, g, m, sched, zerolog.Nop())
	m.Register(ex)

	lt := &dag.LaunchTask{TID: 1, EID: 0, Task: stage.Tasks[0], Status: dag.LaunchRunning}
	stage.Tasks[0].Current = 1
	stage.Tasks[0].LaunchedTasks[1] = lt

	ex.Dispatch(lt)
	assert.Equal(t, 0, ex.AvailableSlots(), "dispatch must claim the slot immediately")
	runtime := k.Run()

	assert.Equal(t, 10*time.Second, runtime)
	require.Len(t, sched.msgs, 1)
	su := sched.msgs[0].(proto.StatusUpdate)
	assert.Equal(t, 1, su.TID)
	assert.Equal(t, dag.LaunchCompleted, su.Status)
	assert.Empty(t, ex.taskprocs)
}

func TestKillInterruptsTaskProcAndSynthesizesKilledStatus(t *testing.T) {
	k := kernel.New()
	stage := newSourceStage(1, 10*time.Second)
	g := &dag.DAG{Stages: []*dag.Stage{stage}}
	m := proto.NewMembership()
	sched := &recordingScheduler{}

	ex := New(0, 1, k, g, m, sched, zerolog.Nop())
	lt := &dag.LaunchTask{TID: 1, EID: 0, Task: stage.Tasks[0]}
	stage.Tasks[0].Current = 1
	stage.Tasks[0].LaunchedTasks[1] = lt
	ex.Dispatch(lt)

	// Let the dispatch event run so taskprocs[1] is actually registered,
	// then kill before the 10s compute timer fires.
	k.Schedule(0, func() { ex.Kill() })
	runtime := k.Run()

	require.Len(t, sched.msgs, 1)
	su := sched.msgs[0].(proto.StatusUpdate)
	assert.Equal(t, dag.LaunchKilled, su.Status)
	assert.Less(t, runtime, 10*time.Second)
}

func TestRemoteFetchFailureWhenParentStageNotCompleted(t *testing.T) {
	k := kernel.New()
	parent := newSourceStage(1, 1*time.Second)
	child := &dag.Stage{ID: 1, Deps: []int{0}, Status: dag.StagePending, Partitions: 1,
		Stats: dag.StageStats{Avg: time.Second, Shuffle: &dag.ShuffleStats{Avg: time.Second}}}
	child.Tasks = []*dag.Task{{Index: 0, Stage: child, Status: dag.TaskPending, Current: dag.NoLaunch, LaunchedTasks: map[int]*dag.LaunchTask{}}}
	g := &dag.DAG{Stages: []*dag.Stage{parent, child}}
	m := proto.NewMembership()
	sched := &recordingScheduler{}

	ex := New(0, 2, k, g, m, sched, zerolog.Nop())
	lt := &dag.LaunchTask{TID: 5, EID: 0, Task: child.Tasks[0]}
	child.Tasks[0].Current = 5
	child.Tasks[0].LaunchedTasks[5] = lt

	ex.Dispatch(lt)
	k.Run()

	require.Len(t, sched.msgs, 1)
	ff := sched.msgs[0].(proto.FetchFailed)
	assert.Equal(t, 5, ff.TID)
	assert.Equal(t, 0, ff.Dep)
}

func TestFetchSchedulesShuffleAvgAndReportsDone(t *testing.T) {
	k := kernel.New()
	stage := &dag.Stage{ID: 0, Status: dag.StageCompleted}
	g := &dag.DAG{Stages: []*dag.Stage{stage}}
	m := proto.NewMembership()
	sched := &recordingScheduler{}
	ex := New(1, 1, k, g, m, sched, zerolog.Nop())

	var gotOK *bool
	ex.Fetch(42, 0, 3*time.Second, func(ok bool) { gotOK = &ok })
	runtime := k.Run()

	assert.Equal(t, 3*time.Second, runtime)
	require.NotNil(t, gotOK)
	assert.True(t, *gotOK)
	assert.Empty(t, ex.fetchprocs)
}
