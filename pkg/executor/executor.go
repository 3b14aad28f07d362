// Package executor implements the per-node runtime: running LaunchTasks to
// completion, serving shuffle reads to peers, and reacting to being killed.
//
// Like pkg/scheduler, nothing here is a goroutine. task_proc and fetch_proc
// are continuation-passing state machines built from pkg/kernel events and
// pkg/kernel.Suspensions; "suspend on a child process" becomes "register a
// callback and return".
package executor

import (
	"time"

	"github.com/khryptorgraphics/dagsim/pkg/dag"
	"github.com/khryptorgraphics/dagsim/pkg/kernel"
	"github.com/khryptorgraphics/dagsim/pkg/proto"
	"github.com/rs/zerolog"
)

// Executor runs task_procs and fetch_procs for one cluster member.
type Executor struct {
	id    int
	cores int
	slots int

	k          *kernel.Kernel
	graph      *dag.DAG
	membership *proto.Membership
	scheduler  proto.SchedulerPort
	log        zerolog.Logger

	taskprocs  map[int]*kernel.Suspension // tid -> current suspension point
	fetchprocs map[int]*kernel.Suspension // requester tid -> current suspension point
}

// New builds an Executor with the given id and core count. graph and
// membership are shared read-only/shared-mutable views respectively;
// scheduler is where terminal messages are forwarded.
func New(id, cores int, k *kernel.Kernel, graph *dag.DAG, membership *proto.Membership, scheduler proto.SchedulerPort, log zerolog.Logger) *Executor {
	return &Executor{
		id:         id,
		cores:      cores,
		slots:      cores,
		k:          k,
		graph:      graph,
		membership: membership,
		scheduler:  scheduler,
		log:        log,
		taskprocs:  make(map[int]*kernel.Suspension),
		fetchprocs: make(map[int]*kernel.Suspension),
	}
}

func (e *Executor) ID() int             { return e.id }
func (e *Executor) Cores() int          { return e.cores }
func (e *Executor) AvailableSlots() int { return e.slots }

// ReleaseSlot is called by the scheduler only: available_slots is owned by
// whichever component is deciding what to dispatch next.
func (e *Executor) ReleaseSlot() { e.slots++ }

// Dispatch delivers lt to this executor's inbox: handling a LaunchTask
// message spawns its task_proc, which we model as a single deferred
// kernel event. The slot is claimed here, at dispatch time, so the
// scheduler's very next first-fit scan already sees it taken.
func (e *Executor) Dispatch(lt *dag.LaunchTask) {
	e.slots--
	e.k.Post(func() { e.runTaskProc(lt) })
}

func (e *Executor) forward(msg interface{}) { e.scheduler.Handle(msg) }

// runTaskProc is the fetch-then-compute-then-terminate body of a task_proc.
// depIdx/taskIdx close over the whole fetch loop so a single remote fetch
// can suspend and resume exactly where it left off; everything else
// proceeds synchronously within one kernel event, so this task_proc sees a
// total order over its own actions even though other processes interleave.
func (e *Executor) runTaskProc(lt *dag.LaunchTask) {
	tid := lt.TID
	stage := lt.Task.Stage
	depIdx, taskIdx := 0, 0
	killed := false

	finishCompleted := func() {
		if killed {
			return
		}
		delete(e.taskprocs, tid)
		e.forward(proto.StatusUpdate{TID: tid, Status: dag.LaunchCompleted, EID: e.id})
	}
	finishFetchFailed := func(dep int) {
		if killed {
			return
		}
		delete(e.taskprocs, tid)
		e.forward(proto.FetchFailed{TID: tid, Dep: dep, EID: e.id})
	}
	onKilled := func(kernel.Cause) {
		killed = true
		delete(e.taskprocs, tid)
		e.forward(proto.StatusUpdate{TID: tid, Status: dag.LaunchKilled, EID: e.id})
	}

	var runFetchPhase func()
	runCompute := func() {
		timer := e.k.Schedule(stage.Stats.Avg, finishCompleted)
		e.taskprocs[tid] = kernel.NewSuspension(e.k, timer, onKilled)
	}

	runFetchPhase = func() {
		for depIdx < len(stage.Deps) {
			dep := stage.Deps[depIdx]
			depStage := e.graph.Stage(dep)
			if depStage.Status != dag.StageCompleted {
				finishFetchFailed(dep)
				return
			}
			for taskIdx < len(depStage.Tasks) {
				t := depStage.Tasks[taskIdx]
				src, ok := t.LaunchedTasks[t.Current]
				if !ok || t.Current == dag.NoLaunch {
					finishFetchFailed(dep)
					return
				}
				remote, alive := e.membership.Get(src.EID)
				if !alive {
					finishFetchFailed(dep)
					return
				}
				if src.EID == e.id {
					taskIdx++
					continue
				}

				onDone := func(ok bool) {
					if killed {
						return
					}
					if !ok {
						finishFetchFailed(dep)
						return
					}
					taskIdx++
					runFetchPhase()
				}
				e.taskprocs[tid] = kernel.NewSuspension(e.k, nil, onKilled)
				remote.Fetch(tid, dep, stage.Stats.Shuffle.Avg, onDone)
				return
			}
			taskIdx = 0
			depIdx++
		}
		runCompute()
	}

	runFetchPhase()
}

// Fetch spawns a fetch_proc that sleeps shuffleAvg (the requester's own
// stage's shuffle cost), then reports back via onDone. If this executor is
// killed while the fetch_proc is pending, Kill interrupts it with
// "disconnect" and onDone(false) is called instead.
func (e *Executor) Fetch(requesterTID, dep int, shuffleAvg time.Duration, onDone func(ok bool)) {
	done := func() {
		delete(e.fetchprocs, requesterTID)
		onDone(true)
	}
	timer := e.k.Schedule(shuffleAvg, done)
	e.fetchprocs[requesterTID] = kernel.NewSuspension(e.k, timer, func(kernel.Cause) {
		delete(e.fetchprocs, requesterTID)
		onDone(false)
	})
}

// Kill interrupts every task_proc with "killed" and every fetch_proc with
// "disconnect" — the latter is what surfaces as FetchFailed on whichever
// remote task_procs were waiting on this executor's shuffle output.
func (e *Executor) Kill() {
	for _, susp := range e.taskprocs {
		susp.Interrupt(kernel.CauseKilled)
	}
	for _, susp := range e.fetchprocs {
		susp.Interrupt(kernel.CauseDisconnect)
	}
}

// HandleKillTask handles the KillTask message: unused by any scripted flow
// today but part of the protocol surface. If tid is still live here,
// interrupt it and synthesize the terminal status directly.
func (e *Executor) HandleKillTask(tid int) {
	if susp, ok := e.taskprocs[tid]; ok {
		susp.Interrupt(kernel.CauseKilled)
	}
}
