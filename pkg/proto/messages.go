// Package proto holds the message types and narrow ports exchanged between
// the scheduler and executor cores. Keeping them in a
// standalone leaf package lets pkg/scheduler and pkg/executor each depend
// on the other's interface without importing one another's concrete
// types — there is no coordinator import cycle to untangle.
package proto

import (
	"time"

	"github.com/khryptorgraphics/dagsim/pkg/dag"
)

// ExecutorPort is the slice of Executor behavior the scheduler drives:
// enough to pick a free executor, dispatch onto it, and release its slot
// back. The concrete *executor.Executor satisfies this structurally.
type ExecutorPort interface {
	ID() int
	Cores() int
	AvailableSlots() int
	Dispatch(lt *dag.LaunchTask)
	ReleaseSlot()

	// Fetch serves a shuffle read of stage dep on behalf of the task
	// identified by requesterTID. shuffleAvg is the requester's own
	// stage's stats.shuffle.avg — shuffle cost is attributed to the
	// consumer, since leaf/producer stages carry no shuffle stat at all.
	// It spawns a fetch_proc that sleeps shuffleAvg and then calls
	// onDone(true); if this executor dies first, onDone(false) is called
	// instead via the "disconnect" interrupt.
	Fetch(requesterTID, dep int, shuffleAvg time.Duration, onDone func(ok bool))
}

// SchedulerPort is the slice of Scheduler behavior an Executor depends on:
// just enough to forward a terminal message. The concrete
// *scheduler.Scheduler satisfies this structurally.
type SchedulerPort interface {
	Handle(msg interface{})
}

// ExecutorRegistered announces that an executor has joined the cluster.
type ExecutorRegistered struct {
	Executor ExecutorPort
}

// ExecutorKilled announces that an executor has died.
type ExecutorKilled struct {
	EID int
}

// StatusUpdate reports a launch attempt reaching a terminal state.
type StatusUpdate struct {
	TID    int
	Status dag.LaunchStatus
	EID    int
}

// FetchFailed reports that a downstream task could not fetch a parent
// stage's map output.
type FetchFailed struct {
	TID int
	Dep int
	EID int
}

// LaunchTaskMsg dispatches a launch attempt onto an executor.
type LaunchTaskMsg struct {
	Launch *dag.LaunchTask
}

// KillTaskMsg asks an executor to kill one of its own in-flight launches.
// Part of the protocol surface though no scripted flow emits it.
type KillTaskMsg struct {
	TID int
}

// Membership is the single shared view of "which executors are currently
// alive", written only by the scheduler and read by every executor's
// task_procs when resolving a peer for a shuffle fetch. Because the whole
// engine runs on one cooperative kernel, a plain map needs no locking: the
// scheduler's writes are visible to every process that runs afterward.
type Membership struct {
	byID map[int]ExecutorPort
}

// NewMembership returns an empty membership table.
func NewMembership() *Membership {
	return &Membership{byID: make(map[int]ExecutorPort)}
}

// Register adds or replaces the entry for ex's id.
func (m *Membership) Register(ex ExecutorPort) { m.byID[ex.ID()] = ex }

// Remove drops eid from the table.
func (m *Membership) Remove(eid int) { delete(m.byID, eid) }

// Get returns the executor registered under eid, if any.
func (m *Membership) Get(eid int) (ExecutorPort, bool) {
	ex, ok := m.byID[eid]
	return ex, ok
}

// Alive reports whether eid is currently a cluster member.
func (m *Membership) Alive(eid int) bool {
	_, ok := m.byID[eid]
	return ok
}
