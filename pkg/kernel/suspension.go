package kernel

// Cause names why a suspended process was interrupted.
type Cause string

const (
	// CauseKilled is raised on a task_proc when its executor dies.
	CauseKilled Cause = "killed"
	// CauseDisconnect is raised on a fetch waiter when the remote
	// executor serving its shuffle read dies.
	CauseDisconnect Cause = "disconnect"
)

// Suspension represents a process parked at a suspension point: either
// waiting on a local timer (Sleep) or waiting on some other process to
// notify it (a remote fetch). Interrupt raises a cause at that point,
// exactly once, regardless of which kind of wait it currently holds.
type Suspension struct {
	k         *Kernel
	timer     *Event
	onCause   func(Cause)
	fired     bool
}

// NewSuspension builds a suspension tied to an optional local timer. timer
// may be nil when the process is waiting on a remote notification instead
// of a local sleep. onCause is invoked (once, deferred to the next tick)
// when Interrupt is called.
func NewSuspension(k *Kernel, timer *Event, onCause func(Cause)) *Suspension {
	return &Suspension{k: k, timer: timer, onCause: onCause}
}

// Interrupt raises cause at the suspension's current wait point. The
// handler runs on its own kernel tick, never inline, so it observes a
// consistent view of whatever the caller was doing when it interrupted.
func (s *Suspension) Interrupt(cause Cause) {
	if s == nil || s.fired {
		return
	}
	s.fired = true
	if s.timer != nil {
		s.timer.Cancel()
	}
	handler := s.onCause
	if handler == nil {
		return
	}
	s.k.Post(func() { handler(cause) })
}
