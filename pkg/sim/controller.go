// Package sim implements the controller/lifecycle driver: given a loaded
// DAG, it builds the cluster, wires the scheduler and executors together, schedules
// the scripted failure/autoscale events, runs the kernel to quiescence,
// and renders the final report.
package sim

import (
	"time"

	"github.com/google/uuid"
	"github.com/khryptorgraphics/dagsim/pkg/dag"
	"github.com/khryptorgraphics/dagsim/pkg/executor"
	"github.com/khryptorgraphics/dagsim/pkg/kernel"
	"github.com/khryptorgraphics/dagsim/pkg/proto"
	"github.com/khryptorgraphics/dagsim/pkg/scheduler"
	"github.com/rs/zerolog"
)

// Failure is a scripted executor kill at virtual time At.
type Failure struct {
	EID int
	At  time.Duration
}

// Autoscale is a scripted executor commission at virtual time At.
type Autoscale struct {
	At time.Duration
}

// Options configures one simulation run.
type Options struct {
	Executors        int
	Cores            int
	Failures         []Failure
	Autoscales       []Autoscale
	AutoReplace      bool
	AutoReplaceDelay time.Duration
	Metrics          *Metrics // nil disables metrics collection
}

type aliveInterval struct {
	cores      int
	start, end time.Duration
	open       bool
}

// Controller owns one run's kernel, graph, cluster and reporting state.
type Controller struct {
	RunID string

	k          *kernel.Kernel
	graph      *dag.DAG
	membership *proto.Membership
	sched      *scheduler.Scheduler
	executors  map[int]*executor.Executor
	nextEID    int
	log        zerolog.Logger
	opts       Options

	computed   time.Duration
	intervals  map[int]*aliveInterval
	recomputed map[int]int
}

// New builds a Controller ready to Run graph under opts.
func New(graph *dag.DAG, opts Options, log zerolog.Logger) *Controller {
	runID := uuid.NewString()
	c := &Controller{
		RunID:      runID,
		k:          kernel.New(),
		graph:      graph,
		membership: proto.NewMembership(),
		executors:  make(map[int]*executor.Executor),
		log:        log.With().Str("run_id", runID).Logger(),
		opts:       opts,
		intervals:  make(map[int]*aliveInterval),
		recomputed: make(map[int]int),
	}
	c.sched = scheduler.New(graph, c.membership, c.log.With().Str("component", "scheduler").Logger())
	c.sched.OnTaskRescheduled(func(stageID int) {
		c.recomputed[stageID]++
	})
	c.sched.OnTaskCompleted(func(stageID, taskIndex int, compute time.Duration) {
		c.computed += compute
		if opts.Metrics != nil {
			opts.Metrics.observeTaskCompute(compute)
		}
	})
	if opts.Metrics != nil {
		c.sched.OnStageCompleted(func(int) { opts.Metrics.observeStageCompleted() })
	}
	return c
}

// Now returns the controller's current virtual time, used by
// internal/logging to drive the event logger's timestamp from simulation
// time rather than the wall clock.
func (c *Controller) Now() time.Duration { return c.k.Now() }

// commission builds and registers a new executor with the next free id.
func (c *Controller) commission() *executor.Executor {
	eid := c.nextEID
	c.nextEID++
	ex := executor.New(eid, c.opts.Cores, c.k, c.graph, c.membership, c.sched, c.log.With().Str("component", "executor").Int("eid", eid).Logger())
	c.executors[eid] = ex
	c.intervals[eid] = &aliveInterval{cores: c.opts.Cores, start: c.k.Now(), open: true}
	c.sched.Handle(proto.ExecutorRegistered{Executor: ex})
	if c.opts.Metrics != nil {
		c.opts.Metrics.setExecutorsAlive(len(c.membershipAlive()))
	}
	c.log.Info().Int("eid", eid).Msg("controller: executor commissioned")
	return ex
}

func (c *Controller) membershipAlive() []int {
	alive := make([]int, 0, len(c.executors))
	for eid := range c.executors {
		if c.membership.Alive(eid) {
			alive = append(alive, eid)
		}
	}
	return alive
}

func (c *Controller) killExecutor(eid int) {
	ex, ok := c.executors[eid]
	if !ok || !c.membership.Alive(eid) {
		return
	}
	ex.Kill()
	c.sched.Handle(proto.ExecutorKilled{EID: eid})
	if iv, ok := c.intervals[eid]; ok {
		iv.end = c.k.Now()
		iv.open = false
	}
	if c.opts.Metrics != nil {
		c.opts.Metrics.setExecutorsAlive(len(c.membershipAlive()))
	}
	c.log.Warn().Int("eid", eid).Msg("controller: executor killed")
}

// Run wires the cluster, schedules every configured event, and drains the
// kernel to completion, returning the final report.
func (c *Controller) Run() Report {
	for i := 0; i < c.opts.Executors; i++ {
		c.commission()
	}

	for _, f := range c.opts.Failures {
		f := f
		c.k.Schedule(f.At, func() {
			if !c.membership.Alive(f.EID) {
				return
			}
			c.killExecutor(f.EID)
			if c.opts.AutoReplace {
				c.k.Schedule(c.opts.AutoReplaceDelay, func() {
					c.commission()
				})
			}
		})
	}
	for _, a := range c.opts.Autoscales {
		a := a
		c.k.Schedule(a.At, func() {
			c.commission()
		})
	}

	runtime := c.k.Run()
	return c.report(runtime)
}

func (c *Controller) report(runtime time.Duration) Report {
	var denom time.Duration
	for _, iv := range c.intervals {
		end := iv.end
		if iv.open {
			end = runtime
		}
		denom += time.Duration(iv.cores) * (end - iv.start)
	}

	utilization := 0.0
	if denom > 0 {
		utilization = c.computed.Seconds() / denom.Seconds()
	}
	if c.opts.Metrics != nil {
		c.opts.Metrics.setUtilization(utilization)
	}

	return buildReport(c.RunID, runtime, utilization, c.graph, c.recomputed)
}
