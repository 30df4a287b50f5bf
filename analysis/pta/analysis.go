// Package pta is the entry point of the incremental points-to analysis. It
// connects the points-to graph, reachability, call-graph and string solvers
// to the scheduler, and re-runs the computations that depend on new facts.
package pta

import (
	"context"

	"github.com/cs-au-dk/incpta/analysis/astring"
	"github.com/cs-au-dk/incpta/analysis/callee"
	"github.com/cs-au-dk/incpta/analysis/config"
	"github.com/cs-au-dk/incpta/analysis/delta"
	"github.com/cs-au-dk/incpta/analysis/pointsto"
	"github.com/cs-au-dk/incpta/analysis/reach"
	"github.com/cs-au-dk/incpta/analysis/scheduler"
	"github.com/cs-au-dk/incpta/analysis/trigger"
	"github.com/cs-au-dk/incpta/analysis/typefilter"
	"golang.org/x/tools/container/intsets"
)

// NoPoint asks for flow-insensitive facts.
const NoPoint = -1

type Analysis struct {
	cfg *config.Config
	log *config.LogGroup

	graph   *pointsto.Graph
	reach   *reach.Reachability
	callees *callee.Tracker
	strings *astring.Solver
	sched   *scheduler.Scheduler

	waiters    *trigger.Registry[trigger.NodeObject]
	statements statements
}

// New creates an analysis. A nil log discards all output.
func New(cfg *config.Config, log *config.LogGroup) *Analysis {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = config.Discard()
	}
	a := &Analysis{
		cfg:     cfg,
		log:     log,
		graph:   pointsto.NewGraph(log),
		reach:   reach.NewReachability(log),
		callees: callee.NewTracker(log),
		strings: astring.NewSolver(cfg, log),
		sched:   scheduler.New(cfg, log),
		waiters: trigger.NewRegistry[trigger.NodeObject](),
	}
	a.graph.OnCollapse(a.migrate)
	return a
}

func (a *Analysis) Graph() *pointsto.Graph            { return a.graph }
func (a *Analysis) Reachability() *reach.Reachability { return a.reach }
func (a *Analysis) Callees() *callee.Tracker          { return a.callees }
func (a *Analysis) Strings() *astring.Solver          { return a.strings }
func (a *Analysis) Scheduler() *scheduler.Scheduler   { return a.sched }

// Solve runs submitted work to a fixpoint. If enabled in the configuration,
// cycles that propagation did not discover are collapsed at every fixpoint
// and solving resumes until nothing changes.
func (a *Analysis) Solve(ctx context.Context) error {
	for {
		if err := a.sched.Run(ctx); err != nil {
			return err
		}
		if !a.cfg.CollapseCycles {
			break
		}
		if a.CollapseCycles(); a.sched.Pending() == 0 {
			break
		}
	}
	a.log.Infof("fixpoint after %d tasks, %d nodes, %d live\n",
		a.sched.Executed(), a.graph.NumNodes(), len(a.graph.LiveNodes()))
	return nil
}

// At returns the node holding the facts of n at pp.
func (a *Analysis) At(n, pp int) int {
	if pp != NoPoint && a.graph.HasPerPointFacts(n) {
		return a.graph.FlowSensitive(n, pp)
	}
	return n
}

// PointsTo checks whether n may point to o at pp. If not, origin (unless
// nil) is triggered once the fact is established.
func (a *Analysis) PointsTo(n, o, pp int, origin trigger.Origin) bool {
	n = a.At(n, pp)
	if a.graph.PointsTo(n, o) {
		return true
	}
	if origin == nil {
		return false
	}

	for {
		rep := a.graph.Representative(n)
		key := trigger.NodeObject{Node: rep, Object: o}
		a.waiters.Register(key, origin)
		if a.graph.Representative(n) != rep {
			// Collapsed under our feet. Make sure we end up at the live node.
			continue
		}
		if a.graph.PointsTo(rep, o) {
			// Established concurrently with the registration.
			a.fire(key)
		}
		return false
	}
}

// AddFact records that n points to o and schedules the dependents of every
// resulting fact.
func (a *Analysis) AddFact(n, o int) delta.GraphDelta {
	d := a.graph.AddFact(n, o)
	a.dispatch(d)
	return d
}

// AddFacts records that n points to every object in objs.
func (a *Analysis) AddFacts(n int, objs ...int) delta.GraphDelta {
	var s intsets.Sparse
	for _, o := range objs {
		s.Insert(o)
	}
	d := a.graph.AddFacts(n, &s)
	a.dispatch(d)
	return d
}

// AddCopyEdge records that tgt points to everything src points to that
// passes filter.
func (a *Analysis) AddCopyEdge(src int, filter *typefilter.TypeFilter, tgt int) delta.GraphDelta {
	d := a.graph.AddCopyEdge(src, filter, tgt)
	a.dispatch(d)
	return d
}

// CollapseCycles runs the offline cycle collapse.
func (a *Analysis) CollapseCycles() delta.GraphDelta {
	d := a.graph.CollapseCycles()
	a.dispatch(d)
	return d
}

// AddPoint defines the nodes killed and objects allocated at pp.
func (a *Analysis) AddPoint(pp int, kills, allocs []int) {
	a.reach.AddPoint(pp, kills, allocs)
}

// IsReachable answers a program-point reachability query. If the answer is
// false, origin is triggered once it flips.
func (a *Analysis) IsReachable(q reach.ProgramPointSubQuery, origin trigger.Origin) bool {
	return a.reach.IsReachable(q, origin)
}

// AddSuccessor records a control-flow edge and schedules the re-evaluation
// of the queries it may affect.
func (a *Analysis) AddSuccessor(from, to int) {
	for _, qid := range a.reach.AddSuccessor(from, to) {
		a.sched.Submit(a.reevaluation(qid))
	}
}

// AddCallee records a call edge and reports whether it is new.
func (a *Analysis) AddCallee(parent, child int) bool {
	isNew, origins := a.callees.AddCallee(parent, child)
	for _, o := range origins {
		a.schedule(o, delta.New())
	}
	return isNew
}

// IsProcedureReachable checks whether dst is src or transitively called by
// src. If not, origin is triggered once it is.
func (a *Analysis) IsProcedureReachable(src, dst int, origin trigger.Origin) bool {
	return a.callees.Reachable(src, dst, origin)
}
