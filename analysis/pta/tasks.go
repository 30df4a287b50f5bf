package pta

import (
	"fmt"

	"github.com/cs-au-dk/incpta/analysis/delta"
	"github.com/cs-au-dk/incpta/analysis/scheduler"
	"github.com/cs-au-dk/incpta/analysis/trigger"
	"golang.org/x/tools/container/intsets"
)

type originKey struct{ trigger.Origin }

// originTask triggers an origin with the facts that fired it.
type originTask struct {
	origin trigger.Origin
	d      delta.GraphDelta
}

func (t originTask) Key() any                 { return originKey{t.origin} }
func (t originTask) Run(*scheduler.Scheduler) { t.origin.Trigger(t.d) }

func (t originTask) Combine(other scheduler.Task) scheduler.Task {
	return originTask{t.origin, delta.Combine(t.d, other.(originTask).d)}
}

func (t originTask) String() string {
	return fmt.Sprintf("trigger %v with %v", t.origin, t.d)
}

type reevaluationKey int

// reevaluation re-evaluates an unsatisfied reachability query.
func (a *Analysis) reevaluation(qid int) scheduler.Task {
	return scheduler.TaskFunc{ID: reevaluationKey(qid), Do: func(*scheduler.Scheduler) {
		if ok, origins := a.reach.Reevaluate(qid); ok {
			for _, o := range origins {
				a.schedule(o, delta.New())
			}
		}
	}}
}

func (a *Analysis) schedule(o trigger.Origin, d delta.GraphDelta) {
	a.sched.Submit(originTask{o, d})
}

// fire schedules the origins waiting for a single fact.
func (a *Analysis) fire(key trigger.NodeObject) {
	for _, o := range a.waiters.Fire(key) {
		a.schedule(o, delta.Of(key.Node, key.Object))
	}
}

// dispatch schedules every origin waiting for a fact in d.
func (a *Analysis) dispatch(d delta.GraphDelta) {
	if d.IsEmpty() {
		return
	}
	a.log.Tracef("dispatching %v\n", d)
	d.ForEach(func(n int, objs *intsets.Sparse) {
		for _, o := range objs.AppendTo(nil) {
			a.fire(trigger.NodeObject{Node: n, Object: o})
		}
	})
}

// migrate moves the waiters of a collapsed node to its representative. Facts
// the representative already holds fire right away.
func (a *Analysis) migrate(member, rep int) {
	moved := a.waiters.MoveMatching(func(k trigger.NodeObject) (trigger.NodeObject, bool) {
		return trigger.NodeObject{Node: rep, Object: k.Object}, k.Node == member
	})
	for _, k := range moved {
		if a.graph.PointsTo(rep, k.Object) {
			a.fire(k)
		}
	}
}
