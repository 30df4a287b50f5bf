package pta

import (
	"fmt"
	"sync/atomic"

	"github.com/cs-au-dk/incpta/analysis/delta"
	"github.com/cs-au-dk/incpta/analysis/reach"
)

// AddToSetOrigin adds trg to the flow-insensitive set of n once src is
// known to point to trg at pp.
type AddToSetOrigin struct {
	a               *Analysis
	src, trg, pp, n int
}

// NewAddToSetOrigin checks the fact right away, and again whenever it may
// have become true.
func (a *Analysis) NewAddToSetOrigin(src, trg, pp, n int) *AddToSetOrigin {
	o := &AddToSetOrigin{a, src, trg, pp, n}
	o.Trigger(delta.New())
	return o
}

func (o *AddToSetOrigin) Trigger(delta.GraphDelta) {
	if o.a.PointsTo(o.src, o.trg, o.pp, o) && !o.a.graph.PointsTo(o.n, o.trg) {
		o.a.AddFact(o.n, o.trg)
	}
}

func (o *AddToSetOrigin) String() string {
	return fmt.Sprintf("add %d to %v if %v ↦ %d at %d",
		o.trg, o.a.graph.Node(o.n), o.a.graph.Node(o.src), o.trg, o.pp)
}

// NonMostRecentOrigin degrades a reference to the most recent object of an
// allocation site. Once the allocation site can execute again before the
// reference is used, and n is not reassigned on the way to the use, n also
// points to the older instances.
type NonMostRecentOrigin struct {
	a              *Analysis
	n, obj         int
	allocPP, usePP int
	done           atomic.Bool
}

func (a *Analysis) NewNonMostRecentOrigin(n, obj, allocPP, usePP int) *NonMostRecentOrigin {
	o := &NonMostRecentOrigin{a: a, n: n, obj: obj, allocPP: allocPP, usePP: usePP}
	o.Trigger(delta.New())
	return o
}

func (o *NonMostRecentOrigin) Trigger(delta.GraphDelta) {
	if o.done.Load() {
		return
	}
	again := reach.NewQuery(o.allocPP, o.allocPP, nil, nil, nil)
	use := reach.NewQuery(o.allocPP, o.usePP, []int{o.n}, nil, nil)
	if !o.a.IsReachable(again, o) || !o.a.IsReachable(use, o) {
		return
	}
	if o.done.CompareAndSwap(false, true) {
		o.a.AddFact(o.n, o.a.graph.NonMostRecent(o.obj))
	}
}

func (o *NonMostRecentOrigin) String() string {
	return fmt.Sprintf("degrade %v ↦ %v", o.a.graph.Node(o.n), o.a.graph.ObjectKey(o.obj))
}
