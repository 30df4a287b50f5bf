// Package pointsto stores points-to facts and propagates new facts along
// copy edges, collapsing cycles of pointer-equivalent locations on the way.
package pointsto

import (
	"errors"
	"fmt"
	"go/types"
	"sync"
	"sync/atomic"

	"github.com/cs-au-dk/incpta/analysis/config"
	"github.com/cs-au-dk/incpta/analysis/delta"
	"github.com/cs-au-dk/incpta/analysis/relation"
	"github.com/cs-au-dk/incpta/analysis/typefilter"
	"github.com/cs-au-dk/incpta/utils"
	"github.com/cs-au-dk/incpta/utils/intern"
	"golang.org/x/tools/container/intsets"
)

var (
	errFlowSensitivityMismatch = errors.New("flow-sensitivity mismatch")
	errNotMostRecent           = errors.New("object is not a most-recent instance")
	errCollapseInvariant       = errors.New("collapsed node has facts missing from its representative")
)

// ptsCell holds the points-to set of a representative node. A cell whose
// node has been collapsed is marked dead and must not receive new facts.
type ptsCell struct {
	mu   sync.Mutex
	set  intsets.Sparse
	dead bool
}

// Graph is the points-to graph. All methods are safe for concurrent use.
//
// Node identifiers passed to the graph may refer to collapsed nodes; they are
// resolved to their representative before use.
type Graph struct {
	log *config.LogGroup

	nodes   *intern.Dictionary[Node]
	objects *intern.Dictionary[InstanceKey]
	filters *typefilter.Filters

	pts     sync.Map // int -> *ptsCell
	subsets *relation.AnnotatedIntRelation
	reps    representatives

	// collapseMu serializes collapses.
	collapseMu sync.Mutex
	// active counts running propagations.
	active atomic.Int32

	cycles struct {
		sync.Mutex
		members intsets.Sparse
		filters map[int]*typefilter.TypeFilter
	}

	hooks struct {
		sync.RWMutex
		onCollapse []func(member, rep int)
	}
}

func NewGraph(log *config.LogGroup) *Graph {
	if log == nil {
		log = config.Discard()
	}
	g := &Graph{
		log:     log,
		nodes:   intern.NewDictionary[Node](utils.HashableHasher[Node]()),
		objects: intern.NewDictionary[InstanceKey](utils.HashableHasher[InstanceKey]()),
		filters: typefilter.NewFilters(),
		subsets: relation.NewAnnotatedIntRelation(),
	}
	g.cycles.filters = make(map[int]*typefilter.TypeFilter)
	return g
}

// OnCollapse registers a callback invoked whenever member is merged into rep.
func (g *Graph) OnCollapse(do func(member, rep int)) {
	g.hooks.Lock()
	defer g.hooks.Unlock()
	g.hooks.onCollapse = append(g.hooks.onCollapse, do)
}

// Intern returns the identifier of a location.
func (g *Graph) Intern(n Node) int {
	return g.nodes.Intern(n)
}

// Node resolves a node identifier to the location it was created for.
func (g *Graph) Node(id int) Node {
	return g.nodes.Lookup(id)
}

// NumNodes is the number of identifiers handed out so far, including
// collapsed ones.
func (g *Graph) NumNodes() int {
	return g.nodes.Len()
}

// FlowSensitive returns the identifier of the counterpart of local n at
// program point pp. n must be a local declared with PerPoint.
func (g *Graph) FlowSensitive(n int, pp int) int {
	local, ok := g.Node(n).(Local)
	if !ok || !local.PerPoint {
		panic(fmt.Errorf("%w: %v has no flow-sensitive counterpart", errFlowSensitivityMismatch, g.Node(n)))
	}
	return g.Intern(FlowSensitiveNode{local, pp})
}

// HasPerPointFacts checks whether n is a local tracked per program point.
func (g *Graph) HasPerPointFacts(n int) bool {
	local, ok := g.Node(n).(Local)
	return ok && local.PerPoint
}

// Object returns the identifier of an abstract object.
func (g *Graph) Object(k InstanceKey) int {
	return g.objects.Intern(k)
}

// ObjectKey resolves an object identifier.
func (g *Graph) ObjectKey(o int) InstanceKey {
	return g.objects.Lookup(o)
}

// ObjectType is the type of an abstract object.
func (g *Graph) ObjectType(o int) types.Type {
	return g.objects.Lookup(o).Type
}

// NonMostRecent returns the object standing for all but the most recent
// instance of the allocation site of o. o must be a most-recent object.
func (g *Graph) NonMostRecent(o int) int {
	k := g.ObjectKey(o)
	if !k.MostRecent {
		panic(fmt.Errorf("%w: %v", errNotMostRecent, k))
	}
	k.MostRecent = false
	return g.Object(k)
}

// Representative returns the canonical identifier of n.
func (g *Graph) Representative(n int) int {
	return g.reps.find(n)
}

func (g *Graph) cell(rep int) *ptsCell {
	if c, found := g.pts.Load(rep); found {
		return c.(*ptsCell)
	}
	c, _ := g.pts.LoadOrStore(rep, new(ptsCell))
	return c.(*ptsCell)
}

// insert adds objs to the points-to set of n and returns the objects that
// were not present before, together with the representative that received them.
func (g *Graph) insert(n int, objs *intsets.Sparse) (int, *intsets.Sparse) {
	for {
		rep := g.Representative(n)
		c := g.cell(rep)
		c.mu.Lock()
		if c.dead || g.Representative(n) != rep {
			// Collapsed after we resolved it. Resolve again.
			c.mu.Unlock()
			continue
		}
		residual := new(intsets.Sparse)
		residual.Difference(objs, &c.set)
		c.set.UnionWith(residual)
		c.mu.Unlock()
		return rep, residual
	}
}

// snapshot returns a copy of the points-to set of n.
func (g *Graph) snapshot(n int) *intsets.Sparse {
	res := new(intsets.Sparse)
	for {
		rep := g.Representative(n)
		c, found := g.pts.Load(rep)
		if !found {
			// A merge creates the cells of both nodes before uniting them.
			if g.Representative(n) == rep {
				return res
			}
			continue
		}
		cl := c.(*ptsCell)
		cl.mu.Lock()
		if cl.dead || g.Representative(n) != rep {
			cl.mu.Unlock()
			continue
		}
		res.Copy(&cl.set)
		cl.mu.Unlock()
		return res
	}
}

// PointsTo checks whether n may point to o.
func (g *Graph) PointsTo(n, o int) bool {
	return g.snapshot(n).Has(o)
}

// PointsToSet returns the points-to set of n in ascending order.
func (g *Graph) PointsToSet(n int) []int {
	return g.snapshot(n).AppendTo(nil)
}

// Supersets returns the representatives of the nodes that n has copy edges to.
func (g *Graph) Supersets(n int) []int {
	var res intsets.Sparse
	for _, e := range g.subsets.Forward(g.Representative(n)) {
		res.Insert(g.Representative(e.To))
	}
	return res.AppendTo(nil)
}

// Filters returns the filters on the copy edge from src to tgt.
func (g *Graph) Filters(src, tgt int) []*typefilter.TypeFilter {
	var res []*typefilter.TypeFilter
	for _, id := range g.subsets.Annotations(g.Representative(src), g.Representative(tgt)) {
		res = append(res, g.filters.Filter(id))
	}
	return res
}

// IsCycleMember checks whether n takes part in a filtered copy-edge cycle.
// Such nodes are not collapsed.
func (g *Graph) IsCycleMember(n int) bool {
	g.cycles.Lock()
	defer g.cycles.Unlock()
	return g.cycles.members.Has(g.Representative(n))
}

// CycleFilter returns the composition of the filters on the filtered cycle
// through n, if any.
func (g *Graph) CycleFilter(n int) (*typefilter.TypeFilter, bool) {
	g.cycles.Lock()
	defer g.cycles.Unlock()
	f, found := g.cycles.filters[g.Representative(n)]
	return f, found
}

// AddFact records that n may point to o. The returned delta contains every
// fact established as a consequence, and is empty if nothing changed.
func (g *Graph) AddFact(n, o int) delta.GraphDelta {
	var objs intsets.Sparse
	objs.Insert(o)
	return g.AddFacts(n, &objs)
}

// AddFacts records that n may point to every object in objs.
func (g *Graph) AddFacts(n int, objs *intsets.Sparse) delta.GraphDelta {
	d := delta.New()
	if !objs.IsEmpty() {
		g.addToSupersetsOf(n, objs, d)
	}
	return d
}

// AddCopyEdge records that everything src points to and passes filter is
// also pointed to by tgt. A nil filter accepts everything.
func (g *Graph) AddCopyEdge(src int, filter *typefilter.TypeFilter, tgt int) delta.GraphDelta {
	d := delta.New()
	src, tgt = g.Representative(src), g.Representative(tgt)
	if src == tgt {
		// The filtered points-to set of a node is a subset of itself.
		return d
	}

	fid := g.filters.ID(filter)
	if !g.subsets.Add(src, tgt, fid) {
		return d
	}
	g.settle(src, tgt)

	g.log.Tracef("copy edge %v -%v-> %v\n", g.Node(src), filter, g.Node(tgt))

	objs := filter.Apply(g.snapshot(src), g.ObjectType)
	if !objs.IsEmpty() {
		g.addToSupersetsOf(tgt, objs, d)
	}
	return d
}

// settle moves edges that were added under a node collapsed concurrently
// with the insertion over to its representative.
func (g *Graph) settle(nodes ...int) {
	for _, n := range nodes {
		if rep := g.Representative(n); rep != n {
			g.subsets.Replace(n, rep)
		}
	}
}

// ApplyDelta adds every fact in d to the graph and propagates it. Applying
// the same delta twice has the same effect as applying it once.
func (g *Graph) ApplyDelta(d delta.GraphDelta) delta.GraphDelta {
	res := delta.New()
	d.ForEach(func(n int, objs *intsets.Sparse) {
		g.addToSupersetsOf(n, objs, res)
	})
	return res
}

// LiveNodes returns the representatives that hold facts or copy edges.
func (g *Graph) LiveNodes() []int {
	var live intsets.Sparse
	g.pts.Range(func(k, v any) bool {
		c := v.(*ptsCell)
		c.mu.Lock()
		if !c.dead && !c.set.IsEmpty() {
			live.Insert(k.(int))
		}
		c.mu.Unlock()
		return true
	})
	for _, n := range g.subsets.Keys() {
		live.Insert(g.Representative(n))
		for _, e := range g.subsets.Forward(n) {
			live.Insert(g.Representative(e.To))
		}
	}
	return live.AppendTo(nil)
}
