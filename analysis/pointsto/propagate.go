package pointsto

import (
	"fmt"

	"github.com/cs-au-dk/incpta/analysis/delta"
	"github.com/cs-au-dk/incpta/analysis/typefilter"
	"golang.org/x/tools/container/intsets"
)

// step is a copy edge out of a frame, with one of the filters on it.
type step struct {
	to     int
	filter int
}

// frame is the propagation state of one node on the explicit call stack.
type frame struct {
	node int
	// residual are the objects that were new at node.
	residual *intsets.Sparse
	// filter is the filter on the edge through which the frame was entered.
	filter int
	steps  []step
	next   int
}

// propagation is the state of one addToSupersetsOf call.
type propagation struct {
	g       *Graph
	d       delta.GraphDelta
	stack   []*frame
	onStack map[int]int
	// groups are the node sets found to be pointer-equivalent.
	groups [][]int
}

// addToSupersetsOf adds objs to the points-to set of target and transitively
// to every superset of target, recording net-new facts in d. Cycles found
// along the way are collapsed when the propagation is complete.
//
// The recursion is run on an explicit stack, since propagation depth is
// bounded only by the length of copy-edge chains.
func (g *Graph) addToSupersetsOf(target int, objs *intsets.Sparse, d delta.GraphDelta) {
	g.active.Add(1)
	defer g.active.Add(-1)

	p := &propagation{
		g:       g,
		d:       d,
		onStack: make(map[int]int),
	}

	p.enter(target, objs, typefilter.IdentityID)
	for len(p.stack) > 0 {
		top := p.stack[len(p.stack)-1]
		if top.next == len(top.steps) {
			p.pop()
			continue
		}

		s := top.steps[top.next]
		top.next++

		filtered := g.filters.Filter(s.filter).Apply(top.residual, g.ObjectType)
		if filtered.IsEmpty() {
			continue
		}
		p.enter(s.to, filtered, s.filter)
	}

	g.applyCollapses(p.groups, d)
}

func (p *propagation) enter(node int, objs *intsets.Sparse, filter int) {
	node = p.g.Representative(node)
	if pos, found := p.onStack[node]; found {
		p.cycle(pos, filter)
	}

	rep, residual := p.g.insert(node, objs)
	if residual.IsEmpty() {
		return
	}
	p.d.AddAll(rep, residual)

	if _, found := p.onStack[rep]; !found {
		p.onStack[rep] = len(p.stack)
	}
	p.stack = append(p.stack, &frame{
		node:     rep,
		residual: residual,
		filter:   filter,
		steps:    p.g.steps(rep),
	})
}

func (p *propagation) pop() {
	top := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	if pos, found := p.onStack[top.node]; found && pos == len(p.stack) {
		delete(p.onStack, top.node)
	}
}

// cycle handles the cycle closed by an edge with the given filter from the
// top of the stack back to the frame at pos.
func (p *propagation) cycle(pos int, closing int) {
	segment := p.stack[pos:]

	identity := closing == typefilter.IdentityID
	composed := p.g.filters.Filter(closing)
	for _, fr := range segment[1:] {
		if fr.filter != typefilter.IdentityID {
			identity = false
		}
		composed = typefilter.Compose(composed, p.g.filters.Filter(fr.filter))
	}

	nodes := make([]int, 0, len(segment))
	for _, fr := range segment {
		nodes = append(nodes, fr.node)
	}

	switch {
	case identity:
		p.groups = append(p.groups, nodes)
	case composed.IsRejectAll():
		// No object survives a trip around the cycle.
	default:
		p.g.markCycle(nodes, composed)
	}
}

// steps lists the copy edges out of rep, one step per filter.
func (g *Graph) steps(rep int) (res []step) {
	for _, e := range g.subsets.Forward(rep) {
		for _, f := range e.Tokens {
			res = append(res, step{e.To, f})
		}
	}
	return
}

func (g *Graph) markCycle(nodes []int, composed *typefilter.TypeFilter) {
	g.cycles.Lock()
	defer g.cycles.Unlock()
	for _, n := range nodes {
		g.cycles.members.Insert(n)
		g.cycles.filters[n] = composed
	}
	g.log.Tracef("filtered cycle %v with filter %v\n", nodes, composed)
}

// applyCollapses merges every group of pointer-equivalent nodes and pushes
// the merged sets along the copy edges of the representatives.
func (g *Graph) applyCollapses(groups [][]int, d delta.GraphDelta) {
	if len(groups) == 0 {
		return
	}

	for _, rep := range g.mergeGroups(groups, d) {
		// Edges moved from a member have not seen the facts of the rest of the
		// class.
		g.propagateFrom(rep, g.snapshot(rep), d)
	}
}

func (g *Graph) mergeGroups(groups [][]int, d delta.GraphDelta) []int {
	g.collapseMu.Lock()
	defer g.collapseMu.Unlock()

	var reps intsets.Sparse
	for _, grp := range groups {
		// Other propagations may have collapsed group members since the group
		// was found, so every member is resolved again.
		rep := g.Representative(grp[0])
		for _, m := range grp[1:] {
			m = g.Representative(m)
			if m == rep {
				continue
			}

			// The cycle forces equal points-to sets, so every fact that was new
			// at m must have reached the representative. Concurrent propagations
			// may still be carrying some of them, in which case the merge hands
			// them over.
			if mine := d.Objects(m); !mine.SubsetOf(g.snapshot(rep)) && g.active.Load() == 1 {
				panic(fmt.Errorf("%w: %v ⊈ pts(%v)", errCollapseInvariant, mine, g.Node(rep)))
			}
			rep = g.merge(m, rep, d)
		}
		reps.Insert(rep)
	}

	// A later group may have merged the representative of an earlier one.
	var res intsets.Sparse
	for _, rep := range reps.AppendTo(nil) {
		res.Insert(g.Representative(rep))
	}
	return res.AppendTo(nil)
}

// merge collapses the representatives x and y into one node and returns the
// surviving representative. Facts the survivor gains are recorded in d.
//
// Both cells stay locked while the representatives are united, so no reader
// can observe the survivor before it holds the facts of the other node.
func (g *Graph) merge(x, y int, d delta.GraphDelta) int {
	cx, cy := g.cell(x), g.cell(y)
	cx.mu.Lock()
	cy.mu.Lock()
	rep := g.reps.union(x, y)
	member, mc, rc := y, cy, cx
	if rep == y {
		member, mc, rc = x, cx, cy
	}
	gained := new(intsets.Sparse)
	gained.Difference(&mc.set, &rc.set)
	rc.set.UnionWith(gained)
	mc.set.Clear()
	mc.dead = true
	cy.mu.Unlock()
	cx.mu.Unlock()

	g.subsets.Replace(member, rep)

	g.cycles.Lock()
	if g.cycles.members.Remove(member) {
		g.cycles.members.Insert(rep)
		g.cycles.filters[rep] = typefilter.Compose(g.cycles.filters[rep], g.cycles.filters[member])
		delete(g.cycles.filters, member)
	}
	g.cycles.Unlock()

	if !gained.IsEmpty() {
		d.AddAll(rep, gained)
	}
	d.Rename(member, rep)

	g.log.Debugf("collapsed %v into %v\n", g.Node(member), g.Node(rep))

	g.hooks.RLock()
	defer g.hooks.RUnlock()
	for _, do := range g.hooks.onCollapse {
		do(member, rep)
	}
	return rep
}
