package pointsto

import (
	"github.com/cs-au-dk/incpta/analysis/delta"
	"github.com/cs-au-dk/incpta/analysis/typefilter"
	"github.com/cs-au-dk/incpta/utils/graph"
	"golang.org/x/tools/container/intsets"
)

// identityGraph is the graph of unfiltered copy edges between representatives.
func (g *Graph) identityGraph() graph.Graph[int] {
	return graph.OfHashable(func(n int) (ret []int) {
		for _, e := range g.subsets.Forward(n) {
			for _, f := range e.Tokens {
				if f == typefilter.IdentityID {
					ret = append(ret, g.Representative(e.To))
					break
				}
			}
		}
		return
	})
}

// CollapseCycles collapses every cycle of unfiltered copy edges, including
// cycles that no fact has flowed through yet. The returned delta contains the
// facts gained by the representatives.
func (g *Graph) CollapseCycles() delta.GraphDelta {
	d := delta.New()
	reps := g.collapseSCCs(d)

	// Edges that moved to a representative have not seen its full set yet.
	for _, rep := range reps {
		g.propagateFrom(rep, g.snapshot(rep), d)
	}
	return d
}

func (g *Graph) collapseSCCs(d delta.GraphDelta) (reps []int) {
	g.collapseMu.Lock()
	defer g.collapseMu.Unlock()

	scc := g.identityGraph().SCC(g.LiveNodes())
	for _, comp := range scc.Components {
		if len(comp) < 2 {
			continue
		}

		rep := g.Representative(comp[0])
		for _, m := range comp[1:] {
			if m = g.Representative(m); m != rep {
				rep = g.merge(m, rep, d)
			}
		}
		reps = append(reps, rep)
		g.log.Debugf("collapsed cycle of %d nodes into %v\n", len(comp), g.Node(rep))
	}
	return
}

// propagateFrom pushes objs along every copy edge out of n.
func (g *Graph) propagateFrom(n int, objs *intsets.Sparse, d delta.GraphDelta) {
	for _, s := range g.steps(g.Representative(n)) {
		filtered := g.filters.Filter(s.filter).Apply(objs, g.ObjectType)
		if !filtered.IsEmpty() {
			g.addToSupersetsOf(s.to, filtered, d)
		}
	}
}
