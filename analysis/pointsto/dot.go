package pointsto

import (
	"fmt"
	"strings"

	"github.com/cs-au-dk/incpta/analysis/typefilter"
	"github.com/cs-au-dk/incpta/utils/dot"
	"github.com/cs-au-dk/incpta/utils/graph"
	"golang.org/x/exp/slices"
)

func (g *Graph) objectsString(n int) string {
	objs := g.PointsToSet(n)
	strs := make([]string, 0, len(objs))
	for _, o := range objs {
		strs = append(strs, g.ObjectKey(o).String())
	}
	return "{" + strings.Join(strs, ", ") + "}"
}

// Dot converts the live part of the graph to a DOT graph. Nodes are labelled
// with their points-to sets and filtered edges with their filters. Members of
// a filtered cycle are grouped in a cluster labelled with the cycle's filter.
func (g *Graph) Dot(title string) *dot.DotGraph {
	nodes := g.LiveNodes()

	var filters []*typefilter.TypeFilter
	cycleOf := make(map[int]int)
	for _, n := range nodes {
		f, found := g.CycleFilter(n)
		if !found {
			continue
		}
		i := slices.Index(filters, f)
		if i < 0 {
			i = len(filters)
			filters = append(filters, f)
		}
		cycleOf[n] = i
	}

	G := graph.OfHashable(g.Supersets)
	return G.ToDotGraph(nodes, &graph.VisualizationConfig[int]{
		Title: title,
		ClusterKey: func(n int) any {
			if i, found := cycleOf[n]; found {
				return i
			}
			return nil
		},
		ClusterAttrs: func(key any) (string, dot.DotAttrs) {
			i := key.(int)
			return fmt.Sprintf("cycle%d", i), dot.DotAttrs{
				"label": filters[i].String(),
				"style": "dashed",
			}
		},
		NodeAttrs: func(n int) (string, dot.DotAttrs) {
			return fmt.Sprintf("n%d", n), dot.DotAttrs{
				"label": fmt.Sprintf("%v\n%s", g.Node(n), g.objectsString(n)),
			}
		},
		EdgeAttrs: func(a, b int) dot.DotAttrs {
			var strs []string
			for _, f := range g.Filters(a, b) {
				if !f.IsIdentity() {
					strs = append(strs, f.String())
				}
			}
			if len(strs) == 0 {
				return nil
			}
			return dot.DotAttrs{"label": strings.Join(strs, " | ")}
		},
	})
}

// Render writes an image of the graph to path with the extension of format.
func (g *Graph) Render(path, format string) (string, error) {
	return g.Dot(path).Render(path, format)
}
