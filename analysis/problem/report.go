package problem

import (
	"fmt"
	"io"
	"strings"
)

// ObjectName names an object by its declaration. Older instances of a
// declared object are shown as old(name).
func (i *Instance) ObjectName(o int) string {
	if name, found := i.names[o]; found {
		return name
	}
	g := i.a.Graph()
	k := g.ObjectKey(o)
	if !k.MostRecent {
		k.MostRecent = true
		if name, found := i.names[g.Object(k)]; found {
			return "old(" + name + ")"
		}
	}
	return k.String()
}

// PointsTo returns the names of the objects a declared node points to.
func (i *Instance) PointsTo(node string) ([]string, error) {
	n, err := i.node(node)
	if err != nil {
		return nil, err
	}
	return i.pointsTo(n), nil
}

func (i *Instance) pointsTo(n int) []string {
	var res []string
	for _, o := range i.a.Graph().PointsToSet(n) {
		res = append(res, i.ObjectName(o))
	}
	return res
}

func (i *Instance) set(n int) string {
	return "{" + strings.Join(i.pointsTo(n), ", ") + "}"
}

// Report writes the points-to sets of the declared nodes, and the answers to
// the declared queries, to w.
func (i *Instance) Report(w io.Writer) {
	g := i.a.Graph()

	fmt.Fprintln(w, "points-to")
	for _, decl := range i.p.Nodes {
		n := i.nodes[decl.Name]
		fmt.Fprintf(w, "  %s ↦ %s\n", decl.Name, i.set(n))
		if pps, found := i.points[n]; found {
			for _, pp := range pps.AppendTo(nil) {
				fmt.Fprintf(w, "  %s@%d ↦ %s\n", decl.Name, pp, i.set(g.FlowSensitive(n, pp)))
			}
		}
	}

	if len(i.queries) > 0 {
		fmt.Fprintln(w, "reachable")
		for _, q := range i.queries {
			fmt.Fprintf(w, "  %d → %d: %t\n", q.Src, q.Dst, i.a.IsReachable(q, nil))
		}
	}

	if len(i.p.Procedures) > 0 {
		fmt.Fprintln(w, "procedures")
		for _, e := range i.p.Procedures {
			fmt.Fprintf(w, "  %d → %d: %t\n", e.From, e.To, i.a.IsProcedureReachable(e.From, e.To, nil))
		}
	}

	if len(i.p.Strings) > 0 {
		fmt.Fprintln(w, "strings")
		for _, s := range i.p.Strings {
			if val, ok := i.a.GetAStringFor(i.strings[s.Name]); ok {
				fmt.Fprintf(w, "  %s = %v\n", s.Name, val)
			} else {
				fmt.Fprintf(w, "  %s inactive\n", s.Name)
			}
		}
	}
}

// Collapsed lists the declared nodes that share a representative with an
// earlier declared node, as name → earlier name.
func (i *Instance) Collapsed() map[string]string {
	g := i.a.Graph()
	res := make(map[string]string)
	seen := make(map[int]string)
	for _, decl := range i.p.Nodes {
		rep := g.Representative(i.nodes[decl.Name])
		if first, found := seen[rep]; found {
			res[decl.Name] = first
		} else {
			seen[rep] = decl.Name
		}
	}
	return res
}
