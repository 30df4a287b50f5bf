package problem

import (
	"fmt"
	"go/types"

	"github.com/cs-au-dk/incpta/analysis/astring"
	"github.com/cs-au-dk/incpta/analysis/pointsto"
	"github.com/cs-au-dk/incpta/analysis/pta"
	"github.com/cs-au-dk/incpta/analysis/reach"
	"github.com/cs-au-dk/incpta/analysis/typefilter"
	"golang.org/x/tools/container/intsets"
)

// Instance is a problem loaded into an analysis.
type Instance struct {
	a *pta.Analysis
	p *Problem

	nodes   map[string]int
	objects map[string]int
	names   map[int]string
	strings map[string]int

	// points are the program points at which facts of per-point nodes are
	// reported.
	points  map[int]*intsets.Sparse
	queries []reach.ProgramPointSubQuery
}

// load adds the copy edge src → dst once cond points to obj at pp.
type load struct {
	cond, obj, pp int
	src, dst      int
}

func (l load) Key() any { return l }

func (l load) Evaluate(a *pta.Analysis) {
	if a.PointsTo(l.cond, l.obj, l.pp, a.StatementOrigin(l)) {
		a.AddCopyEdge(l.src, nil, l.dst)
	}
}

type stringDefKey int

// stringDef joins constants and the values of deps into v.
type stringDef struct {
	v         int
	constants []string
	deps      []int
}

func (s stringDef) Key() any { return stringDefKey(s.v) }

func (s stringDef) Evaluate(a *pta.Analysis) {
	val := astring.Constant(s.constants...)
	for _, d := range s.deps {
		if ds, ok := a.GetAStringFor(d); ok {
			val = val.Join(ds)
		}
	}
	a.JoinString(s.v, val)
}

func lookupType(name string) (types.Type, error) {
	if name == "" {
		name = "any"
	}
	if tn, ok := types.Universe.Lookup(name).(*types.TypeName); ok {
		return tn.Type(), nil
	}
	return nil, fmt.Errorf("%w: %q", errUnknownType, name)
}

func (i *Instance) node(name string) (int, error) {
	if n, found := i.nodes[name]; found {
		return n, nil
	}
	return 0, fmt.Errorf("%w: node %q", errUnknownName, name)
}

func (i *Instance) object(name string) (int, error) {
	if o, found := i.objects[name]; found {
		return o, nil
	}
	return 0, fmt.Errorf("%w: object %q", errUnknownName, name)
}

func (i *Instance) all(names []string, get func(string) (int, error)) ([]int, error) {
	res := make([]int, 0, len(names))
	for _, name := range names {
		id, err := get(name)
		if err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	return res, nil
}

func (i *Instance) addPoint(n, pp int) {
	if pp == pta.NoPoint || !i.a.Graph().HasPerPointFacts(n) {
		return
	}
	if i.points[n] == nil {
		i.points[n] = new(intsets.Sparse)
	}
	i.points[n].Insert(pp)
}

func point(pp *int) int {
	if pp == nil {
		return pta.NoPoint
	}
	return *pp
}

// Build declares the problem in a and submits its initial work. Nothing is
// solved until a.Solve is called.
func (p *Problem) Build(a *pta.Analysis) (*Instance, error) {
	i := &Instance{
		a:       a,
		p:       p,
		nodes:   make(map[string]int),
		objects: make(map[string]int),
		names:   make(map[int]string),
		strings: make(map[string]int),
		points:  make(map[int]*intsets.Sparse),
	}
	g := a.Graph()

	for _, o := range p.Objects {
		if _, found := i.objects[o.Name]; found {
			return nil, fmt.Errorf("%w: object %q", errDuplicateName, o.Name)
		}
		typ, err := lookupType(o.Type)
		if err != nil {
			return nil, err
		}
		id := g.Object(pointsto.InstanceKey{Site: o.Site, Type: typ, MostRecent: true})
		i.objects[o.Name] = id
		i.names[id] = o.Name
	}

	for _, n := range p.Nodes {
		if _, found := i.nodes[n.Name]; found {
			return nil, fmt.Errorf("%w: node %q", errDuplicateName, n.Name)
		}
		typ, err := lookupType(n.Type)
		if err != nil {
			return nil, err
		}

		var node pointsto.Node
		switch {
		case n.Object != "":
			obj, err := i.object(n.Object)
			if err != nil {
				return nil, err
			}
			node = pointsto.Field{Object: obj, Field: n.Field, Type: typ}
		case n.Local:
			node = pointsto.Local{Context: n.Context, Var: n.Var, Type: typ, PerPoint: n.PerPoint}
		default:
			node = pointsto.Static{Name: n.Name, Type: typ}
		}
		i.nodes[n.Name] = g.Intern(node)
	}

	for _, pt := range p.Points {
		kills, err := i.all(pt.Kills, i.node)
		if err != nil {
			return nil, err
		}
		allocs, err := i.all(pt.Allocs, i.object)
		if err != nil {
			return nil, err
		}
		a.AddPoint(pt.Point, kills, allocs)
	}
	for _, e := range p.Successors {
		a.AddSuccessor(e.From, e.To)
	}
	for _, e := range p.Calls {
		a.AddCallee(e.From, e.To)
	}

	for _, f := range p.Facts {
		n, err := i.node(f.Node)
		if err != nil {
			return nil, err
		}
		o, err := i.object(f.Object)
		if err != nil {
			return nil, err
		}
		pp := point(f.Point)
		i.addPoint(n, pp)
		a.AddFact(a.At(n, pp), o)
	}

	for _, e := range p.Edges {
		if err := i.addEdge(e); err != nil {
			return nil, err
		}
	}

	for _, l := range p.Loads {
		stmt := load{pp: point(l.At)}
		var err error
		if stmt.cond, err = i.node(l.If); err != nil {
			return nil, err
		}
		if stmt.obj, err = i.object(l.PointsTo); err != nil {
			return nil, err
		}
		if stmt.src, err = i.node(l.Copy); err != nil {
			return nil, err
		}
		if stmt.dst, err = i.node(l.To); err != nil {
			return nil, err
		}
		i.addPoint(stmt.cond, stmt.pp)
		a.Submit(stmt)
	}

	for _, s := range p.AddToSet {
		n, err := i.node(s.Node)
		if err != nil {
			return nil, err
		}
		o, err := i.object(s.Object)
		if err != nil {
			return nil, err
		}
		to, err := i.node(s.To)
		if err != nil {
			return nil, err
		}
		i.addPoint(n, s.Point)
		a.NewAddToSetOrigin(n, o, s.Point, to)
	}

	for _, d := range p.Degrade {
		n, err := i.node(d.Node)
		if err != nil {
			return nil, err
		}
		o, err := i.object(d.Object)
		if err != nil {
			return nil, err
		}
		a.NewNonMostRecentOrigin(n, o, d.Alloc, d.Use)
	}

	for _, q := range p.Queries {
		noKill, err := i.all(q.NoKill, i.node)
		if err != nil {
			return nil, err
		}
		noAlloc, err := i.all(q.NoAlloc, i.object)
		if err != nil {
			return nil, err
		}
		i.queries = append(i.queries, reach.NewQuery(q.Src, q.Dst, noKill, noAlloc, q.Forbidden))
	}

	if err := i.addStrings(); err != nil {
		return nil, err
	}
	return i, nil
}

func (i *Instance) addEdge(e Edge) error {
	src, err := i.node(e.Src)
	if err != nil {
		return err
	}
	dst, err := i.node(e.Dst)
	if err != nil {
		return err
	}

	var filter *typefilter.TypeFilter
	if e.Is != "" || len(e.Not) > 0 {
		var is types.Type
		if e.Is != "" {
			if is, err = lookupType(e.Is); err != nil {
				return err
			}
		}
		not := make([]types.Type, 0, len(e.Not))
		for _, name := range e.Not {
			t, err := lookupType(name)
			if err != nil {
				return err
			}
			not = append(not, t)
		}
		filter = typefilter.New(is, not...)
	}
	i.a.AddCopyEdge(src, filter, dst)
	return nil
}

func (i *Instance) stringVar(name string) (int, error) {
	if v, found := i.strings[name]; found {
		return v, nil
	}
	return 0, fmt.Errorf("%w: string %q", errUnknownName, name)
}

func (i *Instance) addStrings() error {
	a := i.a
	for _, s := range i.p.Strings {
		if _, found := i.strings[s.Name]; found {
			return fmt.Errorf("%w: string %q", errDuplicateName, s.Name)
		}
		i.strings[s.Name] = a.StringVariable(astring.StringVariableReplica{Context: s.Context, Var: s.Var})
	}

	for _, s := range i.p.Strings {
		deps, err := i.all(s.DependsOn, i.stringVar)
		if err != nil {
			return err
		}
		def := stringDef{i.strings[s.Name], s.Constants, deps}
		for _, d := range deps {
			a.RecordStringDependency(def.v, d)
			a.RecordStringUse(d, def)
		}
		a.RecordStringDefinition(def.v, def)
	}

	for _, s := range i.p.Strings {
		if s.Active {
			a.ActivateString(i.strings[s.Name])
		}
	}
	return nil
}
