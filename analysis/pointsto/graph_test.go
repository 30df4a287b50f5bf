package pointsto

import (
	"bytes"
	"errors"
	"fmt"
	"go/types"
	"strings"
	"sync"
	"testing"

	"github.com/cs-au-dk/incpta/analysis/delta"
	"github.com/cs-au-dk/incpta/analysis/typefilter"
	"github.com/cs-au-dk/incpta/utils"
	"github.com/google/go-cmp/cmp"
	"github.com/sebdah/goldie/v2"
	"golang.org/x/tools/container/intsets"
)

var (
	tInt    = types.Typ[types.Int]
	tString = types.Typ[types.String]
)

func statics(g *Graph, names ...string) []int {
	res := make([]int, 0, len(names))
	for _, name := range names {
		res = append(res, g.Intern(Static{Name: name, Type: tInt}))
	}
	return res
}

func object(g *Graph, site int, typ types.Type) int {
	return g.Object(InstanceKey{Site: site, Type: typ})
}

func expectPanic(t *testing.T, target error, do func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		if err, ok := r.(error); !ok || !errors.Is(err, target) {
			t.Errorf("Expected panic with %v, got %v", target, r)
		}
	}()
	do()
}

func TestCycleCollapse(t *testing.T) {
	g := NewGraph(nil)
	ns := statics(g, "n1", "n2")
	n1, n2 := ns[0], ns[1]
	o := object(g, 7, tInt)

	g.AddCopyEdge(n1, nil, n2)
	g.AddCopyEdge(n2, nil, n1)
	d := g.AddFact(n1, o)

	if g.Representative(n1) != g.Representative(n2) {
		t.Fatalf("Expected %v and %v to be collapsed", n1, n2)
	}
	for _, n := range ns {
		if diff := cmp.Diff([]int{o}, g.PointsToSet(n)); diff != "" {
			t.Errorf("Unexpected points-to set of %v (-want +got):\n%s", g.Node(n), diff)
		}
	}

	rep := g.Representative(n1)
	if diff := cmp.Diff(map[int][]int{rep: {o}}, d.Map()); diff != "" {
		t.Errorf("Unexpected delta (-want +got):\n%s", diff)
	}

	// Further facts reach both through the representative.
	o2 := object(g, 8, tInt)
	g.AddFact(n2, o2)
	if !g.PointsTo(n1, o2) {
		t.Error("Fact added to collapsed node is not visible through its sibling")
	}
}

func TestCollapseHook(t *testing.T) {
	g := NewGraph(nil)
	ns := statics(g, "a", "b", "c")
	var collapsed [][2]int
	g.OnCollapse(func(member, rep int) {
		collapsed = append(collapsed, [2]int{member, rep})
	})

	g.AddCopyEdge(ns[0], nil, ns[1])
	g.AddCopyEdge(ns[1], nil, ns[2])
	g.AddCopyEdge(ns[2], nil, ns[0])
	g.AddFact(ns[1], object(g, 1, tInt))

	if len(collapsed) != 2 {
		t.Fatalf("Expected two collapses, got %v", collapsed)
	}
	rep := g.Representative(ns[0])
	for _, c := range collapsed {
		if c[1] != rep {
			t.Errorf("%v collapsed into %v, expected %v", c[0], c[1], rep)
		}
	}
	if diff := cmp.Diff([]int{rep}, g.LiveNodes()); diff != "" {
		t.Errorf("Unexpected live nodes (-want +got):\n%s", diff)
	}
}

func TestFilteredNoop(t *testing.T) {
	g := NewGraph(nil)
	ns := statics(g, "src", "tgt")
	src, tgt := ns[0], ns[1]
	g.AddFact(src, object(g, 5, tInt))

	d := g.AddCopyEdge(src, typefilter.RejectAll, tgt)
	if !d.IsEmpty() {
		t.Errorf("Expected empty delta, got %v", d)
	}
	if pts := g.PointsToSet(tgt); len(pts) != 0 {
		t.Errorf("Target points to %v", pts)
	}
}

func TestFilteredPropagation(t *testing.T) {
	g := NewGraph(nil)
	ns := statics(g, "a", "b", "c")
	a, b, c := ns[0], ns[1], ns[2]
	oi, os := object(g, 1, tInt), object(g, 2, tString)

	g.AddCopyEdge(a, typefilter.New(tInt), b)
	g.AddCopyEdge(b, nil, c)
	d := g.AddFacts(a, intsetOf(oi, os))

	expected := map[int][]int{a: {oi, os}, b: {oi}, c: {oi}}
	if diff := cmp.Diff(expected, d.Map()); diff != "" {
		t.Errorf("Unexpected delta (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{b}, g.Supersets(a)); diff != "" {
		t.Errorf("Unexpected supersets (-want +got):\n%s", diff)
	}

	// Adding known facts changes nothing.
	if d := g.AddFact(a, oi); !d.IsEmpty() {
		t.Errorf("Expected empty delta, got %v", d)
	}
}

func TestDeltaIsExactlyTheNewFacts(t *testing.T) {
	g := NewGraph(nil)
	ns := statics(g, "a", "b", "c")
	a, b, c := ns[0], ns[1], ns[2]
	o1, o2 := object(g, 1, tInt), object(g, 2, tInt)

	g.AddFact(c, o1)
	g.AddCopyEdge(a, nil, b)
	g.AddCopyEdge(b, nil, c)

	d := g.AddFacts(a, intsetOf(o1, o2))
	expected := map[int][]int{a: {o1, o2}, b: {o1, o2}, c: {o2}}
	if diff := cmp.Diff(expected, d.Map()); diff != "" {
		t.Errorf("Unexpected delta (-want +got):\n%s", diff)
	}

	// A new edge only reports what the target did not have.
	dn := statics(g, "d")[0]
	g.AddFact(dn, o1)
	d = g.AddCopyEdge(b, nil, dn)
	if diff := cmp.Diff(map[int][]int{dn: {o2}}, d.Map()); diff != "" {
		t.Errorf("Unexpected delta (-want +got):\n%s", diff)
	}
}

func TestApplyDeltaIdempotent(t *testing.T) {
	g := NewGraph(nil)
	ns := statics(g, "a", "b")
	g.AddCopyEdge(ns[0], nil, ns[1])

	d := delta.Of(ns[0], object(g, 1, tInt), object(g, 2, tInt))
	first := g.ApplyDelta(d)
	if first.Size() != 4 {
		t.Errorf("Expected 4 new facts, got %v", first)
	}
	if second := g.ApplyDelta(d); !second.IsEmpty() {
		t.Errorf("Reapplying a delta produced %v", second)
	}
}

func TestMonotonicity(t *testing.T) {
	g := NewGraph(nil)
	ns := statics(g, "a", "b", "c", "d")
	var objs []int
	for i := 0; i < 10; i++ {
		objs = append(objs, object(g, i, tInt))
	}

	before := make(map[int][]int)
	check := func() {
		t.Helper()
		for _, n := range ns {
			now := intsetOf(g.PointsToSet(n)...)
			if !intsetOf(before[n]...).SubsetOf(now) {
				t.Fatalf("Points-to set of %v shrank from %v to %v", g.Node(n), before[n], now)
			}
			before[n] = now.AppendTo(nil)
		}
	}

	for i, o := range objs {
		g.AddFact(ns[i%len(ns)], o)
		check()
		g.AddCopyEdge(ns[i%len(ns)], nil, ns[(i+1)%len(ns)])
		check()
	}
}

func TestFilteredCycle(t *testing.T) {
	g := NewGraph(nil)
	ns := statics(g, "a", "b")
	a, b := ns[0], ns[1]
	notString := typefilter.New(nil, tString)

	g.AddCopyEdge(a, notString, b)
	g.AddCopyEdge(b, nil, a)
	g.AddFact(a, object(g, 1, tInt))

	if g.Representative(a) == g.Representative(b) {
		t.Error("Filtered cycle was collapsed")
	}
	for _, n := range ns {
		if !g.IsCycleMember(n) {
			t.Errorf("%v is not a cycle member", g.Node(n))
		}
	}
	if f, found := g.CycleFilter(a); !found || !f.Equal(notString) {
		t.Errorf("Unexpected cycle filter %v", f)
	}

	// Strings stop at the filter.
	g.AddFact(a, object(g, 2, tString))
	if diff := cmp.Diff([]int{0}, g.PointsToSet(b)); diff != "" {
		t.Errorf("Unexpected points-to set (-want +got):\n%s", diff)
	}
}

func TestCollapseCycles(t *testing.T) {
	g := NewGraph(nil)
	ns := statics(g, "a", "b", "c", "out")
	a, b, c, out := ns[0], ns[1], ns[2], ns[3]
	o1, o2 := object(g, 1, tInt), object(g, 2, tInt)

	g.AddFact(a, o1)
	g.AddFact(c, o2)
	// Every edge of the cycle is added when the nodes it leads back to
	// already hold what flows in, so nothing is collapsed online.
	g.AddCopyEdge(b, nil, a)
	g.AddCopyEdge(c, nil, b)
	g.AddCopyEdge(a, nil, c)
	g.AddCopyEdge(c, nil, out)
	if g.Representative(a) == g.Representative(b) {
		t.Fatal("Cycle was collapsed online")
	}

	g.CollapseCycles()
	rep := g.Representative(a)
	if g.Representative(b) != rep || g.Representative(c) != rep {
		t.Fatal("Expected a, b and c to be collapsed")
	}
	if g.Representative(out) == rep {
		t.Error("out was collapsed into the cycle")
	}
	for _, n := range ns {
		if diff := cmp.Diff([]int{o1, o2}, g.PointsToSet(n)); diff != "" {
			t.Errorf("Unexpected points-to set of %v (-want +got):\n%s", g.Node(n), diff)
		}
	}
}

func TestConcurrentPropagation(t *testing.T) {
	g := NewGraph(nil)
	var ns []int
	for i := 0; i < 8; i++ {
		ns = append(ns, g.Intern(Static{Name: fmt.Sprint("n", i), Type: tInt}))
	}
	for i := range ns {
		g.AddCopyEdge(ns[i], nil, ns[(i+1)%len(ns)])
	}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g.AddFact(ns[i%len(ns)], object(g, i, tInt))
		}(i)
	}
	wg.Wait()

	for _, n := range ns {
		if l := len(g.PointsToSet(n)); l != 32 {
			t.Errorf("%v points to %d objects, expected 32", g.Node(n), l)
		}
	}
}

func TestConcurrentCollapseIsMonotone(t *testing.T) {
	const (
		size    = 8
		objects = 64
	)
	for round := 0; round < 20; round++ {
		g := NewGraph(nil)
		var ns []int
		for i := 0; i < size; i++ {
			ns = append(ns, g.Intern(Static{Name: fmt.Sprint("n", i), Type: tInt}))
		}
		for i := 0; i+1 < size; i++ {
			g.AddCopyEdge(ns[i], nil, ns[i+1])
		}

		var writers, readers sync.WaitGroup
		done := make(chan struct{})
		errs := make(chan string, size)
		for _, n := range ns {
			readers.Add(1)
			go func(n int) {
				defer readers.Done()
				prev := new(intsets.Sparse)
				for {
					select {
					case <-done:
						return
					default:
					}
					cur := g.snapshot(n)
					if !prev.SubsetOf(cur) {
						errs <- fmt.Sprintf("%v shrank from %v to %v", g.Node(n), prev, cur)
						return
					}
					prev = cur
				}
			}(n)
		}

		// Back edges close cycles through every node while facts flow.
		for i := 1; i < size; i++ {
			writers.Add(1)
			go func(i int) {
				defer writers.Done()
				g.AddCopyEdge(ns[i], nil, ns[0])
			}(i)
		}
		for i := 0; i < objects; i++ {
			writers.Add(1)
			go func(i int) {
				defer writers.Done()
				g.AddFact(ns[i%size], object(g, i, tInt))
			}(i)
		}
		writers.Wait()
		close(done)
		readers.Wait()
		close(errs)
		for err := range errs {
			t.Error(err)
		}

		g.CollapseCycles()
		rep := g.Representative(ns[0])
		for _, n := range ns {
			if g.Representative(n) != rep {
				t.Errorf("%v was not collapsed into %v", g.Node(n), g.Node(rep))
			}
			if l := len(g.PointsToSet(n)); l != objects {
				t.Errorf("%v points to %d objects, expected %d", g.Node(n), l, objects)
			}
		}
		if t.Failed() {
			return
		}
	}
}

func TestFlowSensitive(t *testing.T) {
	g := NewGraph(nil)
	l := g.Intern(Local{Context: 0, Var: 1, Type: tInt, PerPoint: true})
	at3 := g.FlowSensitive(l, 3)
	if at3 == l || g.FlowSensitive(l, 3) != at3 || g.FlowSensitive(l, 4) == at3 {
		t.Error("Flow-sensitive counterparts are not interned per point")
	}
	if !g.Node(at3).FlowSensitive() || !g.HasPerPointFacts(l) {
		t.Error("Expected per-point facts")
	}

	insensitive := g.Intern(Local{Context: 0, Var: 2, Type: tInt})
	expectPanic(t, errFlowSensitivityMismatch, func() { g.FlowSensitive(insensitive, 3) })
}

func TestNonMostRecent(t *testing.T) {
	g := NewGraph(nil)
	recent := g.Object(InstanceKey{Site: 1, Type: tInt, MostRecent: true})
	older := g.NonMostRecent(recent)
	if older == recent || g.ObjectKey(older).MostRecent {
		t.Error("Expected a distinct non-most-recent object")
	}
	if g.NonMostRecent(recent) != older {
		t.Error("Non-most-recent object is not stable")
	}
	expectPanic(t, errNotMostRecent, func() { g.NonMostRecent(older) })
}

func TestDot(t *testing.T) {
	utils.SetNoColorize(true)
	g := NewGraph(nil)
	ns := statics(g, "a", "b", "c")
	g.AddCopyEdge(ns[0], nil, ns[1])
	g.AddCopyEdge(ns[1], nil, ns[2])
	g.AddFact(ns[0], object(g, 1, tInt))

	var out bytes.Buffer
	if err := g.Dot("points-to graph").WriteDot(&out); err != nil {
		t.Fatal(err)
	}
	goldie.New(t).Assert(t, t.Name(), out.Bytes())
}

func TestDotClustersFilteredCycles(t *testing.T) {
	utils.SetNoColorize(true)
	g := NewGraph(nil)
	ns := statics(g, "a", "b", "c")
	notString := typefilter.New(nil, tString)
	g.AddCopyEdge(ns[0], notString, ns[1])
	g.AddCopyEdge(ns[1], nil, ns[0])
	g.AddCopyEdge(ns[1], nil, ns[2])
	g.AddFact(ns[0], object(g, 1, tInt))

	dg := g.Dot("points-to graph")
	if len(dg.Clusters) != 1 {
		t.Fatalf("Expected one cluster, got %d", len(dg.Clusters))
	}
	var ids []string
	for _, n := range dg.Clusters[0].Nodes {
		ids = append(ids, n.ID)
	}
	if diff := cmp.Diff([]string{"n0", "n1"}, ids); diff != "" {
		t.Errorf("Unexpected cluster members (-want +got):\n%s", diff)
	}
	if len(dg.Nodes) != 1 || dg.Nodes[0].ID != "n2" {
		t.Errorf("Unexpected unclustered nodes %v", dg.Nodes)
	}

	var out bytes.Buffer
	if err := dg.WriteDot(&out); err != nil {
		t.Fatal(err)
	}
	want := fmt.Sprintf("label=%q;", notString.String())
	if !strings.Contains(out.String(), `subgraph "cluster_cycle0" {`) || !strings.Contains(out.String(), want) {
		t.Errorf("Cycle cluster is missing:\n%s", out.String())
	}
}

func intsetOf(xs ...int) *intsets.Sparse {
	var s intsets.Sparse
	for _, x := range xs {
		s.Insert(x)
	}
	return &s
}
