// Package delta defines the change-sets produced by points-to propagation.
package delta

import (
	"fmt"
	"strings"

	"github.com/cs-au-dk/incpta/utils"
	"github.com/fatih/color"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/tools/container/intsets"
)

var colorize = struct {
	Node   func(...interface{}) string
	Object func(...interface{}) string
}{
	Node: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgYellow).SprintFunc())(is...)
	},
	Object: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgCyan).SprintFunc())(is...)
	},
}

// GraphDelta maps nodes to the objects newly added to their points-to sets.
// Points-to sets only grow, so a delta never records removals, and two deltas
// combine by per-node union.
//
// A GraphDelta is not safe for concurrent mutation.
type GraphDelta struct {
	m map[int]*intsets.Sparse
}

// New returns an empty delta.
func New() GraphDelta {
	return GraphDelta{make(map[int]*intsets.Sparse)}
}

// Of returns a delta with a single node binding.
func Of(node int, objs ...int) GraphDelta {
	d := New()
	for _, o := range objs {
		d.Add(node, o)
	}
	return d
}

func (d GraphDelta) entry(node int) *intsets.Sparse {
	s, found := d.m[node]
	if !found {
		s = new(intsets.Sparse)
		d.m[node] = s
	}
	return s
}

// Add records obj as new at node and reports whether it was not yet recorded.
func (d GraphDelta) Add(node, obj int) bool {
	return d.entry(node).Insert(obj)
}

// AddAll records all objs as new at node.
func (d GraphDelta) AddAll(node int, objs *intsets.Sparse) bool {
	if objs.IsEmpty() {
		return false
	}
	return d.entry(node).UnionWith(objs)
}

// Objects returns the objects recorded at node. The result must not be modified.
func (d GraphDelta) Objects(node int) *intsets.Sparse {
	if s, found := d.m[node]; found {
		return s
	}
	return new(intsets.Sparse)
}

// Contains checks whether obj is recorded at node.
func (d GraphDelta) Contains(node, obj int) bool {
	s, found := d.m[node]
	return found && s.Has(obj)
}

// Intersects checks whether any of objs is recorded at node.
func (d GraphDelta) Intersects(node int, objs *intsets.Sparse) bool {
	s, found := d.m[node]
	return found && s.Intersects(objs)
}

// Nodes returns the nodes with a non-empty entry in ascending order.
func (d GraphDelta) Nodes() []int {
	nodes := make([]int, 0, len(d.m))
	for n, s := range d.m {
		if !s.IsEmpty() {
			nodes = append(nodes, n)
		}
	}
	slices.Sort(nodes)
	return nodes
}

// ForEach visits every non-empty entry in ascending node order.
func (d GraphDelta) ForEach(do func(node int, objs *intsets.Sparse)) {
	for _, n := range d.Nodes() {
		do(n, d.m[n])
	}
}

// IsEmpty checks whether the delta records any fact.
func (d GraphDelta) IsEmpty() bool {
	for _, s := range d.m {
		if !s.IsEmpty() {
			return false
		}
	}
	return true
}

// Size is the number of (node, object) facts in the delta.
func (d GraphDelta) Size() (n int) {
	for _, s := range d.m {
		n += s.Len()
	}
	return
}

// Merge adds every fact of other to d.
func (d GraphDelta) Merge(other GraphDelta) {
	for n, s := range other.m {
		d.AddAll(n, s)
	}
}

// Combine returns the union of two deltas without modifying either.
func Combine(d1, d2 GraphDelta) GraphDelta {
	res := d1.Clone()
	res.Merge(d2)
	return res
}

// Clone returns a deep copy of the delta.
func (d GraphDelta) Clone() GraphDelta {
	res := New()
	for n, s := range d.m {
		if !s.IsEmpty() {
			res.entry(n).Copy(s)
		}
	}
	return res
}

// Rename folds the entry of from into the entry of to.
func (d GraphDelta) Rename(from, to int) {
	if from == to {
		return
	}
	if s, found := d.m[from]; found {
		delete(d.m, from)
		d.AddAll(to, s)
	}
}

// Equal checks whether two deltas record the same facts.
func (d GraphDelta) Equal(other GraphDelta) bool {
	n1, n2 := d.Nodes(), other.Nodes()
	if !slices.Equal(n1, n2) {
		return false
	}
	for _, n := range n1 {
		if !d.m[n].Equals(other.m[n]) {
			return false
		}
	}
	return true
}

// Map converts the delta to plain maps, mostly for tests and printing.
func (d GraphDelta) Map() map[int][]int {
	res := make(map[int][]int, len(d.m))
	d.ForEach(func(n int, s *intsets.Sparse) {
		res[n] = s.AppendTo(nil)
	})
	return res
}

func (d GraphDelta) String() string {
	mp := d.Map()
	nodes := maps.Keys(mp)
	slices.Sort(nodes)

	strs := make([]string, 0, len(nodes))
	for _, n := range nodes {
		objs := make([]string, 0, len(mp[n]))
		for _, o := range mp[n] {
			objs = append(objs, colorize.Object(o))
		}
		strs = append(strs, fmt.Sprintf("%s ↦ {%s}", colorize.Node(n), strings.Join(objs, ", ")))
	}
	return "[" + strings.Join(strs, "; ") + "]"
}
