// Package callee tracks which call-graph nodes transitively call which, and
// answers call-graph reachability queries incrementally.
package callee

import (
	"fmt"
	"sync"

	"github.com/cs-au-dk/incpta/analysis/config"
	"github.com/cs-au-dk/incpta/analysis/trigger"
	"github.com/cs-au-dk/incpta/utils"
	"github.com/cs-au-dk/incpta/utils/graph"
	"github.com/cs-au-dk/incpta/utils/hmap"
	"golang.org/x/tools/container/intsets"
)

// CalleeDependency is the record of a call-graph node: its direct callees and
// the nodes that call it directly.
type CalleeDependency struct {
	Node int

	mu         sync.Mutex
	callees    intsets.Sparse
	dependents intsets.Sparse
	// queries are the destinations of unanswered reachability queries from
	// the node. Guarded by the tracker's reachMu.
	queries intsets.Sparse
}

func (c *CalleeDependency) addCallee(child int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callees.Insert(child)
}

func (c *CalleeDependency) addDependent(parent int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dependents.Insert(parent)
}

// Callees returns the direct callees of the node.
func (c *CalleeDependency) Callees() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callees.AppendTo(nil)
}

// Dependents returns the direct callers of the node.
func (c *CalleeDependency) Dependents() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dependents.AppendTo(nil)
}

func (c *CalleeDependency) String() string {
	return fmt.Sprintf("%d → %v", c.Node, c.Callees())
}

// Pair is a call-graph reachability question.
type Pair struct {
	Src, Dst int
}

// Tracker is the global cache of callee dependencies. It is safe for
// concurrent use.
type Tracker struct {
	log  *config.LogGroup
	deps *hmap.Map[int, *CalleeDependency]

	// reachMu orders reachability answers against edge insertions, so an
	// origin is either answered true or registered before the edge that
	// would flip it is examined.
	reachMu   sync.Mutex
	reachable sync.Map // Pair -> struct{}
	waiting   *trigger.Registry[Pair]
	// rechecks counts the pending queries examined by AddCallee.
	rechecks int
}

func NewTracker(log *config.LogGroup) *Tracker {
	if log == nil {
		log = config.Discard()
	}
	return &Tracker{
		log:     log,
		deps:    hmap.NewMap[*CalleeDependency, int](utils.IntHasher{}),
		waiting: trigger.NewRegistry[Pair](),
	}
}

// GetOrCreate returns the record of node. Concurrent first uses agree on one
// record.
func (t *Tracker) GetOrCreate(node int) *CalleeDependency {
	dep, _ := t.deps.LoadOrStore(node, func() *CalleeDependency {
		return &CalleeDependency{Node: node}
	})
	return dep
}

func (t *Tracker) callees(node int) []int {
	if dep, found := t.deps.GetOk(node); found {
		return dep.Callees()
	}
	return nil
}

func (t *Tracker) dependents(node int) []int {
	if dep, found := t.deps.GetOk(node); found {
		return dep.Dependents()
	}
	return nil
}

// AddCallee records that parent calls child. It reports whether the edge is
// new, and returns the origins waiting for a reachability answer that the
// edge turned true. Only queries from parent and its transitive callers are
// examined.
func (t *Tracker) AddCallee(parent, child int) (bool, []trigger.Origin) {
	if !t.GetOrCreate(parent).addCallee(child) {
		return false, nil
	}
	t.GetOrCreate(child).addDependent(parent)
	t.log.Tracef("call edge %d → %d\n", parent, child)

	t.reachMu.Lock()
	defer t.reachMu.Unlock()

	var origins []trigger.Origin
	recheck := func(src int) {
		dep, found := t.deps.GetOk(src)
		if !found {
			return
		}
		for _, dst := range dep.queries.AppendTo(nil) {
			t.rechecks++
			if !t.reaches(src, dst) {
				continue
			}
			p := Pair{src, dst}
			dep.queries.Remove(dst)
			t.reachable.Store(p, struct{}{})
			origins = append(origins, t.waiting.Fire(p)...)
		}
	}
	recheck(parent)
	t.Dependencies(parent, func(n int) bool {
		if n != parent {
			recheck(n)
		}
		return true
	})
	return true, origins
}

// traverse visits the nodes reachable from node through next, excluding node
// unless it lies on a cycle, until visit returns false.
func traverse(node int, next func(int) []int, visit func(int) bool) {
	graph.OfHashable(next).BFSV(func(n int) bool {
		return !visit(n)
	}, next(node)...)
}

// Dependencies enumerates every node whose transitive callees include node.
// Enumeration stops early if yield returns false. The callee graph is
// re-traversed on every call, so the result reflects all edges added so far.
func (t *Tracker) Dependencies(node int, yield func(int) bool) {
	traverse(node, t.dependents, yield)
}

// Callees returns the transitive callees of node.
func (t *Tracker) Callees(node int) []int {
	var res intsets.Sparse
	traverse(node, t.callees, func(n int) bool {
		res.Insert(n)
		return true
	})
	return res.AppendTo(nil)
}

func (t *Tracker) reaches(src, dst int) (found bool) {
	if src == dst {
		return true
	}
	traverse(src, t.callees, func(n int) bool {
		found = n == dst
		return !found
	})
	return
}

// Reachable checks whether dst is src or a transitive callee of src. A false
// answer registers origin (unless nil) to be returned by the AddCallee call
// that makes it true. True answers are memoised.
func (t *Tracker) Reachable(src, dst int, origin trigger.Origin) bool {
	p := Pair{src, dst}
	if _, found := t.reachable.Load(p); found {
		return true
	}

	t.reachMu.Lock()
	defer t.reachMu.Unlock()
	if t.reaches(src, dst) {
		t.reachable.Store(p, struct{}{})
		return true
	}
	if origin != nil {
		t.waiting.Register(p, origin)
		t.GetOrCreate(src).queries.Insert(dst)
	}
	return false
}
