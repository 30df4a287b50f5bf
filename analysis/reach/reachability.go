package reach

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cs-au-dk/incpta/analysis/config"
	"github.com/cs-au-dk/incpta/analysis/relation"
	"github.com/cs-au-dk/incpta/analysis/trigger"
	"github.com/cs-au-dk/incpta/utils"
	"github.com/cs-au-dk/incpta/utils/worklist"
	"github.com/fatih/color"
	"golang.org/x/tools/container/intsets"
)

var colorize = struct {
	Point func(...interface{}) string
	Query func(...interface{}) string
}{
	Point: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiCyan).SprintFunc())(is...)
	},
	Query: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgYellow).SprintFunc())(is...)
	},
}

var errPointRedefined = errors.New("program point facts are already defined")

// point holds the facts of a program point. They never change once added.
type point struct {
	kills  *intsets.Sparse
	allocs *intsets.Sparse
}

// answer is the memoised state of one query.
type answer struct {
	mu        sync.Mutex
	reachable bool
}

// Reachability is the program-point reachability relation. It is safe for
// concurrent use.
type Reachability struct {
	log     *config.LogGroup
	queries *Queries

	points     sync.Map // int -> *point
	successors *relation.IntRelation

	answers sync.Map // int -> *answer
	// watchers relates program points to the unsatisfied queries whose search
	// expanded them.
	watchers *relation.IntRelation
	origins  *trigger.Registry[int]
}

func NewReachability(log *config.LogGroup) *Reachability {
	if log == nil {
		log = config.Discard()
	}
	return &Reachability{
		log:        log,
		queries:    NewQueries(),
		successors: relation.NewIntRelation(),
		watchers:   relation.NewIntRelation(),
		origins:    trigger.NewRegistry[int](),
	}
}

func (r *Reachability) Queries() *Queries {
	return r.queries
}

// AddPoint defines the nodes killed and the objects allocated at pp.
// Points that are never added kill and allocate nothing, so a point that an
// edge already leads to can only be added without facts.
func (r *Reachability) AddPoint(pp int, kills, allocs []int) {
	p := &point{setOf(kills), setOf(allocs)}
	prev, loaded := r.points.LoadOrStore(pp, p)
	switch {
	case loaded:
		prev := prev.(*point)
		if !prev.kills.Equals(p.kills) || !prev.allocs.Equals(p.allocs) {
			panic(fmt.Errorf("%w: %s", errPointRedefined, colorize.Point(pp)))
		}
	case p.kills.IsEmpty() && p.allocs.IsEmpty():
	case len(r.successors.Backward(pp)) > 0 || len(r.watchers.Forward(pp)) > 0:
		// Searches may already have passed through pp.
		panic(fmt.Errorf("%w: %s is already reachable", errPointRedefined, colorize.Point(pp)))
	}
}

// AddSuccessor records a control-flow edge from a to b. It returns the
// unsatisfied queries that must be re-evaluated, which is empty if the edge
// was already known.
func (r *Reachability) AddSuccessor(a, b int) []int {
	if !r.successors.Add(a, b) {
		return nil
	}
	return r.watchers.Forward(a)
}

func (r *Reachability) state(qid int) *answer {
	if a, found := r.answers.Load(qid); found {
		return a.(*answer)
	}
	a, _ := r.answers.LoadOrStore(qid, new(answer))
	return a.(*answer)
}

// IsReachable answers q. If the answer is false, origin (unless nil) is
// fired once the answer becomes true.
func (r *Reachability) IsReachable(q ProgramPointSubQuery, origin trigger.Origin) bool {
	return r.IsReachableID(r.queries.Intern(q), origin)
}

// IsReachableID is IsReachable for an interned query.
func (r *Reachability) IsReachableID(qid int, origin trigger.Origin) bool {
	st := r.state(qid)
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.reachable {
		st.reachable = r.search(qid)
	}
	if !st.reachable && origin != nil {
		r.origins.Register(qid, origin)
	}
	return st.reachable
}

// Reevaluate recomputes an unsatisfied query. If it has become reachable, the
// origins waiting for it are returned and forgotten.
func (r *Reachability) Reevaluate(qid int) (bool, []trigger.Origin) {
	st := r.state(qid)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.reachable {
		return true, nil
	}
	if st.reachable = r.search(qid); !st.reachable {
		return false, nil
	}
	r.log.Tracef("query %s became reachable\n", colorize.Query(r.queries.Lookup(qid)))
	return true, r.origins.Fire(qid)
}

// blocks checks whether a path for q may not pass through pp.
func (r *Reachability) blocks(q ProgramPointSubQuery, pp int) bool {
	if q.forbidden.Has(pp) {
		return true
	}
	p, found := r.points.Load(pp)
	if !found {
		return false
	}
	pt := p.(*point)
	return pt.kills.Intersects(q.noKill) || pt.allocs.Intersects(q.noAlloc)
}

// search looks for a non-empty path from the source to the destination of
// the query whose intermediate points are not blocked.
func (r *Reachability) search(qid int) bool {
	q := r.queries.Lookup(qid)

	var visited intsets.Sparse
	found := false
	visited.Insert(q.Src)
	worklist.Start(q.Src, func(pp int, add func(int)) {
		if found {
			return
		}
		// Watch before reading successors, so an edge added concurrently is
		// either seen here or reported by AddSuccessor.
		r.watchers.Add(pp, qid)
		for _, next := range r.successors.Forward(pp) {
			if next == q.Dst {
				found = true
				return
			}
			if !r.blocks(q, next) && visited.Insert(next) {
				add(next)
			}
		}
	})

	if found {
		for _, pp := range visited.AppendTo(nil) {
			r.watchers.Remove(pp, qid)
		}
	}
	return found
}
