// Package reach answers demand-driven program-point reachability queries.
//
// A query asks whether control can flow from one program point to another
// without passing through forbidden points, points that kill given nodes, or
// points that allocate given objects. Answers only ever flip from false to
// true, and origins that observed a false answer are fired when that happens.
package reach

import (
	"fmt"
	"strings"

	"github.com/cs-au-dk/incpta/utils"
	"github.com/cs-au-dk/incpta/utils/intern"
	"golang.org/x/tools/container/intsets"
)

// ProgramPointSubQuery is an immutable reachability query.
type ProgramPointSubQuery struct {
	Src, Dst  int
	noKill    *intsets.Sparse
	noAlloc   *intsets.Sparse
	forbidden *intsets.Sparse
}

func setOf(xs []int) *intsets.Sparse {
	s := new(intsets.Sparse)
	for _, x := range xs {
		s.Insert(x)
	}
	return s
}

// NewQuery asks whether dst is reachable from src through points that kill
// none of noKill, allocate none of noAlloc and are not forbidden.
func NewQuery(src, dst int, noKill, noAlloc, forbidden []int) ProgramPointSubQuery {
	return ProgramPointSubQuery{
		Src:       src,
		Dst:       dst,
		noKill:    setOf(noKill),
		noAlloc:   setOf(noAlloc),
		forbidden: setOf(forbidden),
	}
}

func (q ProgramPointSubQuery) NoKill() []int    { return q.noKill.AppendTo(nil) }
func (q ProgramPointSubQuery) NoAlloc() []int   { return q.noAlloc.AppendTo(nil) }
func (q ProgramPointSubQuery) Forbidden() []int { return q.forbidden.AppendTo(nil) }

func hashSet(s *intsets.Sparse) uint32 {
	var hs []uint32
	for _, x := range s.AppendTo(nil) {
		hs = append(hs, uint32(x))
	}
	return utils.HashCombine(hs...)
}

func (q ProgramPointSubQuery) Hash() uint32 {
	return utils.HashCombine(
		uint32(q.Src), uint32(q.Dst),
		hashSet(q.noKill), hashSet(q.noAlloc), hashSet(q.forbidden),
	)
}

func sameSet(a, b *intsets.Sparse) bool {
	return a.Len() == b.Len() && a.Equals(b)
}

func (q ProgramPointSubQuery) Equal(o ProgramPointSubQuery) bool {
	return q.Src == o.Src && q.Dst == o.Dst &&
		sameSet(q.noKill, o.noKill) &&
		sameSet(q.noAlloc, o.noAlloc) &&
		sameSet(q.forbidden, o.forbidden)
}

func (q ProgramPointSubQuery) String() string {
	var extra []string
	for _, s := range []struct {
		name string
		set  *intsets.Sparse
	}{{"nokill", q.noKill}, {"noalloc", q.noAlloc}, {"forbidden", q.forbidden}} {
		if !s.set.IsEmpty() {
			extra = append(extra, s.name+"="+s.set.String())
		}
	}
	res := fmt.Sprintf("%s ⇝ %s", colorize.Point(q.Src), colorize.Point(q.Dst))
	if len(extra) > 0 {
		res += " [" + strings.Join(extra, " ") + "]"
	}
	return res
}

// Queries interns queries to dense identifiers.
type Queries struct {
	dict *intern.Dictionary[ProgramPointSubQuery]
}

func NewQueries() *Queries {
	return &Queries{intern.NewDictionary[ProgramPointSubQuery](
		utils.HashableHasher[ProgramPointSubQuery](),
	)}
}

// Intern returns the identifier of q. Equal queries built independently get
// the same identifier.
func (qs *Queries) Intern(q ProgramPointSubQuery) int {
	return qs.dict.Intern(q)
}

// Lookup resolves a query identifier. It panics on identifiers not returned
// by Intern.
func (qs *Queries) Lookup(id int) ProgramPointSubQuery {
	return qs.dict.Lookup(id)
}

func (qs *Queries) Len() int {
	return qs.dict.Len()
}
