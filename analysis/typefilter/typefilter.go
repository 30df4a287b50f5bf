// Package typefilter implements the type predicates attached to copy edges.
//
// A filter accepts an abstract object iff the object's type is assignable to
// every type in Is and to no type in Not. The nil filter accepts everything.
package typefilter

import (
	"fmt"
	"go/types"
	"strings"
	"sync"

	"github.com/cs-au-dk/incpta/utils"
	"github.com/fatih/color"
	"golang.org/x/tools/container/intsets"
	"golang.org/x/tools/go/types/typeutil"
)

var colorize = struct {
	Is  func(...interface{}) string
	Not func(...interface{}) string
}{
	Is: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgGreen).SprintFunc())(is...)
	},
	Not: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgRed).SprintFunc())(is...)
	},
}

// TypeFilter is an immutable predicate over object types.
type TypeFilter struct {
	is        []types.Type
	not       []types.Type
	rejectAll bool
}

// RejectAll is the filter accepting no object.
var RejectAll = &TypeFilter{rejectAll: true}

// Identity is the filter accepting every object. It is represented by nil.
var Identity *TypeFilter

// New creates a filter accepting objects assignable to is (unless is is nil)
// and to none of not.
func New(is types.Type, not ...types.Type) *TypeFilter {
	f := &TypeFilter{not: append([]types.Type(nil), not...)}
	if is != nil {
		f.is = []types.Type{is}
	}
	return f.normalize()
}

// IsIdentity reports whether the filter accepts every object.
func (f *TypeFilter) IsIdentity() bool {
	return f == nil || (!f.rejectAll && len(f.is) == 0 && len(f.not) == 0)
}

// IsRejectAll reports whether the filter is statically known to accept nothing.
func (f *TypeFilter) IsRejectAll() bool {
	return f != nil && f.rejectAll
}

// Accepts checks whether an object of type t passes the filter.
func (f *TypeFilter) Accepts(t types.Type) bool {
	if f == nil {
		return true
	}
	if f.rejectAll {
		return false
	}
	for _, is := range f.is {
		if !assignable(t, is) {
			return false
		}
	}
	for _, not := range f.not {
		if assignable(t, not) {
			return false
		}
	}
	return true
}

// Apply returns the members of objs whose type passes the filter.
// The identity filter returns objs itself.
func (f *TypeFilter) Apply(objs *intsets.Sparse, typeOf func(int) types.Type) *intsets.Sparse {
	if f.IsIdentity() {
		return objs
	}

	res := new(intsets.Sparse)
	if f.rejectAll {
		return res
	}
	for _, o := range objs.AppendTo(nil) {
		if f.Accepts(typeOf(o)) {
			res.Insert(o)
		}
	}
	return res
}

// Compose returns the intersection of two filters. It is RejectAll when the
// intersection is statically empty.
func Compose(f1, f2 *TypeFilter) *TypeFilter {
	switch {
	case f1.IsRejectAll() || f2.IsRejectAll():
		return RejectAll
	case f1.IsIdentity():
		return f2
	case f2.IsIdentity():
		return f1
	}

	return (&TypeFilter{
		is:  append(append([]types.Type(nil), f1.is...), f2.is...),
		not: append(append([]types.Type(nil), f1.not...), f2.not...),
	}).normalize()
}

// normalize removes redundant types and detects statically empty filters.
func (f *TypeFilter) normalize() *TypeFilter {
	var is []types.Type
	for _, t := range f.is {
		redundant := false
		for i, kept := range is {
			switch {
			case assignable(kept, t):
				// kept is at least as narrow as t.
				redundant = true
			case assignable(t, kept):
				is[i] = t
				redundant = true
			case !types.IsInterface(t) && !types.IsInterface(kept):
				// Two unrelated concrete types have no common inhabitant.
				return RejectAll
			case types.IsInterface(t) != types.IsInterface(kept):
				// Neither is assignable to the other, so the concrete type
				// does not implement the interface.
				return RejectAll
			}
			if redundant {
				break
			}
		}
		if !redundant {
			is = append(is, t)
		}
	}

	var not []types.Type
	for _, t := range f.not {
		for _, i := range is {
			if assignable(i, t) {
				// Everything accepted by Is is excluded by Not.
				return RejectAll
			}
		}
		dup := false
		for _, kept := range not {
			if types.Identical(kept, t) {
				dup = true
				break
			}
		}
		if !dup {
			not = append(not, t)
		}
	}

	return &TypeFilter{is: is, not: not}
}

func (f *TypeFilter) String() string {
	switch {
	case f.IsIdentity():
		return "id"
	case f.rejectAll:
		return colorize.Not("∅")
	}

	var parts []string
	for _, t := range f.is {
		parts = append(parts, colorize.Is("⊑"+t.String()))
	}
	for _, t := range f.not {
		parts = append(parts, colorize.Not("⋢"+t.String()))
	}
	return "{" + strings.Join(parts, " ∧ ") + "}"
}

// Equal compares filters structurally, up to the order of types.
func (f *TypeFilter) Equal(g *TypeFilter) bool {
	if f.IsIdentity() || g.IsIdentity() {
		return f.IsIdentity() == g.IsIdentity()
	}
	if f.rejectAll || g.rejectAll {
		return f.rejectAll == g.rejectAll
	}
	return sameTypes(f.is, g.is) && sameTypes(f.not, g.not)
}

func (f *TypeFilter) Hash() uint32 {
	switch {
	case f.IsIdentity():
		return 0
	case f.rejectAll:
		return 1
	}

	// Order-independent combination of the member hashes.
	var is, not uint32
	for _, t := range f.is {
		is += hashType(t)
	}
	for _, t := range f.not {
		not += hashType(t)
	}
	return utils.HashCombine(is, not, 2)
}

func sameTypes(ts1, ts2 []types.Type) bool {
	if len(ts1) != len(ts2) {
		return false
	}
outer:
	for _, t1 := range ts1 {
		for _, t2 := range ts2 {
			if types.Identical(t1, t2) {
				continue outer
			}
		}
		return false
	}
	return true
}

// hasher memoises type hashes and is not safe for concurrent use; it is
// guarded by the assignability lock.
var hasher = typeutil.MakeHasher()

// assignability memoises types.AssignableTo, keyed by source then target type.
var assignability = struct {
	sync.Mutex
	cache typeutil.Map
}{}

func hashType(t types.Type) uint32 {
	assignability.Lock()
	defer assignability.Unlock()
	return hasher.Hash(t)
}

func assignable(from, to types.Type) bool {
	assignability.Lock()
	defer assignability.Unlock()

	var targets *typeutil.Map
	if v := assignability.cache.At(from); v != nil {
		targets = v.(*typeutil.Map)
	} else {
		targets = new(typeutil.Map)
		targets.SetHasher(hasher)
		assignability.cache.Set(from, targets)
	}

	if v := targets.At(to); v != nil {
		return v.(bool)
	}
	res := types.AssignableTo(from, to)
	targets.Set(to, res)
	return res
}

func init() {
	assignability.cache.SetHasher(hasher)
}

var _ fmt.Stringer = (*TypeFilter)(nil)

var errInternal = fmt.Errorf("typefilter: internal error")
