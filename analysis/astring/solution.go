package astring

import (
	"sync"
	"sync/atomic"

	"golang.org/x/tools/container/intsets"
)

// StringDelta names the variables whose value changed.
type StringDelta struct {
	changed intsets.Sparse
}

func (d *StringDelta) IsEmpty() bool {
	return d == nil || d.changed.IsEmpty()
}

func (d *StringDelta) Has(v int) bool {
	return d != nil && d.changed.Has(v)
}

// Variables returns the changed variables in ascending order.
func (d *StringDelta) Variables() []int {
	if d == nil {
		return nil
	}
	return d.changed.AppendTo(nil)
}

// Merge adds the changes of o to d.
func (d *StringDelta) Merge(o *StringDelta) {
	if o != nil {
		d.changed.UnionWith(&o.changed)
	}
}

// StringSolution maps variables to their current abstract strings.
type StringSolution struct {
	deps  *StringDependencies
	limit int

	values sync.Map // int -> *atomic.Pointer[AString]
}

func NewStringSolution(deps *StringDependencies, limit int) *StringSolution {
	return &StringSolution{deps: deps, limit: limit}
}

func (s *StringSolution) cell(v int) *atomic.Pointer[AString] {
	if c, found := s.values.Load(v); found {
		return c.(*atomic.Pointer[AString])
	}
	c, _ := s.values.LoadOrStore(v, new(atomic.Pointer[AString]))
	return c.(*atomic.Pointer[AString])
}

func load(c *atomic.Pointer[AString]) AString {
	if p := c.Load(); p != nil {
		return *p
	}
	return Bottom
}

// JoinAt joins value into the abstract string of v. The returned delta names
// v if its value grew. Joins into inactive variables are skipped.
func (s *StringSolution) JoinAt(v int, value AString) *StringDelta {
	d := new(StringDelta)
	if value.IsBottom() || !s.deps.IsActive(v) {
		return d
	}

	c := s.cell(v)
	for {
		old := c.Load()
		cur := Bottom
		if old != nil {
			cur = *old
		}
		joined := cur.Join(value).Widen(s.limit)
		if joined.Leq(cur) {
			return d
		}
		if c.CompareAndSwap(old, &joined) {
			d.changed.Insert(v)
			return d
		}
		// Lost a race with another join. Retry on the new value.
	}
}

// GetAStringFor returns the abstract string of v if v is active.
func (s *StringSolution) GetAStringFor(v int) (AString, bool) {
	if !s.deps.IsActive(v) {
		return Bottom, false
	}
	if c, found := s.values.Load(v); found {
		return load(c.(*atomic.Pointer[AString])), true
	}
	return Bottom, true
}
