// Package relation implements binary relations over dense integer
// identifiers, with both directions of every edge indexed.
//
// Each key owns a cell protected by its own mutex, so updates to unrelated
// keys never contend. An edge is inserted into the forward cell of its source
// before the backward cell of its target; readers that must not observe the
// intermediate state resolve keys through a representative map first.
package relation

import (
	"sync"

	"golang.org/x/exp/slices"
	"golang.org/x/tools/container/intsets"
)

type cell struct {
	mu  sync.Mutex
	set intsets.Sparse
}

// cells is a concurrent map from keys to adjacency sets.
type cells struct {
	mp sync.Map // int -> *cell
}

func (c *cells) get(k int) (*cell, bool) {
	v, ok := c.mp.Load(k)
	if !ok {
		return nil, false
	}
	return v.(*cell), true
}

func (c *cells) getOrCreate(k int) *cell {
	if v, ok := c.mp.Load(k); ok {
		return v.(*cell)
	}
	v, _ := c.mp.LoadOrStore(k, new(cell))
	return v.(*cell)
}

func (c *cells) insert(k, v int) bool {
	cl := c.getOrCreate(k)
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.set.Insert(v)
}

func (c *cells) remove(k, v int) bool {
	cl, ok := c.get(k)
	if !ok {
		return false
	}
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.set.Remove(v)
}

func (c *cells) has(k, v int) bool {
	cl, ok := c.get(k)
	if !ok {
		return false
	}
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.set.Has(v)
}

func (c *cells) elems(k int) []int {
	cl, ok := c.get(k)
	if !ok {
		return nil
	}
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.set.AppendTo(nil)
}

func (c *cells) copyOf(k int) *intsets.Sparse {
	res := new(intsets.Sparse)
	cl, ok := c.get(k)
	if !ok {
		return res
	}
	cl.mu.Lock()
	defer cl.mu.Unlock()
	res.Copy(&cl.set)
	return res
}

// detach removes the cell of k and returns its contents.
func (c *cells) detach(k int) []int {
	v, ok := c.mp.LoadAndDelete(k)
	if !ok {
		return nil
	}
	cl := v.(*cell)
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.set.AppendTo(nil)
}

func (c *cells) keys() (ks []int) {
	c.mp.Range(func(k, v any) bool {
		cl := v.(*cell)
		cl.mu.Lock()
		empty := cl.set.IsEmpty()
		cl.mu.Unlock()
		if !empty {
			ks = append(ks, k.(int))
		}
		return true
	})
	slices.Sort(ks)
	return
}

// IntRelation is a binary relation R over dense integers.
// Forward(n) = {m | (n,m) ∈ R} and Backward(m) = {n | (n,m) ∈ R} are kept
// mutually inverse.
type IntRelation struct {
	fwd cells
	bwd cells
}

func NewIntRelation() *IntRelation {
	return &IntRelation{}
}

// Add inserts (a, b) and reports whether it was absent.
func (r *IntRelation) Add(a, b int) bool {
	if !r.fwd.insert(a, b) {
		return false
	}
	r.bwd.insert(b, a)
	return true
}

// Remove deletes (a, b) and reports whether it was present.
func (r *IntRelation) Remove(a, b int) bool {
	if !r.fwd.remove(a, b) {
		return false
	}
	r.bwd.remove(b, a)
	return true
}

func (r *IntRelation) Has(a, b int) bool {
	return r.fwd.has(a, b)
}

// Forward returns the image of a in ascending order.
func (r *IntRelation) Forward(a int) []int {
	return r.fwd.elems(a)
}

// Backward returns the pre-image of b in ascending order.
func (r *IntRelation) Backward(b int) []int {
	return r.bwd.elems(b)
}

// ForwardSet returns a copy of the image of a.
func (r *IntRelation) ForwardSet(a int) *intsets.Sparse {
	return r.fwd.copyOf(a)
}

// BackwardSet returns a copy of the pre-image of b.
func (r *IntRelation) BackwardSet(b int) *intsets.Sparse {
	return r.bwd.copyOf(b)
}

// Keys returns every key with a non-empty image, in ascending order.
func (r *IntRelation) Keys() []int {
	return r.fwd.keys()
}

// Len is the number of pairs in the relation.
func (r *IntRelation) Len() (n int) {
	for _, k := range r.fwd.keys() {
		cl, _ := r.fwd.get(k)
		cl.mu.Lock()
		n += cl.set.Len()
		cl.mu.Unlock()
	}
	return
}

// Replace merges every edge incident on n into rep and removes n as a key.
// An edge between n and rep becomes a self-edge of rep and is dropped.
//
// Replace is not atomic with respect to concurrent readers: some edges may be
// visible under n and some under rep while it runs.
func (r *IntRelation) Replace(n, rep int) {
	if n == rep {
		return
	}

	for _, m := range r.fwd.detach(n) {
		r.bwd.remove(m, n)
		if m != n && m != rep {
			r.Add(rep, m)
		}
	}
	for _, m := range r.bwd.detach(n) {
		r.fwd.remove(m, n)
		if m != n && m != rep {
			r.Add(m, rep)
		}
	}
}
