package pointsto

import (
	"sync"

	uf "github.com/spakin/disjoint"
)

// representatives is a union-find structure over node identifiers.
// Only nodes that took part in a collapse own an element; every other node is
// its own representative and is resolved without locking.
type representatives struct {
	mu    sync.Mutex
	elems sync.Map // int -> *uf.Element
}

func (r *representatives) find(n int) int {
	e, found := r.elems.Load(n)
	if !found {
		return n
	}

	// Find compresses paths, so it mutates the forest.
	r.mu.Lock()
	defer r.mu.Unlock()
	return e.(*uf.Element).Find().Data.(int)
}

func (r *representatives) element(n int) *uf.Element {
	if e, found := r.elems.Load(n); found {
		return e.(*uf.Element)
	}
	el := uf.NewElement()
	el.Data = n
	e, _ := r.elems.LoadOrStore(n, el)
	return e.(*uf.Element)
}

// union merges the classes of all nodes and returns the representative of
// the resulting class.
func (r *representatives) union(nodes ...int) int {
	elems := make([]*uf.Element, 0, len(nodes))
	for _, n := range nodes {
		elems = append(elems, r.element(n))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range elems[1:] {
		uf.Union(elems[0], e)
	}
	return elems[0].Find().Data.(int)
}

// collapsed checks whether n has been merged into another node.
func (r *representatives) collapsed(n int) bool {
	return r.find(n) != n
}
