package relation

import (
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/tools/container/intsets"
)

// Edge is an annotated edge to To, carrying the tokens attached to it.
type Edge struct {
	To     int
	Tokens []int
}

type annotatedCell struct {
	mu    sync.Mutex
	edges map[int]*intsets.Sparse
}

// AnnotatedIntRelation is an IntRelation where each edge additionally
// carries a set of integer annotation tokens.
type AnnotatedIntRelation struct {
	fwd sync.Map // int -> *annotatedCell
	bwd cells
}

func NewAnnotatedIntRelation() *AnnotatedIntRelation {
	return &AnnotatedIntRelation{}
}

func (r *AnnotatedIntRelation) cell(a int) (*annotatedCell, bool) {
	v, ok := r.fwd.Load(a)
	if !ok {
		return nil, false
	}
	return v.(*annotatedCell), true
}

func (r *AnnotatedIntRelation) cellOrCreate(a int) *annotatedCell {
	if c, ok := r.cell(a); ok {
		return c
	}
	v, _ := r.fwd.LoadOrStore(a, &annotatedCell{edges: make(map[int]*intsets.Sparse)})
	return v.(*annotatedCell)
}

// Add inserts (a, b) annotated with token. It reports whether the edge or
// the token on it is new.
func (r *AnnotatedIntRelation) Add(a, b, token int) bool {
	c := r.cellOrCreate(a)
	c.mu.Lock()
	tokens, found := c.edges[b]
	if !found {
		tokens = new(intsets.Sparse)
		c.edges[b] = tokens
	}
	added := tokens.Insert(token)
	c.mu.Unlock()

	if !found {
		r.bwd.insert(b, a)
	}
	return added
}

// addAll inserts (a, b) with every token in tokens.
func (r *AnnotatedIntRelation) addAll(a, b int, tokens *intsets.Sparse) {
	c := r.cellOrCreate(a)
	c.mu.Lock()
	existing, found := c.edges[b]
	if !found {
		existing = new(intsets.Sparse)
		c.edges[b] = existing
	}
	existing.UnionWith(tokens)
	c.mu.Unlock()

	if !found {
		r.bwd.insert(b, a)
	}
}

// Remove deletes (a, b) together with all of its annotations.
func (r *AnnotatedIntRelation) Remove(a, b int) bool {
	c, ok := r.cell(a)
	if !ok {
		return false
	}
	c.mu.Lock()
	_, found := c.edges[b]
	delete(c.edges, b)
	c.mu.Unlock()

	if found {
		r.bwd.remove(b, a)
	}
	return found
}

func (r *AnnotatedIntRelation) Has(a, b int) bool {
	c, ok := r.cell(a)
	if !ok {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, found := c.edges[b]
	return found
}

// Annotations returns the tokens on (a, b) in ascending order.
func (r *AnnotatedIntRelation) Annotations(a, b int) []int {
	c, ok := r.cell(a)
	if !ok {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if tokens, found := c.edges[b]; found {
		return tokens.AppendTo(nil)
	}
	return nil
}

// Forward returns the annotated image of a, ordered by target.
func (r *AnnotatedIntRelation) Forward(a int) []Edge {
	c, ok := r.cell(a)
	if !ok {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	targets := maps.Keys(c.edges)
	slices.Sort(targets)
	res := make([]Edge, 0, len(targets))
	for _, b := range targets {
		res = append(res, Edge{b, c.edges[b].AppendTo(nil)})
	}
	return res
}

// Backward returns the pre-image of b in ascending order.
func (r *AnnotatedIntRelation) Backward(b int) []int {
	return r.bwd.elems(b)
}

// Keys returns every key with a non-empty image, in ascending order.
func (r *AnnotatedIntRelation) Keys() (ks []int) {
	r.fwd.Range(func(k, v any) bool {
		c := v.(*annotatedCell)
		c.mu.Lock()
		empty := len(c.edges) == 0
		c.mu.Unlock()
		if !empty {
			ks = append(ks, k.(int))
		}
		return true
	})
	slices.Sort(ks)
	return
}

// Replace merges every edge incident on n, with its annotations, into rep and
// removes n as a key. Edges between n and rep are dropped rather than turned
// into self-edges of rep.
func (r *AnnotatedIntRelation) Replace(n, rep int) {
	if n == rep {
		return
	}

	if v, ok := r.fwd.LoadAndDelete(n); ok {
		c := v.(*annotatedCell)
		c.mu.Lock()
		out := c.edges
		c.edges = make(map[int]*intsets.Sparse)
		c.mu.Unlock()

		for m, tokens := range out {
			r.bwd.remove(m, n)
			if m != n && m != rep {
				r.addAll(rep, m, tokens)
			}
		}
	}

	for _, m := range r.bwd.detach(n) {
		c, ok := r.cell(m)
		if !ok {
			continue
		}
		c.mu.Lock()
		tokens := c.edges[n]
		delete(c.edges, n)
		c.mu.Unlock()

		if m != n && m != rep && tokens != nil {
			r.addAll(m, rep, tokens)
		}
	}
}
