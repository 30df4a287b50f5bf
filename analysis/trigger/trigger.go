// Package trigger keeps track of the computations that wait for a fact to
// become true, and fires each of them once when it does.
package trigger

import (
	"fmt"
	"sync"

	"github.com/cs-au-dk/incpta/analysis/delta"
)

// Origin is a suspended computation that must be re-run when a fact it
// depends on changes. Origins are compared by identity, so implementations
// should be pointers.
type Origin interface {
	Trigger(d delta.GraphDelta)
}

// OriginFunc adapts a function to an Origin.
type OriginFunc struct {
	Name string
	Do   func(delta.GraphDelta)
}

func (o *OriginFunc) Trigger(d delta.GraphDelta) { o.Do(d) }
func (o *OriginFunc) String() string             { return o.Name }

// NodeObject is the fact that a node points to an object.
type NodeObject struct {
	Node, Object int
}

func (k NodeObject) String() string {
	return fmt.Sprintf("%d ↦ %d", k.Node, k.Object)
}

// Registry maps keys to the origins waiting for them. An origin is fired at
// most once per registration.
type Registry[K comparable] struct {
	mu      sync.Mutex
	waiters map[K][]Origin
}

func NewRegistry[K comparable]() *Registry[K] {
	return &Registry[K]{waiters: make(map[K][]Origin)}
}

// Register makes origin wait for key. It reports whether the origin was not
// already waiting for it.
func (r *Registry[K]) Register(key K, origin Origin) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.waiters[key] {
		if o == origin {
			return false
		}
	}
	r.waiters[key] = append(r.waiters[key], origin)
	return true
}

// Fire removes and returns the origins waiting for key.
func (r *Registry[K]) Fire(key K) []Origin {
	r.mu.Lock()
	defer r.mu.Unlock()
	os := r.waiters[key]
	delete(r.waiters, key)
	return os
}

// FireAll removes and returns the origins waiting for any key accepted by
// match.
func (r *Registry[K]) FireAll(match func(K) bool) (res []Origin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, os := range r.waiters {
		if match(k) {
			res = append(res, os...)
			delete(r.waiters, k)
		}
	}
	return
}

// Move re-registers the origins waiting for from as waiting for to.
func (r *Registry[K]) Move(from, to K) {
	r.mu.Lock()
	defer r.mu.Unlock()
	os, found := r.waiters[from]
	if !found || from == to {
		return
	}
	delete(r.waiters, from)

	existing := r.waiters[to]
next:
	for _, o := range os {
		for _, e := range existing {
			if o == e {
				continue next
			}
		}
		existing = append(existing, o)
	}
	r.waiters[to] = existing
}

// MoveMatching re-registers the origins of every key accepted by rekey under
// the key it returns.
func (r *Registry[K]) MoveMatching(rekey func(K) (K, bool)) []K {
	var moves [][2]K
	r.mu.Lock()
	for k := range r.waiters {
		if to, ok := rekey(k); ok {
			moves = append(moves, [2]K{k, to})
		}
	}
	r.mu.Unlock()

	res := make([]K, 0, len(moves))
	for _, m := range moves {
		r.Move(m[0], m[1])
		res = append(res, m[1])
	}
	return res
}

// Keys returns the keys with waiting origins.
func (r *Registry[K]) Keys() []K {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]K, 0, len(r.waiters))
	for k := range r.waiters {
		res = append(res, k)
	}
	return res
}

// Pending is the number of origins waiting for key.
func (r *Registry[K]) Pending(key K) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiters[key])
}
