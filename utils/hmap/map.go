package hmap

import (
	"sync"
	"sync/atomic"

	"github.com/cs-au-dk/incpta/utils"
)

// A concurrent hash map for keys that cannot be used with Go's maps directly.
// Buckets are immutable linked lists published with compare-and-swap, so
// readers never block and concurrent inserts of the same key converge on a
// single winning entry.

type node[K, V any] struct {
	key   K
	value V
	next  *node[K, V]
}

type bucket[K, V any] struct {
	head atomic.Pointer[node[K, V]]
}

type Map[K, V any] struct {
	hasher utils.Hasher[K]
	mp     sync.Map // uint32 -> *bucket[K, V]
	size   atomic.Int64
}

// Order of V and K are swapped since K can be inferred by the argument.
func NewMap[V, K any](hasher utils.Hasher[K]) *Map[K, V] {
	return &Map[K, V]{hasher: hasher}
}

func (m *Map[K, V]) bucket(h uint32) *bucket[K, V] {
	if b, found := m.mp.Load(h); found {
		return b.(*bucket[K, V])
	}
	b, _ := m.mp.LoadOrStore(h, new(bucket[K, V]))
	return b.(*bucket[K, V])
}

func (m *Map[K, V]) find(head *node[K, V], key K) *node[K, V] {
	for n := head; n != nil; n = n.next {
		if m.hasher.Equal(key, n.key) {
			return n
		}
	}
	return nil
}

// LoadOrStore returns the value bound to key, if any. Otherwise it binds the
// value produced by mk. If several goroutines race on the same key, exactly
// one binding survives and every caller observes it. mk may be invoked by
// losing goroutines; their values are discarded.
func (m *Map[K, V]) LoadOrStore(key K, mk func() V) (value V, loaded bool) {
	b := m.bucket(m.hasher.Hash(key))
	var fresh *node[K, V]
	for {
		head := b.head.Load()
		if n := m.find(head, key); n != nil {
			return n.value, true
		}

		if fresh == nil {
			fresh = &node[K, V]{key: key, value: mk()}
		}
		fresh.next = head
		if b.head.CompareAndSwap(head, fresh) {
			m.size.Add(1)
			return fresh.value, false
		}
	}
}

// Set binds value to key, replacing any existing binding.
func (m *Map[K, V]) Set(key K, value V) {
	b := m.bucket(m.hasher.Hash(key))
	for {
		head := b.head.Load()
		var rebuilt *node[K, V]
		replaced := false
		// Copy the chain so that readers of the old chain are unaffected.
		for n := head; n != nil; n = n.next {
			if !replaced && m.hasher.Equal(key, n.key) {
				rebuilt = &node[K, V]{key, value, rebuilt}
				replaced = true
				continue
			}
			rebuilt = &node[K, V]{n.key, n.value, rebuilt}
		}
		if !replaced {
			rebuilt = &node[K, V]{key, value, rebuilt}
		}
		if b.head.CompareAndSwap(head, rebuilt) {
			if !replaced {
				m.size.Add(1)
			}
			return
		}
	}
}

func (m *Map[K, V]) GetOk(key K) (res V, ok bool) {
	b, found := m.mp.Load(m.hasher.Hash(key))
	if !found {
		return
	}

	if n := m.find(b.(*bucket[K, V]).head.Load(), key); n != nil {
		return n.value, true
	}
	return
}

func (m *Map[K, V]) Get(key K) V {
	v, _ := m.GetOk(key)
	return v
}

// Len is the number of bindings in the map.
func (m *Map[K, V]) Len() int {
	return int(m.size.Load())
}

// ForEach calls do on every binding. Bindings added concurrently may or may
// not be visited.
func (m *Map[K, V]) ForEach(do func(K, V)) {
	m.mp.Range(func(_, b any) bool {
		for n := b.(*bucket[K, V]).head.Load(); n != nil; n = n.next {
			do(n.key, n.value)
		}
		return true
	})
}
