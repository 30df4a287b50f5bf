// Package intern assigns dense integer identities to structured values.
package intern

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cs-au-dk/incpta/utils"
	"github.com/cs-au-dk/incpta/utils/hmap"
)

// Dictionary is a bidirectional interning table. Structurally equal values
// (according to the hasher) receive the same identifier. Identifiers are
// never reused. Racing first uses of a value agree on one identifier; the
// tentative identifiers of losing goroutines are never handed out.
type Dictionary[T any] struct {
	ids     *hmap.Map[T, *entry]
	reverse sync.Map // int -> T
	next    atomic.Int64
}

type entry struct {
	once sync.Once
	id   int
}

func NewDictionary[T any](hasher utils.Hasher[T]) *Dictionary[T] {
	return &Dictionary[T]{
		ids: hmap.NewMap[*entry](hasher),
	}
}

// Intern returns the identifier of x, assigning a fresh one on first use.
func (d *Dictionary[T]) Intern(x T) int {
	e, _ := d.ids.LoadOrStore(x, func() *entry { return new(entry) })
	return d.number(e, x)
}

// number assigns the next identifier to e unless it already has one.
// Only published entries are ever numbered, so identifiers stay dense.
func (d *Dictionary[T]) number(e *entry, x T) int {
	e.once.Do(func() {
		e.id = int(d.next.Add(1) - 1)
		d.reverse.Store(e.id, x)
	})
	return e.id
}

// Get returns the identifier of x if it has been interned.
func (d *Dictionary[T]) Get(x T) (int, bool) {
	e, found := d.ids.GetOk(x)
	if !found {
		return -1, false
	}
	return d.number(e, x), true
}

// Lookup returns the value with identifier id. Looking up an identifier that
// was never returned by Intern is a programming error.
func (d *Dictionary[T]) Lookup(id int) T {
	x, found := d.reverse.Load(id)
	if !found {
		panic(fmt.Errorf("%w: %d", ErrUnknownID, id))
	}
	return x.(T)
}

// Len is the number of interned values.
func (d *Dictionary[T]) Len() int {
	return int(d.next.Load())
}

// ErrUnknownID is raised when resolving an identifier that was never assigned.
var ErrUnknownID = fmt.Errorf("unknown interned identifier")
