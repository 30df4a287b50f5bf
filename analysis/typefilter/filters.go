package typefilter

import (
	"github.com/cs-au-dk/incpta/utils/intern"
)

type filterHasher struct{}

func (filterHasher) Hash(f *TypeFilter) uint32     { return f.Hash() }
func (filterHasher) Equal(f1, f2 *TypeFilter) bool { return f1.Equal(f2) }

// IdentityID is the identifier of the identity filter in every Filters table.
const IdentityID = 0

// Filters interns filters so that copy edges can be annotated with dense
// filter identifiers.
type Filters struct {
	dict *intern.Dictionary[*TypeFilter]
}

func NewFilters() *Filters {
	fs := &Filters{intern.NewDictionary[*TypeFilter](filterHasher{})}
	if id := fs.dict.Intern(Identity); id != IdentityID {
		panic(errInternal)
	}
	return fs
}

// ID returns the identifier of f. Structurally equal filters share one.
func (fs *Filters) ID(f *TypeFilter) int {
	if f.IsIdentity() {
		return IdentityID
	}
	return fs.dict.Intern(f)
}

// Filter resolves a filter identifier.
func (fs *Filters) Filter(id int) *TypeFilter {
	if id == IdentityID {
		return Identity
	}
	return fs.dict.Lookup(id)
}
