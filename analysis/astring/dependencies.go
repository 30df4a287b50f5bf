package astring

import (
	"sync"

	"github.com/cs-au-dk/incpta/analysis/relation"
	"github.com/cs-au-dk/incpta/utils/worklist"
	"golang.org/x/tools/container/intsets"
)

// StringDependencies records which variables depend on which, the statements
// that define and use each variable, and the set of active variables.
type StringDependencies struct {
	deps *relation.IntRelation
	defs *relation.IntRelation
	uses *relation.IntRelation

	// mu orders activation against dependency recording.
	mu     sync.Mutex
	active intsets.Sparse
}

func NewStringDependencies() *StringDependencies {
	return &StringDependencies{
		deps: relation.NewIntRelation(),
		defs: relation.NewIntRelation(),
		uses: relation.NewIntRelation(),
	}
}

// Activate makes v and everything it transitively depends on active, and
// returns the variables that were not active before.
func (sd *StringDependencies) Activate(v int) *intsets.Sparse {
	sd.mu.Lock()
	defer sd.mu.Unlock()
	return sd.activate(v)
}

func (sd *StringDependencies) activate(v int) *intsets.Sparse {
	res := new(intsets.Sparse)
	if !sd.active.Insert(v) {
		return res
	}
	res.Insert(v)
	worklist.Start(v, func(x int, add func(int)) {
		for _, y := range sd.deps.Forward(x) {
			if sd.active.Insert(y) {
				res.Insert(y)
				add(y)
			}
		}
	})
	return res
}

// IsActive checks whether v has been activated.
func (sd *StringDependencies) IsActive(v int) bool {
	sd.mu.Lock()
	defer sd.mu.Unlock()
	return sd.active.Has(v)
}

// RecordDependency records that the value of x depends on the value of y.
// If x is active, y and its dependencies are activated, and the newly active
// variables are returned.
func (sd *StringDependencies) RecordDependency(x, y int) *intsets.Sparse {
	sd.deps.Add(x, y)

	sd.mu.Lock()
	defer sd.mu.Unlock()
	if !sd.active.Has(x) {
		return new(intsets.Sparse)
	}
	return sd.activate(y)
}

// DependsOn returns the variables x directly depends on.
func (sd *StringDependencies) DependsOn(x int) []int {
	return sd.deps.Forward(x)
}

// RecordDefinition records that stmt assigns v.
func (sd *StringDependencies) RecordDefinition(v, stmt int) {
	sd.defs.Add(v, stmt)
}

// RecordUse records that stmt reads v.
func (sd *StringDependencies) RecordUse(v, stmt int) {
	sd.uses.Add(v, stmt)
}

// DefinedBy returns the statements that assign v.
func (sd *StringDependencies) DefinedBy(v int) []int {
	return sd.defs.Forward(v)
}

// UsedBy returns the statements that read v.
func (sd *StringDependencies) UsedBy(v int) []int {
	return sd.uses.Forward(v)
}
