package pta

import (
	"github.com/cs-au-dk/incpta/analysis/astring"
	"golang.org/x/tools/container/intsets"
)

// StringVariable returns the identifier of a string variable.
func (a *Analysis) StringVariable(v astring.StringVariableReplica) int {
	return a.strings.Variable(v)
}

// activated resubmits the definers of newly active variables, which skipped
// their joins while the variables were inactive.
func (a *Analysis) activated(vars *intsets.Sparse) {
	for _, id := range a.strings.Definers(vars) {
		a.submitID(id)
	}
}

// ActivateString makes v and everything it depends on active.
func (a *Analysis) ActivateString(v int) {
	a.activated(a.strings.Activate(v))
}

// RecordStringDependency records that x depends on y.
func (a *Analysis) RecordStringDependency(x, y int) {
	a.activated(a.strings.RecordDependency(x, y))
}

// RecordStringDefinition records that stmt assigns v. If v is active, stmt is
// evaluated.
func (a *Analysis) RecordStringDefinition(v int, stmt Statement) {
	a.strings.RecordDefinition(v, a.StatementID(stmt))
	if a.strings.IsActive(v) {
		a.Submit(stmt)
	}
}

// RecordStringUse records that stmt reads v.
func (a *Analysis) RecordStringUse(v int, stmt Statement) {
	a.strings.RecordUse(v, a.StatementID(stmt))
}

// JoinString joins s into the value of v and resubmits the users of v if it
// changed. It reports whether v changed.
func (a *Analysis) JoinString(v int, s astring.AString) bool {
	d := a.strings.JoinAt(v, s)
	for _, id := range a.strings.Affected(d) {
		a.submitID(id)
	}
	return !d.IsEmpty()
}

// GetAStringFor returns the value of v, if v is active.
func (a *Analysis) GetAStringFor(v int) (astring.AString, bool) {
	return a.strings.GetAStringFor(v)
}
