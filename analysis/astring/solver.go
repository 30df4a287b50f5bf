package astring

import (
	"github.com/cs-au-dk/incpta/analysis/config"
	"github.com/cs-au-dk/incpta/utils"
	"github.com/cs-au-dk/incpta/utils/intern"
	"golang.org/x/tools/container/intsets"
)

// Solver ties variables, their dependencies and their values together.
type Solver struct {
	log  *config.LogGroup
	vars *intern.Dictionary[StringVariableReplica]

	*StringDependencies
	*StringSolution
}

func NewSolver(cfg *config.Config, log *config.LogGroup) *Solver {
	if log == nil {
		log = config.Discard()
	}
	deps := NewStringDependencies()
	return &Solver{
		log:                log,
		vars:               intern.NewDictionary[StringVariableReplica](utils.HashableHasher[StringVariableReplica]()),
		StringDependencies: deps,
		StringSolution:     NewStringSolution(deps, cfg.StringConstantLimit),
	}
}

// Variable returns the identifier of a string variable.
func (s *Solver) Variable(v StringVariableReplica) int {
	return s.vars.Intern(v)
}

// Replica resolves a variable identifier.
func (s *Solver) Replica(id int) StringVariableReplica {
	return s.vars.Lookup(id)
}

// Definers returns the statements defining any of vars. These must be
// re-evaluated when vars become active.
func (s *Solver) Definers(vars *intsets.Sparse) []int {
	var res intsets.Sparse
	for _, v := range vars.AppendTo(nil) {
		for _, stmt := range s.DefinedBy(v) {
			res.Insert(stmt)
		}
	}
	if !res.IsEmpty() {
		s.log.Tracef("activated %v, re-evaluating definers %v\n", vars, &res)
	}
	return res.AppendTo(nil)
}

// Affected returns the statements that read a variable changed in d.
func (s *Solver) Affected(d *StringDelta) []int {
	var res intsets.Sparse
	for _, v := range d.Variables() {
		for _, stmt := range s.UsedBy(v) {
			res.Insert(stmt)
		}
	}
	return res.AppendTo(nil)
}
