package astring

import (
	"fmt"

	"github.com/cs-au-dk/incpta/utils"
)

// StringVariableReplica is a string variable in a calling context.
type StringVariableReplica struct {
	Context, Var int
}

func (v StringVariableReplica) Hash() uint32 {
	return utils.HashCombine(uint32(v.Context), uint32(v.Var))
}

func (v StringVariableReplica) Equal(o StringVariableReplica) bool {
	return v == o
}

func (v StringVariableReplica) String() string {
	return fmt.Sprintf("%s⟨%d⟩", colorize.Var("s", v.Var), v.Context)
}
