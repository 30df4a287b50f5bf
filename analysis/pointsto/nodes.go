package pointsto

import (
	"fmt"
	"go/types"

	"github.com/cs-au-dk/incpta/utils"
	"github.com/fatih/color"
)

// colorize is used for pretty-printing.
var colorize = struct {
	Context func(...interface{}) string
	Var     func(...interface{}) string
	Field   func(...interface{}) string
	Site    func(...interface{}) string
	Point   func(...interface{}) string
}{
	Context: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiBlue).SprintFunc())(is...)
	},
	Var: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiWhite).SprintFunc())(is...)
	},
	Field: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgGreen).SprintFunc())(is...)
	},
	Site: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiGreen).SprintFunc())(is...)
	},
	Point: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiCyan).SprintFunc())(is...)
	},
}

// Node is the logical identity of a location in the points-to graph.
// Equal nodes are interned to the same identifier.
type Node interface {
	Hash() uint32
	Equal(Node) bool
	String() string
	// ExpectedType is the declared type of the location.
	ExpectedType() types.Type
	// FlowSensitive is true for locations whose points-to set is specific
	// to a program point.
	FlowSensitive() bool
}

const (
	localTag uint32 = iota + 1
	staticTag
	fieldTag
	flowTag
)

type (
	// Local is a local variable in a calling context. Locals with PerPoint set
	// additionally have flow-sensitive counterparts, see FlowSensitiveNode.
	Local struct {
		Context  int
		Var      int
		Type     types.Type
		PerPoint bool
	}

	// Static is a global (singleton) variable.
	Static struct {
		Name string
		Type types.Type
	}

	// Field is a field of an abstract object.
	Field struct {
		Object int
		Field  string
		Type   types.Type
	}

	// FlowSensitiveNode is the counterpart of a local at one program point.
	FlowSensitiveNode struct {
		Base  Local
		Point int
	}
)

func (l Local) Hash() uint32 {
	return utils.HashCombine(localTag, uint32(l.Context), uint32(l.Var))
}

func (l Local) Equal(o Node) bool {
	l2, ok := o.(Local)
	return ok && l.Context == l2.Context && l.Var == l2.Var
}

func (l Local) String() string {
	return fmt.Sprintf("%s⟨%s⟩", colorize.Var("v", l.Var), colorize.Context(l.Context))
}

func (l Local) ExpectedType() types.Type { return l.Type }
func (Local) FlowSensitive() bool        { return false }

func (s Static) Hash() uint32 {
	return utils.HashCombine(staticTag, utils.HashString(s.Name))
}

func (s Static) Equal(o Node) bool {
	s2, ok := o.(Static)
	return ok && s.Name == s2.Name
}

func (s Static) String() string {
	return colorize.Var(s.Name)
}

func (s Static) ExpectedType() types.Type { return s.Type }
func (Static) FlowSensitive() bool        { return false }

func (f Field) Hash() uint32 {
	return utils.HashCombine(fieldTag, uint32(f.Object), utils.HashString(f.Field))
}

func (f Field) Equal(o Node) bool {
	f2, ok := o.(Field)
	return ok && f.Object == f2.Object && f.Field == f2.Field
}

func (f Field) String() string {
	return fmt.Sprintf("%s.%s", colorize.Site("o", f.Object), colorize.Field(f.Field))
}

func (f Field) ExpectedType() types.Type { return f.Type }
func (Field) FlowSensitive() bool        { return false }

func (f FlowSensitiveNode) Hash() uint32 {
	return utils.HashCombine(flowTag, f.Base.Hash(), uint32(f.Point))
}

func (f FlowSensitiveNode) Equal(o Node) bool {
	f2, ok := o.(FlowSensitiveNode)
	return ok && f.Point == f2.Point && f.Base.Equal(f2.Base)
}

func (f FlowSensitiveNode) String() string {
	return fmt.Sprintf("%s@%s", f.Base, colorize.Point(f.Point))
}

func (f FlowSensitiveNode) ExpectedType() types.Type { return f.Base.Type }
func (FlowSensitiveNode) FlowSensitive() bool        { return true }

// InstanceKey identifies an abstract object: an allocation site, optionally
// split into the most recently allocated instance and all older instances.
type InstanceKey struct {
	Site       int
	Type       types.Type
	MostRecent bool
}

func (k InstanceKey) Hash() uint32 {
	recent := uint32(0)
	if k.MostRecent {
		recent = 1
	}
	return utils.HashCombine(uint32(k.Site), recent)
}

func (k InstanceKey) Equal(o InstanceKey) bool {
	return k.Site == o.Site && k.MostRecent == o.MostRecent
}

func (k InstanceKey) String() string {
	if k.MostRecent {
		return colorize.Site("o", k.Site, "ᴿ")
	}
	return colorize.Site("o", k.Site)
}
