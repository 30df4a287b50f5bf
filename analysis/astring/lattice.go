// Package astring solves abstract string values of variables on demand.
//
// Variables are inert until activated. Joins into inactive variables are
// dropped, and activating a variable activates everything it depends on, so
// that only values somebody asked for are ever computed.
package astring

import (
	"fmt"
	"strings"

	"github.com/benbjohnson/immutable"
	"github.com/cs-au-dk/incpta/utils"
	"github.com/fatih/color"
	"golang.org/x/exp/slices"
)

var colorize = struct {
	Const func(...interface{}) string
	Var   func(...interface{}) string
}{
	Const: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiYellow).SprintFunc())(is...)
	},
	Var: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiWhite).SprintFunc())(is...)
	},
}

type kind uint8

const (
	bottom kind = iota
	constants
	top
)

// AString is an abstract string: no value (⊥), one of a finite set of
// constants, or any string (⊤). The zero value is ⊥. AStrings are immutable.
type AString struct {
	kind   kind
	consts *immutable.Map[string, struct{}]
}

var (
	Bottom = AString{}
	Top    = AString{kind: top}
)

// Constant is the abstract string of the given constants.
func Constant(cs ...string) AString {
	if len(cs) == 0 {
		return Bottom
	}
	mp := immutable.NewMap[string, struct{}](immutable.NewHasher(""))
	for _, c := range cs {
		mp = mp.Set(c, struct{}{})
	}
	return AString{kind: constants, consts: mp}
}

func (a AString) IsBottom() bool { return a.kind == bottom }
func (a AString) IsTop() bool    { return a.kind == top }

// Constants returns the constants of a in ascending order. It is empty for ⊥
// and ⊤.
func (a AString) Constants() []string {
	if a.kind != constants {
		return nil
	}
	res := make([]string, 0, a.consts.Len())
	for iter := a.consts.Iterator(); !iter.Done(); {
		c, _, _ := iter.Next()
		res = append(res, c)
	}
	slices.Sort(res)
	return res
}

// Size is the number of constants, or -1 for ⊤.
func (a AString) Size() int {
	switch a.kind {
	case bottom:
		return 0
	case top:
		return -1
	}
	return a.consts.Len()
}

func (a AString) has(c string) bool {
	_, found := a.consts.Get(c)
	return found
}

// Join is the least upper bound of a and b.
func (a AString) Join(b AString) AString {
	switch {
	case a.kind == top || b.kind == top:
		return Top
	case a.kind == bottom:
		return b
	case b.kind == bottom:
		return a
	}

	if a.consts.Len() < b.consts.Len() {
		a, b = b, a
	}
	mp := a.consts
	for iter := b.consts.Iterator(); !iter.Done(); {
		c, _, _ := iter.Next()
		if !a.has(c) {
			mp = mp.Set(c, struct{}{})
		}
	}
	if mp == a.consts {
		return a
	}
	return AString{kind: constants, consts: mp}
}

// Widen returns ⊤ if a has more than limit constants, and a otherwise.
func (a AString) Widen(limit int) AString {
	if a.kind == constants && a.consts.Len() > limit {
		return Top
	}
	return a
}

// Leq checks whether a is below or equal to b.
func (a AString) Leq(b AString) bool {
	switch {
	case a.kind == bottom || b.kind == top:
		return true
	case a.kind == top || b.kind == bottom:
		return false
	}
	if a.consts.Len() > b.consts.Len() {
		return false
	}
	for iter := a.consts.Iterator(); !iter.Done(); {
		c, _, _ := iter.Next()
		if !b.has(c) {
			return false
		}
	}
	return true
}

func (a AString) Equal(b AString) bool {
	return a.Leq(b) && b.Leq(a)
}

func (a AString) String() string {
	switch a.kind {
	case bottom:
		return "⊥"
	case top:
		return "⊤"
	}
	strs := a.Constants()
	for i, c := range strs {
		strs[i] = colorize.Const(fmt.Sprintf("%q", c))
	}
	return "{" + strings.Join(strs, ", ") + "}"
}
