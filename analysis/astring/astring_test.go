package astring

import (
	"fmt"
	"sync"
	"testing"

	"github.com/cs-au-dk/incpta/analysis/config"
	"github.com/cs-au-dk/incpta/utils"
	"github.com/google/go-cmp/cmp"
)

func newSolver(limit int) *Solver {
	cfg := config.Default()
	cfg.StringConstantLimit = limit
	return NewSolver(cfg, nil)
}

func TestLattice(t *testing.T) {
	ab, bc := Constant("a", "b"), Constant("b", "c")

	if diff := cmp.Diff([]string{"a", "b", "c"}, ab.Join(bc).Constants()); diff != "" {
		t.Errorf("Unexpected join (-want +got):\n%s", diff)
	}
	if !Bottom.Join(ab).Equal(ab) || !ab.Join(Top).IsTop() {
		t.Error("⊥ and ⊤ are not neutral and absorbing")
	}
	if !Constant("a").Leq(ab) || ab.Leq(bc) || !ab.Leq(Top) || Top.Leq(ab) {
		t.Error("Unexpected ordering")
	}
	if !ab.Join(bc).Widen(2).IsTop() || ab.Widen(2).IsTop() {
		t.Error("Unexpected widening")
	}
	if !Constant().IsBottom() {
		t.Error("Empty constant set is not ⊥")
	}
}

func TestString(t *testing.T) {
	utils.SetNoColorize(true)
	for _, test := range []struct {
		a        AString
		expected string
	}{
		{Bottom, "⊥"},
		{Top, "⊤"},
		{Constant("y", "x"), `{"x", "y"}`},
	} {
		if s := test.a.String(); s != test.expected {
			t.Errorf("String() = %s, expected %s", s, test.expected)
		}
	}
}

func TestDemandDrivenActivation(t *testing.T) {
	s := newSolver(16)
	v := s.Variable(StringVariableReplica{Context: 0, Var: 1})
	if r := s.Replica(v); r != (StringVariableReplica{Context: 0, Var: 1}) {
		t.Errorf("Replica(%d) = %v", v, r)
	}

	if d := s.JoinAt(v, Constant("x")); !d.IsEmpty() {
		t.Errorf("Join into inactive variable produced %v", d.Variables())
	}
	if _, ok := s.GetAStringFor(v); ok {
		t.Error("Inactive variable has a value")
	}

	if activated := s.Activate(v); !activated.Has(v) {
		t.Error("Variable was not newly activated")
	}
	d := s.JoinAt(v, Constant("x"))
	if !d.Has(v) {
		t.Error("Expected the variable to change")
	}
	if val, ok := s.GetAStringFor(v); !ok || !val.Equal(Constant("x")) {
		t.Errorf("GetAStringFor = %v, %v", val, ok)
	}

	// Joining the same value again changes nothing.
	if d := s.JoinAt(v, Constant("x")); !d.IsEmpty() {
		t.Error("Repeated join produced a change")
	}
}

func TestTransitiveActivation(t *testing.T) {
	s := newSolver(16)
	x, y, z := 1, 2, 3
	s.RecordDependency(x, y)
	s.RecordDependency(y, z)
	s.RecordDefinition(z, 30)
	s.RecordDefinition(y, 20)

	activated := s.Activate(x)
	if diff := cmp.Diff([]int{x, y, z}, activated.AppendTo(nil)); diff != "" {
		t.Errorf("Unexpected activation (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{20, 30}, s.Definers(activated)); diff != "" {
		t.Errorf("Unexpected definers (-want +got):\n%s", diff)
	}
	if !s.Activate(y).IsEmpty() {
		t.Error("Reactivation reported new variables")
	}

	// Dependencies recorded on active variables activate right away.
	if got := s.RecordDependency(z, 4); !got.Has(4) {
		t.Errorf("RecordDependency activated %v", got)
	}
	if got := s.RecordDependency(5, 6); !got.IsEmpty() || s.IsActive(6) {
		t.Error("Dependency of inactive variable was activated")
	}
}

func TestAffected(t *testing.T) {
	s := newSolver(16)
	s.Activate(1)
	s.RecordUse(1, 10)
	s.RecordUse(1, 11)
	s.RecordUse(2, 12)

	d := s.JoinAt(1, Constant("a"))
	if diff := cmp.Diff([]int{10, 11}, s.Affected(d)); diff != "" {
		t.Errorf("Unexpected affected statements (-want +got):\n%s", diff)
	}
}

func TestConcurrentJoins(t *testing.T) {
	const n = 32
	s := newSolver(n)
	v := s.Variable(StringVariableReplica{Var: 1})
	s.Activate(v)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.JoinAt(v, Constant(fmt.Sprint(i)))
		}(i)
	}
	wg.Wait()

	val, _ := s.GetAStringFor(v)
	if val.Size() != n {
		t.Errorf("Lost contributions: %v", val)
	}

	// One more constant exceeds the limit.
	s.JoinAt(v, Constant("extra"))
	if val, _ := s.GetAStringFor(v); !val.IsTop() {
		t.Errorf("Expected ⊤, got %v", val)
	}
}
