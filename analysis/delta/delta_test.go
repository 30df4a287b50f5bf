package delta

import (
	"testing"

	"github.com/cs-au-dk/incpta/utils"
	"github.com/google/go-cmp/cmp"
)

func mk(bindings map[int][]int) GraphDelta {
	d := New()
	for n, objs := range bindings {
		for _, o := range objs {
			d.Add(n, o)
		}
	}
	return d
}

func TestCombine(t *testing.T) {
	d1 := mk(map[int][]int{1: {1, 2}, 2: {3}})
	d2 := mk(map[int][]int{1: {2, 4}, 3: {5}})
	d3 := mk(map[int][]int{2: {6}, 3: {5, 7}})

	expected := map[int][]int{1: {1, 2, 4}, 2: {3, 6}, 3: {5, 7}}

	left := Combine(Combine(d1, d2), d3)
	right := Combine(d1, Combine(d2, d3))
	swapped := Combine(d3, Combine(d2, d1))

	for _, d := range []GraphDelta{left, right, swapped} {
		if diff := cmp.Diff(expected, d.Map()); diff != "" {
			t.Errorf("Unexpected combination (-want +got):\n%s", diff)
		}
	}

	// Operands are left untouched.
	if diff := cmp.Diff(map[int][]int{1: {1, 2}, 2: {3}}, d1.Map()); diff != "" {
		t.Errorf("Combine modified its operand (-want +got):\n%s", diff)
	}
}

func TestAddReportsNovelty(t *testing.T) {
	d := New()
	if !d.Add(1, 7) {
		t.Error("Expected fresh fact")
	}
	if d.Add(1, 7) {
		t.Error("Duplicate fact reported as new")
	}
	if !d.Contains(1, 7) || d.Contains(2, 7) {
		t.Error("Unexpected membership")
	}
	if d.Size() != 1 {
		t.Errorf("Size() = %d, expected 1", d.Size())
	}
}

func TestEmpty(t *testing.T) {
	d := New()
	if !d.IsEmpty() {
		t.Error("Fresh delta should be empty")
	}
	// Looking up absent entries must not materialise them.
	d.Objects(3)
	if !d.IsEmpty() || len(d.Nodes()) != 0 {
		t.Error("Lookup materialised an entry")
	}
	if !(GraphDelta{}).IsEmpty() {
		t.Error("Zero delta should be empty")
	}
}

func TestRename(t *testing.T) {
	d := mk(map[int][]int{1: {1, 2}, 2: {2, 3}})
	d.Rename(1, 2)
	if diff := cmp.Diff(map[int][]int{2: {1, 2, 3}}, d.Map()); diff != "" {
		t.Errorf("Unexpected rename (-want +got):\n%s", diff)
	}
}

func TestString(t *testing.T) {
	utils.SetNoColorize(true)
	d := mk(map[int][]int{4: {9}, 1: {3, 2}})
	if s := d.String(); s != "[1 ↦ {2, 3}; 4 ↦ {9}]" {
		t.Errorf("String() = %q", s)
	}
}
