package reach

import (
	"errors"
	"sync"
	"testing"

	"github.com/cs-au-dk/incpta/analysis/delta"
	"github.com/cs-au-dk/incpta/analysis/trigger"
	"github.com/cs-au-dk/incpta/utils/intern"
	"github.com/google/go-cmp/cmp"
)

func TestCanonicalization(t *testing.T) {
	qs := NewQueries()
	q1 := NewQuery(1, 2, []int{3, 4}, []int{5}, []int{6})
	q2 := NewQuery(1, 2, []int{4, 3, 3}, []int{5}, []int{6})
	q3 := NewQuery(1, 2, []int{3, 4}, []int{5}, []int{7})
	q4 := NewQuery(1, 2, []int{3, 4}, []int{5}, nil)

	id1, id2 := qs.Intern(q1), qs.Intern(q2)
	if id1 != id2 {
		t.Errorf("Equal queries interned to %d and %d", id1, id2)
	}
	if id3 := qs.Intern(q3); id3 == id1 {
		t.Error("Queries with different forbidden sets share an id")
	}
	if id4 := qs.Intern(q4); id4 == id1 {
		t.Error("Queries with different forbidden set sizes share an id")
	}
	if !qs.Lookup(id1).Equal(q2) {
		t.Errorf("Lookup(%d) = %v", id1, qs.Lookup(id1))
	}
}

func TestConcurrentCanonicalization(t *testing.T) {
	qs := NewQueries()
	ids := make([]int, 16)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = qs.Intern(NewQuery(1, 2, []int{i % 2}, nil, nil))
		}(i)
	}
	wg.Wait()

	for i, id := range ids {
		if id != ids[i%2] {
			t.Errorf("Query %d interned to %d, expected %d", i, id, ids[i%2])
		}
	}
	if qs.Len() != 2 {
		t.Errorf("Expected 2 queries, got %d", qs.Len())
	}
}

func TestUnknownQuery(t *testing.T) {
	defer func() {
		if err, ok := recover().(error); !ok || !errors.Is(err, intern.ErrUnknownID) {
			t.Errorf("Expected unknown id panic, got %v", err)
		}
	}()
	NewQueries().Lookup(3)
}

func TestPathConstraints(t *testing.T) {
	r := NewReachability(nil)
	// 0 → 1 → 3, 0 → 2 → 3; 1 kills node 10, 2 allocates object 20.
	r.AddPoint(1, []int{10}, nil)
	r.AddPoint(2, nil, []int{20})
	for _, e := range [][2]int{{0, 1}, {0, 2}, {1, 3}, {2, 3}} {
		r.AddSuccessor(e[0], e[1])
	}

	tests := []struct {
		name     string
		q        ProgramPointSubQuery
		expected bool
	}{
		{"plain", NewQuery(0, 3, nil, nil, nil), true},
		{"no-kill", NewQuery(0, 3, []int{10}, nil, nil), true},
		{"no-alloc", NewQuery(0, 3, nil, []int{20}, nil), true},
		{"both", NewQuery(0, 3, []int{10}, []int{20}, nil), false},
		{"forbidden", NewQuery(0, 3, []int{10}, nil, []int{2}), false},
		{"endpoints-unchecked", NewQuery(1, 3, []int{10}, nil, []int{1, 3}), true},
		{"backwards", NewQuery(3, 0, nil, nil, nil), false},
		{"no-loop", NewQuery(0, 0, nil, nil, nil), false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := r.IsReachable(test.q, nil); got != test.expected {
				t.Errorf("IsReachable(%v) = %v, expected %v", test.q, got, test.expected)
			}
		})
	}
}

func TestOriginFiresOnFlip(t *testing.T) {
	r := NewReachability(nil)
	fired := 0
	origin := &trigger.OriginFunc{Name: "test", Do: func(delta.GraphDelta) { fired++ }}

	q := NewQuery(0, 2, nil, nil, nil)
	if r.IsReachable(q, origin) {
		t.Fatal("Expected unreachable")
	}
	if ids := r.AddSuccessor(5, 6); len(ids) != 0 {
		t.Errorf("Unrelated edge affected queries %v", ids)
	}
	if ids := r.AddSuccessor(1, 2); len(ids) != 0 {
		t.Errorf("Edge outside the search affected queries %v", ids)
	}

	qid := r.Queries().Intern(q)
	ids := r.AddSuccessor(0, 1)
	if diff := cmp.Diff([]int{qid}, ids); diff != "" {
		t.Fatalf("Unexpected affected queries (-want +got):\n%s", diff)
	}
	ok, origins := r.Reevaluate(qid)
	if !ok || len(origins) != 1 {
		t.Fatalf("Reevaluate = %v, %v", ok, origins)
	}
	for _, o := range origins {
		o.Trigger(delta.New())
	}
	if fired != 1 {
		t.Errorf("Origin fired %d times", fired)
	}

	// Answers never flip back, and satisfied queries are not watched.
	if ok, origins := r.Reevaluate(qid); !ok || len(origins) != 0 {
		t.Errorf("Reevaluate = %v, %v", ok, origins)
	}
	if ids := r.AddSuccessor(0, 7); len(ids) != 0 {
		t.Errorf("Satisfied query is still watched: %v", ids)
	}
}

func TestRedefinedPoint(t *testing.T) {
	r := NewReachability(nil)
	r.AddPoint(1, []int{1}, nil)
	r.AddPoint(1, []int{1}, nil)

	defer func() {
		if err, ok := recover().(error); !ok || !errors.Is(err, errPointRedefined) {
			t.Errorf("Expected redefinition panic, got %v", err)
		}
	}()
	r.AddPoint(1, []int{2}, nil)
}

func TestLatePointFacts(t *testing.T) {
	r := NewReachability(nil)
	r.AddSuccessor(0, 1)
	r.AddSuccessor(1, 2)
	q := NewQuery(0, 2, []int{10}, nil, nil)
	if !r.IsReachable(q, nil) {
		t.Fatal("Expected reachable")
	}

	// Facts-free points and points no edge leads to are still accepted.
	r.AddPoint(1, nil, nil)
	r.AddPoint(0, []int{10}, nil)

	defer func() {
		if err, ok := recover().(error); !ok || !errors.Is(err, errPointRedefined) {
			t.Errorf("Expected redefinition panic, got %v", err)
		}
	}()
	r.AddPoint(2, []int{10}, nil)
}
