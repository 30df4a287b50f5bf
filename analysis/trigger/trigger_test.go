package trigger

import (
	"testing"

	"github.com/cs-au-dk/incpta/analysis/delta"
)

func counter(n *int) *OriginFunc {
	return &OriginFunc{Name: "counter", Do: func(delta.GraphDelta) { *n++ }}
}

func TestFireOnce(t *testing.T) {
	r := NewRegistry[NodeObject]()
	var fired int
	o := counter(&fired)
	key := NodeObject{1, 7}

	if !r.Register(key, o) || r.Register(key, o) {
		t.Error("Expected registration to be deduplicated")
	}
	if r.Pending(key) != 1 {
		t.Errorf("Pending = %d, expected 1", r.Pending(key))
	}

	for _, o := range r.Fire(key) {
		o.Trigger(delta.Of(1, 7))
	}
	for _, o := range r.Fire(key) {
		o.Trigger(delta.Of(1, 7))
	}
	if fired != 1 {
		t.Errorf("Origin fired %d times", fired)
	}
}

func TestMove(t *testing.T) {
	r := NewRegistry[NodeObject]()
	var n1, n2 int
	o1, o2 := counter(&n1), counter(&n2)

	r.Register(NodeObject{1, 7}, o1)
	r.Register(NodeObject{1, 7}, o2)
	r.Register(NodeObject{2, 7}, o1)
	r.Move(NodeObject{1, 7}, NodeObject{2, 7})

	if r.Pending(NodeObject{1, 7}) != 0 {
		t.Error("Origins left behind")
	}
	if r.Pending(NodeObject{2, 7}) != 2 {
		t.Errorf("Pending = %d, expected 2", r.Pending(NodeObject{2, 7}))
	}
}

func TestFireAll(t *testing.T) {
	r := NewRegistry[NodeObject]()
	var n int
	r.Register(NodeObject{1, 1}, counter(&n))
	r.Register(NodeObject{1, 2}, counter(&n))
	r.Register(NodeObject{2, 1}, counter(&n))

	fired := r.FireAll(func(k NodeObject) bool { return k.Node == 1 })
	if len(fired) != 2 || len(r.Keys()) != 1 {
		t.Errorf("Fired %d origins, %d keys left", len(fired), len(r.Keys()))
	}
}

func TestMoveMatching(t *testing.T) {
	r := NewRegistry[NodeObject]()
	var n int
	r.Register(NodeObject{1, 1}, counter(&n))
	r.Register(NodeObject{1, 2}, counter(&n))
	r.Register(NodeObject{3, 1}, counter(&n))

	moved := r.MoveMatching(func(k NodeObject) (NodeObject, bool) {
		return NodeObject{2, k.Object}, k.Node == 1
	})
	if len(moved) != 2 || r.Pending(NodeObject{2, 1}) != 1 || r.Pending(NodeObject{2, 2}) != 1 {
		t.Errorf("Unexpected move result %v", moved)
	}
	if r.Pending(NodeObject{3, 1}) != 1 {
		t.Error("Unrelated key was moved")
	}
}
