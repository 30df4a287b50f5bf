package problem

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/cs-au-dk/incpta/analysis/config"
	"github.com/cs-au-dk/incpta/analysis/pta"
	"github.com/cs-au-dk/incpta/utils"
	"github.com/google/go-cmp/cmp"
	"github.com/sebdah/goldie/v2"
)

func solve(t *testing.T, p *Problem) *Instance {
	t.Helper()
	cfg := config.Default()
	cfg.Workers = 4
	a := pta.New(cfg, nil)
	inst, err := p.Build(a)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Solve(context.Background()); err != nil {
		t.Fatal(err)
	}
	return inst
}

func parse(t *testing.T, src string) *Problem {
	t.Helper()
	p, err := Parse([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestReport(t *testing.T) {
	utils.SetNoColorize(true)
	defer utils.SetNoColorize(false)

	p, err := Load("testdata/program.yaml")
	if err != nil {
		t.Fatal(err)
	}
	inst := solve(t, p)

	var out bytes.Buffer
	inst.Report(&out)
	goldie.New(t).Assert(t, t.Name(), out.Bytes())

	if diff := cmp.Diff(map[string]string{"r": "p"}, inst.Collapsed()); diff != "" {
		t.Errorf("Unexpected collapses (-want +got):\n%s", diff)
	}
}

func TestLoadChain(t *testing.T) {
	// Each load is enabled by the one before it.
	inst := solve(t, parse(t, `
objects:
  - {name: o1, site: 1}
  - {name: o2, site: 2}
  - {name: o3, site: 3}
nodes:
  - {name: a}
  - {name: b}
  - {name: c}
  - {name: d}
facts:
  - {node: a, object: o1}
  - {node: c, object: o3}
  - {node: d, object: o2}
loads:
  - {if: b, points-to: o2, copy: c, to: a}
  - {if: a, points-to: o1, copy: d, to: b}
`))

	got, err := inst.PointsTo("a")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"o1", "o3"}, got); diff != "" {
		t.Errorf("Unexpected points-to set (-want +got):\n%s", diff)
	}
}

func TestFilteredEdges(t *testing.T) {
	inst := solve(t, parse(t, `
objects:
  - {name: i, site: 1, type: int}
  - {name: s, site: 2, type: string}
nodes:
  - {name: src}
  - {name: ints}
  - {name: others}
facts:
  - {node: src, object: i}
  - {node: src, object: s}
edges:
  - {src: src, dst: ints, is: int}
  - {src: src, dst: others, not: [int]}
`))

	for node, want := range map[string][]string{
		"ints":   {"i"},
		"others": {"s"},
	} {
		got, _ := inst.PointsTo(node)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Unexpected points-to set of %s (-want +got):\n%s", node, diff)
		}
	}
}

func TestBuildErrors(t *testing.T) {
	for name, test := range map[string]struct {
		src  string
		want error
	}{
		"unknown node": {`
objects: [{name: o}]
facts: [{node: x, object: o}]
`, errUnknownName},
		"unknown object": {`
nodes: [{name: x}]
facts: [{node: x, object: o}]
`, errUnknownName},
		"unknown type": {`
objects: [{name: o, type: widget}]
`, errUnknownType},
		"unknown filter type": {`
nodes: [{name: x}, {name: y}]
edges: [{src: x, dst: y, is: widget}]
`, errUnknownType},
		"duplicate node": {`
nodes: [{name: x}, {name: x}]
`, errDuplicateName},
		"unknown string": {`
strings: [{name: s, depends-on: [t]}]
`, errUnknownName},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parse(t, test.src).Build(pta.New(nil, nil))
			if !errors.Is(err, test.want) {
				t.Errorf("Expected %v, got %v", test.want, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("testdata/missing.yaml"); err == nil {
		t.Error("Expected an error")
	}
}
