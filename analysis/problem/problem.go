// Package problem describes propagation problems in YAML. A problem names
// nodes and abstract objects, and lists the facts, copy edges, control-flow
// edges and conditional statements the analysis should start from. It stands
// in for a language front end when driving the analysis from the command
// line or from tests.
package problem

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	errUnknownName   = errors.New("unknown name")
	errUnknownType   = errors.New("unknown type")
	errDuplicateName = errors.New("name declared twice")
)

type Problem struct {
	Nodes      []Node      `yaml:"nodes"`
	Objects    []Object    `yaml:"objects"`
	Points     []Point     `yaml:"points"`
	Facts      []Fact      `yaml:"facts"`
	Edges      []Edge      `yaml:"edges"`
	Loads      []LoadStmt  `yaml:"loads"`
	AddToSet   []AddToSet  `yaml:"add-to-set"`
	Degrade    []Degrade   `yaml:"degrade"`
	Successors []Pair      `yaml:"successors"`
	Calls      []Pair      `yaml:"calls"`
	Queries    []Query     `yaml:"queries"`
	Procedures []Pair      `yaml:"procedures"`
	Strings    []StringVar `yaml:"strings"`
}

// Node declares a node. Nodes are static variables unless Local is set or
// Object names the object the node is a field of.
type Node struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Local    bool   `yaml:"local"`
	Context  int    `yaml:"context"`
	Var      int    `yaml:"var"`
	PerPoint bool   `yaml:"per-point"`
	Object   string `yaml:"object"`
	Field    string `yaml:"field"`
}

// Object declares the most recent instance of an allocation site.
type Object struct {
	Name string `yaml:"name"`
	Site int    `yaml:"site"`
	Type string `yaml:"type"`
}

// Point declares the nodes killed and objects allocated at a program point.
type Point struct {
	Point  int      `yaml:"point"`
	Kills  []string `yaml:"kills"`
	Allocs []string `yaml:"allocs"`
}

// Fact is an initial points-to fact, at Point if given.
type Fact struct {
	Node   string `yaml:"node"`
	Object string `yaml:"object"`
	Point  *int   `yaml:"point"`
}

// Edge is a copy edge. Is and Not form its type filter.
type Edge struct {
	Src string   `yaml:"src"`
	Dst string   `yaml:"dst"`
	Is  string   `yaml:"is"`
	Not []string `yaml:"not"`
}

// LoadStmt adds the copy edge Copy → To once If points to PointsTo.
type LoadStmt struct {
	If       string `yaml:"if"`
	PointsTo string `yaml:"points-to"`
	At       *int   `yaml:"at"`
	Copy     string `yaml:"copy"`
	To       string `yaml:"to"`
}

// AddToSet adds Object to To once Node points to it at Point.
type AddToSet struct {
	Node   string `yaml:"node"`
	Object string `yaml:"object"`
	Point  int    `yaml:"point"`
	To     string `yaml:"to"`
}

// Degrade makes Node point to the older instances of Object once its
// allocation may execute again before Use.
type Degrade struct {
	Node   string `yaml:"node"`
	Object string `yaml:"object"`
	Alloc  int    `yaml:"alloc"`
	Use    int    `yaml:"use"`
}

type Pair struct {
	From int `yaml:"from"`
	To   int `yaml:"to"`
}

// Query is a program-point reachability query.
type Query struct {
	Src       int      `yaml:"src"`
	Dst       int      `yaml:"dst"`
	NoKill    []string `yaml:"no-kill"`
	NoAlloc   []string `yaml:"no-alloc"`
	Forbidden []int    `yaml:"forbidden"`
}

// StringVar declares a string variable holding Constants joined with the
// values of the variables it DependsOn.
type StringVar struct {
	Name      string   `yaml:"name"`
	Context   int      `yaml:"context"`
	Var       int      `yaml:"var"`
	Constants []string `yaml:"constants"`
	DependsOn []string `yaml:"depends-on"`
	Active    bool     `yaml:"active"`
}

// Parse decodes a problem.
func Parse(b []byte) (*Problem, error) {
	p := new(Problem)
	if err := yaml.Unmarshal(b, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Load reads a problem file.
func Load(filename string) (*Problem, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read problem file %s: %w", filename, err)
	}
	p, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("could not load problem file %s: %w", filename, err)
	}
	return p, nil
}
