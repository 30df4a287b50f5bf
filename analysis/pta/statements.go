package pta

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cs-au-dk/incpta/analysis/delta"
	"github.com/cs-au-dk/incpta/analysis/scheduler"
	"github.com/cs-au-dk/incpta/analysis/trigger"
)

// Statement is a front-end statement in a context. The analysis does not
// look into statements; it only re-evaluates them when facts they read change.
// Statements with equal keys are the same statement.
type Statement interface {
	Key() any
	Evaluate(a *Analysis)
}

type statementKey struct{ key any }

type statementEntry struct {
	once sync.Once
	id   int
	stmt Statement

	originOnce sync.Once
	origin     *StatementOrigin
}

// statements numbers statements by key.
type statements struct {
	entries sync.Map // any -> *statementEntry
	byID    sync.Map // int -> *statementEntry
	next    atomic.Int64
}

func (ss *statements) entry(stmt Statement) *statementEntry {
	e, _ := ss.entries.LoadOrStore(stmt.Key(), &statementEntry{stmt: stmt})
	entry := e.(*statementEntry)
	entry.once.Do(func() {
		entry.id = int(ss.next.Add(1) - 1)
		ss.byID.Store(entry.id, entry)
	})
	return entry
}

func (ss *statements) lookup(id int) Statement {
	e, found := ss.byID.Load(id)
	if !found {
		panic(fmt.Errorf("unknown statement %d", id))
	}
	return e.(*statementEntry).stmt
}

// StatementID returns the dense identifier of stmt.
func (a *Analysis) StatementID(stmt Statement) int {
	return a.statements.entry(stmt).id
}

// Statement resolves a statement identifier.
func (a *Analysis) Statement(id int) Statement {
	return a.statements.lookup(id)
}

type statementTask struct {
	a    *Analysis
	stmt Statement
}

func (t statementTask) Key() any                 { return statementKey{t.stmt.Key()} }
func (t statementTask) Run(*scheduler.Scheduler) { t.stmt.Evaluate(t.a) }

// Submit schedules the evaluation of stmt.
func (a *Analysis) Submit(stmt Statement) {
	a.sched.Submit(statementTask{a, a.statements.entry(stmt).stmt})
}

func (a *Analysis) submitID(id int) {
	a.sched.Submit(statementTask{a, a.statements.lookup(id)})
}

// StatementOrigin re-evaluates a statement when triggered.
type StatementOrigin struct {
	a    *Analysis
	stmt Statement
}

func (o *StatementOrigin) Trigger(delta.GraphDelta) {
	o.a.Submit(o.stmt)
}

func (o *StatementOrigin) String() string {
	return fmt.Sprintf("statement %v", o.stmt.Key())
}

// StatementOrigin returns the origin re-evaluating stmt. Repeated calls for
// the same statement return the same origin, so registrations deduplicate.
func (a *Analysis) StatementOrigin(stmt Statement) trigger.Origin {
	e := a.statements.entry(stmt)
	e.originOnce.Do(func() {
		e.origin = &StatementOrigin{a, e.stmt}
	})
	return e.origin
}
