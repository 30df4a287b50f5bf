// Package scheduler runs analysis tasks on a pool of workers until no task
// is left.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cs-au-dk/incpta/analysis/config"
	"golang.org/x/sync/errgroup"
)

// Task is a unit of work. Tasks with equal keys that are waiting in the
// queue at the same time are run once.
type Task interface {
	Key() any
	Run(s *Scheduler)
}

// Combiner is implemented by tasks that carry data which must not be lost
// when a resubmission is folded into a waiting task.
type Combiner interface {
	Task
	// Combine returns a task doing the work of both receiver and other.
	Combine(other Task) Task
}

// TaskFunc adapts a function to a Task.
type TaskFunc struct {
	ID any
	Do func(*Scheduler)
}

func (t TaskFunc) Key() any         { return t.ID }
func (t TaskFunc) Run(s *Scheduler) { t.Do(s) }
func (t TaskFunc) String() string   { return fmt.Sprint(t.ID) }

var ErrTaskPanicked = errors.New("task panicked")

type Scheduler struct {
	log     *config.LogGroup
	workers int

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []any
	pending map[any]Task
	busy    int
	done    bool

	executed atomic.Int64
}

func New(cfg *config.Config, log *config.LogGroup) *Scheduler {
	if log == nil {
		log = config.Discard()
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	s := &Scheduler{
		log:     log,
		workers: workers,
		pending: make(map[any]Task),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Submit enqueues t. If a task with the same key is waiting, t is folded
// into it instead.
func (s *Scheduler) Submit(t Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := t.Key()
	if prev, found := s.pending[key]; found {
		if c, ok := prev.(Combiner); ok {
			s.pending[key] = c.Combine(t)
		}
		return
	}
	s.pending[key] = t
	s.queue = append(s.queue, key)
	s.cond.Signal()
}

// Pending is the number of tasks waiting to run.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Executed is the number of tasks run so far.
func (s *Scheduler) Executed() int {
	return int(s.executed.Load())
}

// Run processes tasks until the queue is empty and no task is running, or
// until ctx is cancelled. A task that panics stops the run with an error
// wrapping ErrTaskPanicked.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.done = false
	s.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	}()

	for i := 0; i < s.workers; i++ {
		g.Go(func() error { return s.work(ctx) })
	}
	err := g.Wait()
	s.log.Debugf("scheduler stopped after %d tasks\n", s.Executed())
	return err
}

// next blocks until a task is available. It returns nil when the run is over.
func (s *Scheduler) next(ctx context.Context) Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 && s.busy > 0 && !s.done && ctx.Err() == nil {
		s.cond.Wait()
	}
	if s.done || ctx.Err() != nil || len(s.queue) == 0 {
		// Nothing is queued and nothing is running: fixpoint.
		s.done = true
		s.cond.Broadcast()
		return nil
	}

	key := s.queue[0]
	s.queue = s.queue[1:]
	t := s.pending[key]
	delete(s.pending, key)
	s.busy++
	return t
}

func (s *Scheduler) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy--
	if s.busy == 0 && len(s.queue) == 0 {
		s.cond.Broadcast()
	}
}

func (s *Scheduler) work(ctx context.Context) error {
	for {
		t := s.next(ctx)
		if t == nil {
			return ctx.Err()
		}
		err := s.run(t)
		s.finish()
		if err != nil {
			return err
		}
	}
}

func (s *Scheduler) run(t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v: %v", ErrTaskPanicked, t.Key(), r)
		}
	}()
	s.executed.Add(1)
	t.Run(s)
	return nil
}
