// Package pipeline implements the task pool and the binning/counting
// scheduler (C10, spec §4.10): a fixed-size worker-goroutine pool
// feeding off one task queue, plus the adaptive throttle that
// interleaves a run's binning and counting tasks to cap memory.
package pipeline

import (
	"sync"

	"github.com/grailbio/base/errors"
)

// Task is one schedulable unit of work. Preprocess/Exec/Postprocess
// run back to back on the worker that picks the task up; Exec's error
// is what join_all eventually surfaces. Level reports the task's
// scheduling level; the pool does not consult it and runs tasks in the
// order they were added.
type Task interface {
	Preprocess()
	Exec() error
	Postprocess()
	Level() int
}

// Pool is a fixed T-worker-goroutine pool draining a single task
// queue of 4096 slots. AddTask returns at once while a slot is free
// and blocks while 4096 added tasks are still waiting to start; join_all
// blocks until every task added before the call returns has reached
// the finished state.
type Pool struct {
	tasks   chan Task
	wg      sync.WaitGroup
	errOnce errors.Once

	cancelMu sync.Mutex
	cancel   bool
}

// NewPool starts T worker goroutines pulling from an internal queue.
func NewPool(t int) *Pool {
	if t < 1 {
		t = 1
	}
	p := &Pool{tasks: make(chan Task, 4096)}
	p.wg.Add(t)
	for i := 0; i < t; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		if p.Cancelled() {
			continue
		}
		task.Preprocess()
		if err := task.Exec(); err != nil {
			p.errOnce.Set(err)
		}
		task.Postprocess()
	}
}

// AddTask enqueues task. Non-blocking as long as the internal queue
// has room; callers that need backpressure should gate calls to
// AddTask themselves (the scheduler in scheduler.go does this for the
// binning/counting interleave).
func (p *Pool) AddTask(t Task) {
	p.tasks <- t
}

// Cancel sets the pool's cancellation flag: in-flight tasks run to
// completion, but workers skip any task not yet started (spec §4.10:
// "in-flight tasks run to completion but no new ones start").
func (p *Pool) Cancel() {
	p.cancelMu.Lock()
	p.cancel = true
	p.cancelMu.Unlock()
}

// Cancelled reports whether Cancel has been called.
func (p *Pool) Cancelled() bool {
	p.cancelMu.Lock()
	defer p.cancelMu.Unlock()
	return p.cancel
}

// JoinAll closes the queue, waits for every worker to drain it, and
// returns the first error any task's Exec returned (spec §4.10:
// "exceptions thrown by exec are captured and re-thrown from
// join_all").
func (p *Pool) JoinAll() error {
	close(p.tasks)
	p.wg.Wait()
	return p.errOnce.Err()
}
