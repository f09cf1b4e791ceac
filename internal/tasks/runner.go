// Package tasks provides the background execution model: a pool of worker
// goroutines for I/O-bound service calls (persistence, mainly) plus one
// apply goroutine that serializes result callbacks.
//
// This mirrors the background-task / UI-thread split of the original
// desktop design as a task/channel pair: workers run the slow call, the
// single apply loop runs whatever must touch observable state, so those
// callbacks never race each other. Business logic itself (ranking, search,
// notification building) runs to completion inside a single call — the
// only suspension points are at the submission boundary.
package tasks

import (
	"log/slog"
	"sync"
)

// Runner executes submitted tasks on a fixed pool of workers and applies
// result callbacks on a single dedicated goroutine.
type Runner struct {
	work   chan func()
	apply  chan func()
	wg     sync.WaitGroup
	logger *slog.Logger

	closeOnce sync.Once
}

// DefaultWorkers is the pool size used by NewRunner when the caller passes
// a non-positive count.
const DefaultWorkers = 4

// queueDepth bounds both channels. Submit blocks once the queue is full
// rather than growing without bound — persistence snapshots are cheap and
// a deep backlog means the gateway is down anyway.
const queueDepth = 64

// NewRunner starts workers goroutines plus the apply loop.
// Call Close when done; submitting after Close panics (send on closed
// channel), so Close belongs in the same shutdown path that stops callers.
func NewRunner(workers int, logger *slog.Logger) *Runner {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	r := &Runner{
		work:   make(chan func(), queueDepth),
		apply:  make(chan func(), queueDepth),
		logger: logger,
	}

	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}

	r.wg.Add(1)
	go r.applyLoop()

	return r
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for task := range r.work {
		r.run(task, "background task")
	}
}

// applyLoop is the single consumer of result callbacks. Everything sent via
// Apply executes here, one at a time, in submission order.
func (r *Runner) applyLoop() {
	defer r.wg.Done()
	for task := range r.apply {
		r.run(task, "apply task")
	}
}

// run guards a task the way the original guarded every background job: a
// panicking task is logged and absorbed, never allowed to kill the pool.
func (r *Runner) run(task func(), kind string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error(kind+" panicked", slog.Any("panic", rec))
		}
	}()
	task()
}

// Submit queues task for execution on a worker goroutine.
// Fire-and-forget: errors are the task's own problem to log.
func (r *Runner) Submit(task func()) {
	if task == nil {
		return
	}
	r.work <- task
}

// Apply queues task for the single apply goroutine. Use it for callbacks
// that mutate observable state shared with other Apply callbacks.
func (r *Runner) Apply(task func()) {
	if task == nil {
		return
	}
	r.apply <- task
}

// Close stops accepting work and blocks until all queued tasks finish.
// Safe to call more than once.
func (r *Runner) Close() {
	r.closeOnce.Do(func() {
		close(r.work)
		close(r.apply)
	})
	r.wg.Wait()
}
