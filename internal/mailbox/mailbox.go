// Package mailbox runs jobs one at a time per key.
package mailbox

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

// Job is a unit of work for one owner.
type Job func()

type queue struct {
	pending []Job
}

// Dispatcher keeps a FIFO queue per owner. Jobs for the same owner run
// sequentially in submission order; different owners run in parallel. A
// queue's goroutine exits once the queue is empty.
type Dispatcher struct {
	log *slog.Logger

	mu     sync.Mutex
	queues map[int64]*queue
	wg     sync.WaitGroup
}

// New creates a Dispatcher.
func New(log *slog.Logger) *Dispatcher {
	return &Dispatcher{log: log, queues: make(map[int64]*queue)}
}

// Submit enqueues job for owner.
func (d *Dispatcher) Submit(owner int64, job Job) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if q, ok := d.queues[owner]; ok {
		q.pending = append(q.pending, job)
		return
	}
	q := &queue{pending: []Job{job}}
	d.queues[owner] = q
	d.wg.Add(1)
	go d.drain(owner, q)
}

func (d *Dispatcher) drain(owner int64, q *queue) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		if len(q.pending) == 0 {
			delete(d.queues, owner)
			d.mu.Unlock()
			return
		}
		job := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		d.mu.Unlock()

		d.run(owner, job)
	}
}

func (d *Dispatcher) run(owner int64, job Job) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("job panicked", "owner_id", owner, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	job()
}

// Active returns the number of owners with queued or running jobs.
func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}

// Wait blocks until every queue has drained.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
