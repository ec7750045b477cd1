// Package executor implements spec.md §4.1: a named single-thread task
// runner with immediate and delayed posting, used as the callback, queue,
// and signal threads for every Central and Peripheral.
package executor

import (
	"container/heap"
	"sync"
	"time"

	"blecentral/internal/logging"
)

// Task is a unit of work posted to an Executor.
type Task func()

// Handle cancels a delayed task. Cancel is best-effort: a task already
// dequeued for execution continues to run.
type Handle struct {
	id uint64
	e  *Executor
}

// Cancel marks the delayed task cancelled. Safe to call after the task
// has already fired or been cancelled.
func (h *Handle) Cancel() {
	if h.e == nil {
		return
	}
	h.e.cancelDelayed(h.id)
}

// Executor is a named single-thread task runner. Tasks posted to it never
// run concurrently with one another, and run in submission order except
// where a delayed task has not yet matured (§4.1).
type Executor struct {
	name string
	log  *logging.Logger

	mu       sync.Mutex
	closed   bool
	immediate []Task
	delayed  delayedQueue
	nextID   uint64
	wake     chan struct{}

	wg sync.WaitGroup
}

// New starts an Executor named name. The returned Executor owns one
// goroutine for its lifetime; call Shutdown to stop it.
func New(name string, log *logging.Logger) *Executor {
	if log == nil {
		log = logging.Default()
	}
	e := &Executor{
		name: name,
		log:  log.WithComponent("executor:" + name),
		wake: make(chan struct{}, 1),
	}
	e.wg.Add(1)
	go e.run()
	return e
}

// Post schedules task for immediate sequential execution, preserving
// submission order relative to other immediate posts.
func (e *Executor) Post(task Task) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.log.Warn("post rejected after shutdown")
		return
	}
	e.immediate = append(e.immediate, task)
	e.mu.Unlock()
	e.signal()
}

// PostDelayed schedules task to run at now+delay and returns a handle
// that can cancel it. When multiple tasks mature at the same instant,
// submission order breaks ties (§4.1).
func (e *Executor) PostDelayed(task Task, delay time.Duration) *Handle {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.log.Warn("post-delayed rejected after shutdown")
		return &Handle{}
	}
	e.nextID++
	id := e.nextID
	item := &delayedItem{
		task: task,
		at:   time.Now().Add(delay),
		seq:  id,
		id:   id,
	}
	heap.Push(&e.delayed, item)
	e.mu.Unlock()
	e.signal()
	return &Handle{id: id, e: e}
}

func (e *Executor) cancelDelayed(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, it := range e.delayed {
		if it.id == id {
			it.cancelled = true
			break
		}
	}
}

// Shutdown drains in-flight work and rejects anything posted afterward.
// It blocks until the run loop has exited.
func (e *Executor) Shutdown() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()
	e.signal()
	e.wg.Wait()
}

func (e *Executor) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Executor) run() {
	defer e.wg.Done()
	for {
		task, ok := e.dequeue()
		if !ok {
			return
		}
		if task != nil {
			e.runTask(task)
		}
	}
}

// dequeue returns the next task to run, or (nil, true) to spin (waiting
// for a delayed task to mature or new work to arrive), or (nil, false)
// once the executor is closed and drained.
func (e *Executor) dequeue() (Task, bool) {
	for {
		e.mu.Lock()
		if len(e.immediate) > 0 {
			t := e.immediate[0]
			e.immediate = e.immediate[1:]
			e.mu.Unlock()
			return t, true
		}

		for e.delayed.Len() > 0 && e.delayed[0].cancelled {
			heap.Pop(&e.delayed)
		}

		if e.closed {
			// Shutdown drains the immediate tasks already posted; every
			// delayed task still in the heap, matured or not, is dropped
			// rather than waited on.
			e.mu.Unlock()
			return nil, false
		}

		if e.delayed.Len() > 0 {
			next := e.delayed[0]
			wait := time.Until(next.at)
			if wait <= 0 {
				heap.Pop(&e.delayed)
				e.mu.Unlock()
				return next.task, true
			}
			e.mu.Unlock()
			select {
			case <-e.wake:
			case <-time.After(wait):
			}
			continue
		}

		e.mu.Unlock()
		<-e.wake
	}
}

func (e *Executor) runTask(t Task) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Errorf("task panicked: %v", r)
		}
	}()
	t()
}

// delayedItem is one entry in the delayed-task min-heap, ordered by fire
// time and broken by submission sequence.
type delayedItem struct {
	task      Task
	at        time.Time
	seq       uint64
	id        uint64
	cancelled bool
}

type delayedQueue []*delayedItem

func (q delayedQueue) Len() int { return len(q) }
func (q delayedQueue) Less(i, j int) bool {
	if q[i].at.Equal(q[j].at) {
		return q[i].seq < q[j].seq
	}
	return q[i].at.Before(q[j].at)
}
func (q delayedQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *delayedQueue) Push(x interface{}) {
	*q = append(*q, x.(*delayedItem))
}
func (q *delayedQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}
