// Package queue implements spec.md §4.5: a single-owner FIFO of
// unit-of-work closures with exactly one in-flight command, driven to
// completion either by the command's own synchronous body or by a later
// matching signal.
package queue

import (
	"sync"

	"blecentral/executor"
	"blecentral/internal/logging"
)

// CompletionTag names the kind of signal that completes a Command, per the
// "expected completion signal" concept in §4.5.
type CompletionTag int

const (
	// TagNone commands self-complete synchronously; no signal is awaited.
	TagNone CompletionTag = iota
	TagDiscovering
	TagPowered
	TagConnected
	TagGattValue
	TagNotifying
	TagPaired
)

// Command is one queued unit of work (§3 "Command"). Body runs on the
// queue's executor and is responsible for calling either Complete or Retry
// on the owning Queue once it knows the outcome (immediately for
// self-completing commands, or never, if it expects an asynchronous
// completion signal to do so instead).
type Command struct {
	Tag  CompletionTag
	Key  string
	Body func()

	retries int
}

// Queue is the per-Peripheral or per-Central command queue (§4.5). All
// mutable state — busy, the in-flight head, and the pending slice — is
// guarded by one mutex, matching §5's "one mutex for {busy, current_command,
// current_device, head}".
type Queue struct {
	exec     *executor.Executor
	retryCap int
	log      *logging.Logger

	mu    sync.Mutex
	busy  bool
	head  *Command
	items []*Command
}

// New constructs a Queue that posts command bodies to exec. retryCap
// bounds Retry (default 2 per §4.5/§9; the parameter is carried even
// though no call site in this module currently triggers a retry).
func New(exec *executor.Executor, retryCap int, log *logging.Logger) *Queue {
	if log == nil {
		log = logging.Default()
	}
	return &Queue{exec: exec, retryCap: retryCap, log: log.WithComponent("queue")}
}

// Enqueue appends cmd and, if nothing is in-flight, starts it immediately.
func (q *Queue) Enqueue(cmd *Command) {
	q.mu.Lock()
	q.items = append(q.items, cmd)
	q.mu.Unlock()
	q.next()
}

// next starts the head command if none is in-flight. Called under no lock;
// it takes the lock itself and releases it before posting, so the posted
// body never runs while the queue's own mutex is held.
func (q *Queue) next() {
	q.mu.Lock()
	if q.busy || len(q.items) == 0 {
		q.mu.Unlock()
		return
	}
	q.busy = true
	cmd := q.items[0]
	q.head = cmd
	q.mu.Unlock()
	q.exec.Post(cmd.Body)
}

// Matches reports whether a just-observed completion signal belongs to the
// in-flight command: same tag, and same correlation key when one is set on
// the head (adapter-level commands carry no key and match any). Key is a
// free-form correlation string: a MAC address for connect commands,
// or a bus object path for per-characteristic/descriptor GATT commands.
func (q *Queue) Matches(tag CompletionTag, key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == nil || q.head.Tag != tag {
		return false
	}
	return q.head.Key == "" || q.head.Key == key
}

// InFlight reports whether a command is currently executing, for the
// universal invariant in §8 ("the number of in-flight commands on P's
// queue is ≤ 1").
func (q *Queue) InFlight() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.busy
}

// Complete pops the head, clears busy and the current-command state, and
// advances to the next queued command.
func (q *Queue) Complete() {
	q.mu.Lock()
	if len(q.items) > 0 {
		q.items = q.items[1:]
	}
	q.busy = false
	q.head = nil
	q.mu.Unlock()
	q.next()
}

// Retry re-arms the head command rather than popping it, until retryCap is
// exceeded; beyond the cap it behaves like Complete and proceeds to the
// next command.
func (q *Queue) Retry() {
	q.mu.Lock()
	if q.head == nil {
		q.mu.Unlock()
		return
	}
	q.head.retries++
	if q.head.retries > q.retryCap {
		if len(q.items) > 0 {
			q.items = q.items[1:]
		}
		q.busy = false
		cmd := q.head
		q.head = nil
		q.mu.Unlock()
		q.log.Warnf("command retry cap exceeded, dropping: tag=%v device=%s", cmd.Tag, cmd.Key)
		q.next()
		return
	}
	cmd := q.head
	q.mu.Unlock()
	q.exec.Post(cmd.Body)
}

// Drain clears all pending commands and the busy flag, used on disconnect
// (§4.5 "On disconnect, the Peripheral's queue is drained and busy
// cleared.").
func (q *Queue) Drain() {
	q.mu.Lock()
	q.items = nil
	q.busy = false
	q.head = nil
	q.mu.Unlock()
}

// Len reports the number of commands still pending, including the head.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
