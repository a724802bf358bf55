package procbus

import (
	"container/list"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/trickstertwo/xlog"
)

// Command is a nullary action queued for serial execution on a single
// process thread. Its identity is not observable; only its position in a
// CommandQueue's FIFO order matters.
type Command func()

// QueueStats is a snapshot of a CommandQueue's lifetime counters, read by
// otelmetrics.ObserveQueue.
type QueueStats struct {
	Depth    int
	Executed uint64
	Dropped  uint64
}

// CommandQueue is a single-consumer, many-producer blocking FIFO of
// Commands. Producers never block: Enqueue either appends immediately or
// fails synchronously with ErrQueueFull. The single consumer blocks in
// Dequeue until a command arrives or the queue is stopped.
//
// A zero MaxDepth means unbounded.
type CommandQueue struct {
	name     string
	logger   *xlog.Logger
	maxDepth int

	mu      sync.Mutex
	notify  sync.Cond
	items   list.List
	running bool
	stopped bool

	executed atomic.Uint64
	dropped  atomic.Uint64
}

// NewCommandQueue constructs a running CommandQueue. name is used only for
// diagnostics (log fields, metric attributes); logger may be nil, in which
// case the package-default logger is used.
func NewCommandQueue(name string, maxDepth int, logger *xlog.Logger) *CommandQueue {
	if logger == nil {
		logger = xlog.Default()
	}
	q := &CommandQueue{
		name:     name,
		logger:   logger,
		maxDepth: maxDepth,
		running:  true,
	}
	q.notify.L = &q.mu
	return q
}

// Enqueue appends cmd to the tail of the queue and wakes a waiting
// consumer. It returns ErrQueueFull if MaxDepth is set and already reached,
// and ErrQueueStopped if the queue has already been stopped.
func (q *CommandQueue) Enqueue(cmd Command) error {
	if cmd == nil {
		return nil
	}
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return ErrQueueStopped
	}
	if q.maxDepth > 0 && q.items.Len() >= q.maxDepth {
		q.mu.Unlock()
		q.dropped.Add(1)
		return ErrQueueFull
	}
	q.items.PushBack(cmd)
	q.notify.Signal()
	q.mu.Unlock()
	return nil
}

// Dequeue blocks while the queue is empty and running, and returns the next
// command in FIFO order. It returns (nil, false) once the queue has been
// stopped and drained.
func (q *CommandQueue) Dequeue() (Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.items.Len() == 0 && q.running {
		q.notify.Wait()
	}
	if q.items.Len() == 0 {
		return nil, false
	}
	front := q.items.Remove(q.items.Front())
	return front.(Command), true
}

// ExecuteNext dequeues and invokes the next command, recovering and logging
// any panic it raises so a single bad callback cannot take down the worker
// loop. It returns false once the queue is stopped and drained.
func (q *CommandQueue) ExecuteNext() bool {
	cmd, ok := q.Dequeue()
	if !ok {
		return false
	}
	q.runRecovered(cmd)
	q.executed.Add(1)
	return true
}

func (q *CommandQueue) runRecovered(cmd Command) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.With(xlog.Str("queue", q.name)).
				Warn().
				Msg(fmt.Sprintf("procbus: recovered panic in command: %v", r))
		}
	}()
	cmd()
}

// Run loops ExecuteNext until the queue is stopped and drained. It is meant
// to be the body of the dedicated worker goroutine a ProcessThread starts.
func (q *CommandQueue) Run() {
	for q.ExecuteNext() {
	}
}

// Stop marks the queue non-running and wakes every waiter. It is idempotent:
// calling it more than once has no additional effect. Commands already
// enqueued may or may not run after Stop returns — the queue drains
// opportunistically rather than discarding its backlog — but no command
// enqueued after Stop is ever admitted.
func (q *CommandQueue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.stopped = true
	q.notify.Broadcast()
	q.mu.Unlock()
}

// Len returns a snapshot of the number of commands currently queued.
func (q *CommandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Stats returns a snapshot of lifetime counters alongside the current depth.
func (q *CommandQueue) Stats() QueueStats {
	return QueueStats{
		Depth:    q.Len(),
		Executed: q.executed.Load(),
		Dropped:  q.dropped.Load(),
	}
}

// Name returns the diagnostic label the queue was constructed with.
func (q *CommandQueue) Name() string { return q.name }
