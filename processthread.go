package procbus

import (
	"time"

	"github.com/sourcegraph/conc"
	"github.com/trickstertwo/xlog"
)

// ProcessThread is a single logical worker: a CommandQueue plus a dedicated
// goroutine running its loop, tracked with a conc.WaitGroup so that a panic
// escaping the loop itself — which should never happen, since
// CommandQueue.Run already recovers every command's panic — still cannot
// vanish silently; Join re-panics in the caller if that ever happens.
type ProcessThread struct {
	name  string
	queue *CommandQueue
	timer *TimerThread
	wg    conc.WaitGroup
}

// NewProcessThread constructs a ProcessThread with its own CommandQueue
// (capacity maxDepth, 0 meaning unbounded) and scheduling delegated to the
// shared timer. logger may be nil.
func NewProcessThread(name string, maxDepth int, timer *TimerThread, logger *xlog.Logger) *ProcessThread {
	if logger == nil {
		logger = xlog.Default()
	}
	return &ProcessThread{
		name:  name,
		queue: NewCommandQueue(name, maxDepth, logger),
		timer: timer,
	}
}

// Start launches the worker goroutine running the queue's loop. Calling
// Start more than once launches more than one worker draining the same
// queue, which breaks the single-consumer guarantee — callers must not do
// this.
func (p *ProcessThread) Start() {
	p.wg.Go(p.queue.Run)
}

// Stop halts the queue; the worker exits once it observes the stop.
func (p *ProcessThread) Stop() { p.queue.Stop() }

// Join blocks until the worker goroutine has exited, re-panicking here if
// the worker itself ever panicked past CommandQueue's own recovery.
func (p *ProcessThread) Join() { p.wg.Wait() }

// Enqueue forwards cmd to the underlying queue.
func (p *ProcessThread) Enqueue(cmd Command) error { return p.queue.Enqueue(cmd) }

// Schedule delegates to the shared TimerThread, targeting this thread's own
// queue.
func (p *ProcessThread) Schedule(cmd Command, delay time.Duration) TimerControl {
	return p.timer.Schedule(p.queue, cmd, delay)
}

// ScheduleOnInterval delegates to the shared TimerThread, targeting this
// thread's own queue.
func (p *ProcessThread) ScheduleOnInterval(cmd Command, first, interval time.Duration) TimerControl {
	return p.timer.ScheduleOnInterval(p.queue, cmd, first, interval)
}

// Name returns the diagnostic label this thread was constructed with.
func (p *ProcessThread) Name() string { return p.name }

// Stats returns a snapshot of the underlying queue's counters.
func (p *ProcessThread) Stats() QueueStats { return p.queue.Stats() }
