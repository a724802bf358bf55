package procbus

import (
	"sync/atomic"
	"time"

	"github.com/trickstertwo/xlog"

	"github.com/shalefield/procbus/matcher"
	"github.com/shalefield/procbus/observerpool"
)

// busMetrics mirrors the lock-free atomic counters pattern used across this
// codebase's telemetry: cheap to update on every Publish without contending
// a mutex, read through Stats and recorded by procbus/otelmetrics as counter
// deltas.
type busMetrics struct {
	published  atomic.Uint64
	dispatched atomic.Uint64
}

// MessageBus owns a single internal ProcessThread — the bus thread — and a
// SubscriberRegistry. Publish enqueues a command that runs registry.Publish
// on the bus thread; this single-threaded dispatch is what gives every
// subscriber a consistent view of publish order, and it is deliberately
// never parallelised with the sourcegraph/conc worker pool used elsewhere in
// this codebase (see DESIGN.md).
type MessageBus struct {
	thread    *ProcessThread
	registry  *SubscriberRegistry
	logger    *xlog.Logger
	metrics   busMetrics
	lifecycle *observerpool.Pool
}

// NewMessageBus constructs a MessageBus whose bus thread shares timer with
// every ProcessThread in the same runtime. logger may be nil.
func NewMessageBus(timer *TimerThread, logger *xlog.Logger) *MessageBus {
	if logger == nil {
		logger = xlog.Default()
	}
	b := &MessageBus{
		thread:    NewProcessThread("procbus.bus", 0, timer, logger),
		registry:  NewSubscriberRegistry(),
		logger:    logger,
		lifecycle: observerpool.New(1, 32, logger),
	}
	b.lifecycle.Subscribe(LoggingLifecycleObserver{Logger: logger}.OnEvent)
	return b
}

// Start launches the bus thread's worker.
func (b *MessageBus) Start() {
	b.thread.Start()
	b.lifecycle.Notify(LifecycleEvent{Type: LifecycleStarted, Name: b.thread.Name()})
}

// Stop halts the bus thread. Already-enqueued publishes may or may not run.
func (b *MessageBus) Stop() {
	b.thread.Stop()
	b.lifecycle.Notify(LifecycleEvent{Type: LifecycleStopped, Name: b.thread.Name()})
}

// Join waits for the bus thread's worker to exit.
func (b *MessageBus) Join() { b.thread.Join() }

// Publish enqueues env's dispatch onto the bus thread. It never blocks on
// subscribers: the actual fan-out runs later, serially, on the bus thread.
func (b *MessageBus) Publish(env TransferEnvelope) error {
	b.metrics.published.Add(1)
	return b.thread.Enqueue(func() {
		if b.registry.Publish(env) {
			b.metrics.dispatched.Add(1)
		}
	})
}

// Subscribe registers m/onMsg directly against the registry. This bypasses
// the bus thread entirely: the registry has its own mutex and is safe to
// mutate concurrently with an in-flight Publish dispatch.
func (b *MessageBus) Subscribe(m matcher.TopicMatcher, onMsg func(TransferEnvelope)) Unsubscriber {
	return b.registry.Subscribe(m, onMsg)
}

// BusStats is a snapshot of lifetime bus counters.
type BusStats struct {
	Published   uint64
	Dispatched  uint64
	Subscribers int
}

// Stats returns a snapshot of lifetime counters, for procbus/otelmetrics.
func (b *MessageBus) Stats() BusStats {
	return BusStats{
		Published:   b.metrics.published.Load(),
		Dispatched:  b.metrics.dispatched.Load(),
		Subscribers: b.registry.Len(),
	}
}

// waitForDrain blocks until every command enqueued on the bus thread before
// this call has run, by round-tripping a no-op command through the queue.
// Used by tests that need to observe Publish's effects deterministically.
func (b *MessageBus) waitForDrain(timeout time.Duration) bool {
	done := make(chan struct{})
	if err := b.thread.Enqueue(func() { close(done) }); err != nil {
		return false
	}
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
