package procbus

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// pendingEvent is the common shape of a scheduled unit: an absolute
// expiration on the TimerThread's clock, the CommandQueue it will enqueue
// into, the Command to enqueue, and a monotonic cancellation flag.
type pendingEvent interface {
	expiration() time.Time
	canceled() bool
	// execute runs the event against now, enqueuing its Command on its
	// target queue unless canceled. It returns a successor event to
	// reinsert (RecurringEvent) or nil (SingleEvent).
	execute(now time.Time) pendingEvent
}

type baseEvent struct {
	exp          time.Time
	target       *CommandQueue
	cmd          Command
	canceledFlag atomic.Bool
	onDropped    func()
}

func (e *baseEvent) expiration() time.Time { return e.exp }
func (e *baseEvent) isCanceled() bool      { return e.canceledFlag.Load() }

// fire enqueues cmd on target unless the event was canceled. A QueueFull
// from the target is swallowed here per the timer boundary's error policy
// (the scheduler has no user-level backpressure policy of its own — see
// SPEC_FULL.md §7) but still counted via onDropped.
func (e *baseEvent) fire() {
	if e.canceledFlag.Load() {
		return
	}
	if err := e.target.Enqueue(e.cmd); err != nil && e.onDropped != nil {
		e.onDropped()
	}
}

// singleEvent executes once and yields no successor.
type singleEvent struct{ baseEvent }

func (e *singleEvent) canceled() bool { return e.isCanceled() }

func (e *singleEvent) execute(time.Time) pendingEvent {
	e.fire()
	return nil
}

// recurringEvent additionally holds an interval; each execution advances its
// own expiration and returns itself as the successor to reinsert.
type recurringEvent struct {
	baseEvent
	interval time.Duration
}

func (e *recurringEvent) canceled() bool { return e.isCanceled() }

func (e *recurringEvent) execute(now time.Time) pendingEvent {
	e.fire()
	if e.isCanceled() {
		return nil
	}
	e.exp = now.Add(e.interval)
	return e
}

// TimerControl is the handle returned by TimerThread.Schedule and
// ScheduleOnInterval. Its only operation is Cancel; cancellation is O(1) and
// does not remove the event from the TimerIndex (see DESIGN.md).
type TimerControl interface {
	Cancel()
}

type timerControl struct{ ev interface{ cancelEvent() } }

func (c timerControl) Cancel() { c.ev.cancelEvent() }

func (e *baseEvent) cancelEvent() { e.canceledFlag.Store(true) }

// timerIndex is a sorted expiration -> []pendingEvent map, exclusively owned
// and mutated by its TimerThread under the timer lock. It is intentionally
// a plain sorted slice of buckets rather than a heap: inserts are driven by
// Schedule/reschedule calls (low volume relative to a hot path), and the
// scheduler only ever needs the minimum key and a prefix of expired
// buckets, both O(log n) / O(k) here.
type timerIndex struct {
	keys    []time.Time
	buckets map[int64][]pendingEvent
}

func newTimerIndex() *timerIndex {
	return &timerIndex{buckets: make(map[int64][]pendingEvent)}
}

func bucketKey(t time.Time) int64 { return t.UnixNano() }

func (ix *timerIndex) insert(ev pendingEvent) {
	k := bucketKey(ev.expiration())
	if _, ok := ix.buckets[k]; !ok {
		i := sort.Search(len(ix.keys), func(i int) bool { return !ix.keys[i].Before(ev.expiration()) })
		ix.keys = append(ix.keys, time.Time{})
		copy(ix.keys[i+1:], ix.keys[i:])
		ix.keys[i] = ev.expiration()
	}
	ix.buckets[k] = append(ix.buckets[k], ev)
}

// popExpired removes and returns every bucket with key <= now, in ascending
// key order, preserving insertion order within each key.
func (ix *timerIndex) popExpired(now time.Time) []pendingEvent {
	cut := sort.Search(len(ix.keys), func(i int) bool { return ix.keys[i].After(now) })
	if cut == 0 {
		return nil
	}
	var expired []pendingEvent
	for _, k := range ix.keys[:cut] {
		expired = append(expired, ix.buckets[bucketKey(k)]...)
		delete(ix.buckets, bucketKey(k))
	}
	ix.keys = ix.keys[cut:]
	return expired
}

func (ix *timerIndex) earliest() (time.Time, bool) {
	if len(ix.keys) == 0 {
		return time.Time{}, false
	}
	return ix.keys[0], true
}

func (ix *timerIndex) len() int { return len(ix.keys) }

// TimerThread is the single scheduler shared by every ProcessThread in a
// runtime. It owns a TimerIndex and a monotonic xclock.Clock, and arms
// exactly one OS-level timed wait at a time for the earliest future
// expiration. The clock supplies business-time readings (Now/Since); the
// actual rearmable wait is built on time.Timer, since no rearmable-timer
// primitive is part of the grounded xclock.Clock surface (see DESIGN.md).
type TimerThread struct {
	clock  xclock.Clock
	logger *xlog.Logger

	mu    sync.Mutex
	index *timerIndex
	timer *time.Timer
	gen   uint64 // bumped on every rearm so a stale timer fire is ignored

	stopped atomic.Bool

	fired   atomic.Uint64
	dropped atomic.Uint64
}

// NewTimerThread constructs a TimerThread. clock and logger may be nil, in
// which case xclock.Default() and xlog.Default() are used. There is no
// Start method: the timer arms nothing, and spins up no goroutine, until
// the first Schedule/ScheduleOnInterval call.
func NewTimerThread(clock xclock.Clock, logger *xlog.Logger) *TimerThread {
	if clock == nil {
		clock = xclock.Default()
	}
	if logger == nil {
		logger = xlog.Default()
	}
	return &TimerThread{
		clock:  clock,
		logger: logger,
		index:  newTimerIndex(),
	}
}

// Schedule creates a one-shot event for cmd, due after delay, targeting
// target, and inserts it into the index. The returned TimerControl cancels
// it.
func (t *TimerThread) Schedule(target *CommandQueue, cmd Command, delay time.Duration) TimerControl {
	ev := &singleEvent{baseEvent: baseEvent{
		exp:       t.clock.Now().Add(delay),
		target:    target,
		cmd:       cmd,
		onDropped: t.noteDropped,
	}}
	t.queueEvent(ev)
	return timerControl{ev: ev}
}

// ScheduleOnInterval creates a recurring event for cmd, first due after
// first, then every interval thereafter until canceled.
func (t *TimerThread) ScheduleOnInterval(target *CommandQueue, cmd Command, first, interval time.Duration) TimerControl {
	ev := &recurringEvent{
		baseEvent: baseEvent{
			exp:       t.clock.Now().Add(first),
			target:    target,
			cmd:       cmd,
			onDropped: t.noteDropped,
		},
		interval: interval,
	}
	t.queueEvent(ev)
	return timerControl{ev: ev}
}

func (t *TimerThread) noteDropped() {
	t.dropped.Add(1)
	t.logger.Debug().Msg("procbus: timer target queue full, event dropped")
}

// queueEvent inserts ev under the timer lock and rearms the wait if ev is
// now the earliest pending expiration. There is no separate Start: a
// TimerThread with nothing ever scheduled against it never arms a
// time.Timer and never spins up the transient goroutine time.AfterFunc uses
// to deliver a fire.
func (t *TimerThread) queueEvent(ev pendingEvent) {
	t.mu.Lock()
	t.index.insert(ev)
	t.rearmLocked()
	t.mu.Unlock()
}

// rearmLocked must be called with mu held. It cancels any in-flight
// time.Timer and arms a new one for the current earliest expiration, or
// does nothing if the index is empty or the thread is stopped.
func (t *TimerThread) rearmLocked() {
	if t.stopped.Load() {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	earliest, ok := t.index.earliest()
	if !ok {
		return
	}
	t.gen++
	myGen := t.gen
	d := earliest.Sub(t.clock.Now())
	if d < 0 {
		d = 0
	}
	t.timer = time.AfterFunc(d, func() { t.onTimerFire(myGen) })
}

// onTimerFire runs on its own goroutine (time.AfterFunc's contract) whenever
// the armed wait elapses. A fire whose generation no longer matches the
// current rearm is stale — it raced a cancel-and-rearm from a newer insert —
// and is ignored.
func (t *TimerThread) onTimerFire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.stopped.Load() {
		t.mu.Unlock()
		return
	}
	for {
		now := t.clock.Now()
		expired := t.index.popExpired(now)
		if len(expired) == 0 {
			break
		}
		for _, ev := range expired {
			if succ := ev.execute(now); succ != nil {
				t.index.insert(succ)
			}
			t.fired.Add(1)
		}
		// If a successor landed at or before now, loop immediately
		// instead of arming a wait that would fire right away.
		next, ok := t.index.earliest()
		if !ok || next.After(now) {
			break
		}
	}
	t.rearmLocked()
	t.mu.Unlock()
}

// Stop freezes the scheduling loop: any in-flight expiration already running
// completes, but no further wait is armed and no further event fires.
func (t *TimerThread) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped.Store(true)
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// PendingCount returns a snapshot of the number of distinct expiration
// buckets currently in the index (not the number of events — multiple
// events may share a bucket). Used by otelmetrics.
func (t *TimerThread) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.index.len()
}

// TimerStats is a snapshot of a TimerThread's lifetime counters.
type TimerStats struct {
	Pending int
	Fired   uint64
	Dropped uint64
}

// Stats returns a snapshot of lifetime counters alongside the current
// pending count, for otelmetrics.
func (t *TimerThread) Stats() TimerStats {
	return TimerStats{
		Pending: t.PendingCount(),
		Fired:   t.fired.Load(),
		Dropped: t.dropped.Load(),
	}
}
