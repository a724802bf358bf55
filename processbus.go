package procbus

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"

	"github.com/shalefield/procbus/matcher"
	"github.com/shalefield/procbus/observerpool"
)

// QueueFullEvent is delivered to a ProcessBus's QueueFull listeners when a
// subscription's adapter command could not be admitted onto the owning
// ProcessThread's queue. It carries everything the listener needs to decide
// what to do about the dropped message.
type QueueFullEvent struct {
	Err    error
	Header MessageHeader
	Data   any
}

type publishOptions struct {
	replyTo *string
}

// PublishOption customizes a single Publish call.
type PublishOption func(*publishOptions)

// WithReplyTo stamps the published envelope's header with a reply-to topic.
func WithReplyTo(topic string) PublishOption {
	return func(o *publishOptions) { o.replyTo = &topic }
}

// ProcessBus is the per-context facade: one ProcessThread, composed with one
// shared MessageBus. Subscribing through a ProcessBus guarantees the
// handler only ever runs on that ProcessBus's own process thread, serially,
// regardless of which process thread published the message.
type ProcessBus struct {
	id       uuid.UUID
	name     string
	thread   *ProcessThread
	bus      *MessageBus
	registry *SubscriberRegistry
	envs     *TransferEnvelopeFactory
	logger   *xlog.Logger

	busUnsub Unsubscriber

	qfPool *observerpool.Pool
	qfIDs  []int

	closed atomic.Bool
}

// NewProcessBus constructs a ProcessBus named name, backed by its own
// ProcessThread of queue capacity maxDepth (0 = unbounded), bound to bus.
// clock and logger may be nil.
func NewProcessBus(name string, maxDepth int, bus *MessageBus, timer *TimerThread, clock xclock.Clock, logger *xlog.Logger) *ProcessBus {
	if logger == nil {
		logger = xlog.Default()
	}
	id := uuid.New()
	pb := &ProcessBus{
		id:       id,
		name:     name,
		thread:   NewProcessThread(name, maxDepth, timer, logger),
		bus:      bus,
		registry: NewSubscriberRegistry(),
		envs:     NewTransferEnvelopeFactory(id, clock),
		logger:   logger,
		qfPool:   observerpool.New(2, 64, logger),
	}
	// Attach the default lifecycle/queue-full logging sink, mirroring the
	// "logging observer attached unless already supplied" convention this
	// codebase uses for its own telemetry wiring.
	pb.qfPool.Subscribe(LoggingLifecycleObserver{Logger: logger}.OnEvent)
	return pb
}

// Start launches the process thread and registers this bus as a single
// subscriber of the shared MessageBus, under a matcher that reports a match
// whenever any of its own subscriptions would.
func (pb *ProcessBus) Start() {
	pb.thread.Start()
	pb.busUnsub = pb.bus.Subscribe(matcher.Predicate(pb.registry.MatchesAny), pb.receive)
	pb.qfPool.Notify(LifecycleEvent{Type: LifecycleStarted, Name: pb.name, At: pb.envs.clock.Now()})
}

// Stop unregisters from the shared MessageBus, halts the process thread, and
// sends a stopped LifecycleEvent to the QueueFull listener pool. The pool
// itself is not closed.
func (pb *ProcessBus) Stop() {
	pb.closed.Store(true)
	if pb.busUnsub != nil {
		pb.busUnsub.Unsubscribe()
	}
	pb.thread.Stop()
	pb.qfPool.Notify(LifecycleEvent{Type: LifecycleStopped, Name: pb.name, At: pb.envs.clock.Now()})
}

// Join waits for the process thread's worker to exit.
func (pb *ProcessBus) Join() { pb.thread.Join() }

// receive is invoked on the bus thread whenever the shared MessageBus
// dispatches an envelope this ProcessBus matched. It delegates to this
// ProcessBus's own registry, which fans out to the ProcessBus's own
// subscriptions — themselves adapters that re-post onto the process thread.
func (pb *ProcessBus) receive(env TransferEnvelope) {
	pb.registry.Publish(env)
}

// Subscribe installs handler for topic. handler always runs on this
// ProcessBus's own process thread. If the adapter cannot enqueue onto the
// process thread (ErrQueueFull), a QueueFullEvent is fanned out to
// registered listeners instead of the handler running.
func (pb *ProcessBus) Subscribe(topic string, handler func(MessageHeader, any)) (Unsubscriber, error) {
	if pb.closed.Load() {
		return nil, ErrProcessBusClosed
	}
	if topic == "" {
		return nil, ErrInvalidTopic
	}
	return pb.registry.Subscribe(matcher.Exact(topic), func(env TransferEnvelope) {
		header, data := env.Header, env.Message
		err := pb.thread.Enqueue(func() { handler(header, data) })
		if err != nil {
			pb.qfPool.Notify(QueueFullEvent{Err: err, Header: header, Data: data})
		}
	}), nil
}

// Publish builds an envelope for topic/msg via this ProcessBus's own
// TransferEnvelopeFactory and publishes it on the shared MessageBus.
func (pb *ProcessBus) Publish(topic string, msg any, opts ...PublishOption) error {
	if pb.closed.Load() {
		return ErrProcessBusClosed
	}
	if topic == "" {
		return ErrInvalidTopic
	}
	var o publishOptions
	for _, opt := range opts {
		opt(&o)
	}
	return pb.bus.Publish(pb.envs.Create(topic, msg, o.replyTo))
}

// SendRequest creates a unique reply topic, installs a one-shot subscription
// on it, publishes an envelope for topic/msg carrying that reply topic, and
// returns a handle that completes with the first reply.
func (pb *ProcessBus) SendRequest(topic string, msg any) (*RequestReply[any], error) {
	replyTopic := pb.CreateUniqueTopic()

	var reply *RequestReply[any]
	unsub, err := pb.Subscribe(replyTopic, func(header MessageHeader, data any) {
		reply.complete(data)
	})
	if err != nil {
		return nil, err
	}
	reply = newRequestReply[any](unsub)

	if err := pb.Publish(topic, msg, WithReplyTo(replyTopic)); err != nil {
		reply.Cancel()
		return nil, err
	}
	return reply, nil
}

// CreateUniqueTopic returns a fresh uuid-v4-derived topic string, distinct
// from every other such value for the lifetime of the process.
func (pb *ProcessBus) CreateUniqueTopic() string {
	return fmt.Sprintf("procbus.reply.%s", uuid.New().String())
}

// Schedule delegates to the process thread's own scheduling.
func (pb *ProcessBus) Schedule(cmd Command, delay time.Duration) TimerControl {
	return pb.thread.Schedule(cmd, delay)
}

// ScheduleOnInterval delegates to the process thread's own scheduling.
func (pb *ProcessBus) ScheduleOnInterval(cmd Command, first, interval time.Duration) TimerControl {
	return pb.thread.ScheduleOnInterval(cmd, first, interval)
}

// Enqueue forwards cmd directly to this ProcessBus's own process thread.
func (pb *ProcessBus) Enqueue(cmd Command) error { return pb.thread.Enqueue(cmd) }

// AddQueueFullListener registers l for QueueFullEvent notifications and
// returns an id usable with RemoveQueueFullListener.
func (pb *ProcessBus) AddQueueFullListener(l func(QueueFullEvent)) int {
	id := pb.qfPool.Subscribe(func(event any) {
		if qfe, ok := event.(QueueFullEvent); ok {
			l(qfe)
		}
	})
	pb.qfIDs = append(pb.qfIDs, id)
	return id
}

// RemoveQueueFullListener removes a listener previously added with
// AddQueueFullListener.
func (pb *ProcessBus) RemoveQueueFullListener(id int) { pb.qfPool.Unsubscribe(id) }

// Name returns the diagnostic label this ProcessBus was constructed with.
func (pb *ProcessBus) Name() string { return pb.name }

// ID is this ProcessBus's identity, also stamped as every outgoing
// envelope's SenderID.
func (pb *ProcessBus) ID() uuid.UUID { return pb.id }

// Stats returns a snapshot of the underlying process thread's queue counters.
func (pb *ProcessBus) Stats() QueueStats { return pb.thread.Stats() }
