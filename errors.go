package procbus

import "errors"

// ErrQueueFull is returned synchronously from CommandQueue.Enqueue when the
// queue has a configured MaxDepth and is at capacity. Dispatch paths that
// enqueue on a subscriber's behalf (ProcessBus) convert this into a
// QueueFullEvent instead of propagating it.
var ErrQueueFull = errors.New("procbus: command queue full")

// ErrQueueStopped is returned from CommandQueue.Enqueue once the queue has
// been stopped. It is a usage error: callers are not required to check it on
// shutdown paths, the same way a double Stop is a harmless no-op.
var ErrQueueStopped = errors.New("procbus: command queue stopped")

// ErrProcessBusClosed is returned by ProcessBus operations issued after Stop.
var ErrProcessBusClosed = errors.New("procbus: process bus closed")

// ErrRequestCanceled is the error a RequestReply waiter observes if Cancel is
// called before a reply arrives.
var ErrRequestCanceled = errors.New("procbus: request canceled")

// ErrInvalidTopic is returned when a topic string is empty.
var ErrInvalidTopic = errors.New("procbus: invalid topic")
