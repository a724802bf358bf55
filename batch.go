package procbus

import (
	"sync"
	"time"
)

// BatchedMessage pairs a received header with its typed payload, in the
// order BatchSubscriber observed them.
type BatchedMessage[T any] struct {
	Header MessageHeader
	Data   T
}

// BatchSubscriber collects messages received on a topic within a time
// window and delivers them as a single slice, in original order. It is
// implemented purely in terms of the ProcessBus API: the flush itself is
// just a command scheduled through ProcessBus.Schedule, so it inherits
// CommandQueue's FIFO/serial guarantees the same as any other command on the
// owning process thread.
type BatchSubscriber[T any] struct {
	bus     *ProcessBus
	window  time.Duration
	handler func([]BatchedMessage[T])
	unsub   Unsubscriber

	mu        sync.Mutex
	pending   []BatchedMessage[T]
	scheduled bool
}

// SubscribeToBatch installs a BatchSubscriber for topic on bus, windowed by
// window, delivering to handler.
func SubscribeToBatch[T any](bus *ProcessBus, topic string, window time.Duration, handler func([]BatchedMessage[T])) (*BatchSubscriber[T], error) {
	b := &BatchSubscriber[T]{bus: bus, window: window, handler: handler}
	unsub, err := bus.Subscribe(topic, b.receive)
	if err != nil {
		return nil, err
	}
	b.unsub = unsub
	return b, nil
}

func (b *BatchSubscriber[T]) receive(header MessageHeader, data any) {
	typed, _ := data.(T)

	b.mu.Lock()
	b.pending = append(b.pending, BatchedMessage[T]{Header: header, Data: typed})
	shouldSchedule := !b.scheduled
	if shouldSchedule {
		b.scheduled = true
	}
	b.mu.Unlock()

	if shouldSchedule {
		b.bus.Schedule(b.flush, b.window)
	}
}

func (b *BatchSubscriber[T]) flush() {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.scheduled = false
	b.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	b.handler(batch)
}

// Unsubscribe tears down the underlying ProcessBus subscription. Any flush
// already scheduled still runs with whatever was pending at the time.
func (b *BatchSubscriber[T]) Unsubscribe() { b.unsub.Unsubscribe() }
