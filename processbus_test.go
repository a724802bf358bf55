package procbus

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestRuntime(t *testing.T) (*MessageBus, *TimerThread) {
	timer := NewTimerThread(nil, nil)
	bus := NewMessageBus(timer, nil)
	bus.Start()
	t.Cleanup(func() {
		bus.Stop()
		timer.Stop()
	})
	return bus, timer
}

func newTestProcessBus(t *testing.T, name string, bus *MessageBus, timer *TimerThread) *ProcessBus {
	pb := NewProcessBus(name, 0, bus, timer, nil, nil)
	pb.Start()
	t.Cleanup(pb.Stop)
	return pb
}

func TestProcessBusDeliveryIsolation(t *testing.T) {
	bus, timer := newTestRuntime(t)

	a := newTestProcessBus(t, "A", bus, timer)
	b := newTestProcessBus(t, "B", bus, timer)

	var onA atomic.Bool
	var onB atomic.Bool
	_, err := a.Subscribe("x", func(MessageHeader, any) { onA.Store(true) })
	require.NoError(t, err)
	_, err = b.Subscribe("x", func(MessageHeader, any) { onB.Store(true) })
	require.NoError(t, err)

	require.NoError(t, b.Publish("x", "hello"))

	require.Eventually(t, func() bool { return onA.Load() }, time.Second, time.Millisecond)
	require.True(t, onB.Load())
}

func TestProcessBusPublishOrderPerSubscriber(t *testing.T) {
	bus, timer := newTestRuntime(t)
	a := newTestProcessBus(t, "A", bus, timer)
	b := newTestProcessBus(t, "B", bus, timer)

	var got []int
	var mu atomic.Int32
	_, err := a.Subscribe("x", func(h MessageHeader, data any) {
		got = append(got, data.(int))
		mu.Add(1)
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish("x", 1))
	require.NoError(t, b.Publish("x", 2))
	require.NoError(t, b.Publish("x", 3))

	require.Eventually(t, func() bool { return mu.Load() == 3 }, time.Second, time.Millisecond)
	require.Equal(t, []int{1, 2, 3}, got)
}

func TestProcessBusSendRequest(t *testing.T) {
	bus, timer := newTestRuntime(t)
	server := newTestProcessBus(t, "server", bus, timer)
	client := newTestProcessBus(t, "client", bus, timer)

	_, err := server.Subscribe("echo", func(h MessageHeader, data any) {
		replyTo, ok := h.ReplyTo()
		require.True(t, ok)
		require.NoError(t, server.Publish(replyTo, data))
	})
	require.NoError(t, err)

	reply, err := client.SendRequest("echo", "ping")
	require.NoError(t, err)

	select {
	case <-reply.Done():
		value, err := reply.Result()
		require.NoError(t, err)
		require.Equal(t, "ping", value)
	case <-time.After(time.Second):
		t.Fatal("request never completed")
	}
}

func TestProcessBusSendRequestCancel(t *testing.T) {
	bus, timer := newTestRuntime(t)
	client := newTestProcessBus(t, "client", bus, timer)

	reply, err := client.SendRequest("nobody-listens", "ping")
	require.NoError(t, err)

	reply.Cancel()

	select {
	case <-reply.Done():
		_, err := reply.Result()
		require.ErrorIs(t, err, ErrRequestCanceled)
	case <-time.After(time.Second):
		t.Fatal("cancel never completed the handle")
	}
}

func TestProcessBusRejectsAfterStop(t *testing.T) {
	bus, timer := newTestRuntime(t)
	pb := NewProcessBus("stopped", 0, bus, timer, nil, nil)
	pb.Start()
	pb.Stop()

	_, err := pb.Subscribe("x", func(MessageHeader, any) {})
	require.ErrorIs(t, err, ErrProcessBusClosed)

	err = pb.Publish("x", 1)
	require.ErrorIs(t, err, ErrProcessBusClosed)
}

func TestProcessBusQueueFullFiresListener(t *testing.T) {
	bus, timer := newTestRuntime(t)
	pb := NewProcessBus("bounded", 1, bus, timer, nil, nil)
	pb.Start()
	t.Cleanup(pb.Stop)

	block := make(chan struct{})
	_, err := pb.Subscribe("x", func(MessageHeader, any) { <-block })
	require.NoError(t, err)

	var drops atomic.Int32
	pb.AddQueueFullListener(func(QueueFullEvent) { drops.Add(1) })

	for i := 0; i < 10; i++ {
		require.NoError(t, pb.Publish("x", i))
	}

	require.Eventually(t, func() bool { return drops.Load() > 0 }, time.Second, time.Millisecond)
	close(block)
}
