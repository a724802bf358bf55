package procbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shalefield/procbus/matcher"
)

func newTestBus(t *testing.T) *MessageBus {
	timer := NewTimerThread(nil, nil)
	bus := NewMessageBus(timer, nil)
	bus.Start()
	t.Cleanup(func() {
		bus.Stop()
		timer.Stop()
	})
	return bus
}

func TestMessageBusPublishOrderPreservedPerPublisher(t *testing.T) {
	bus := newTestBus(t)
	var got []int
	bus.Subscribe(matcher.Exact("t"), func(env TransferEnvelope) {
		got = append(got, env.Message.(int))
	})

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(envelope("t", i)))
	}
	require.True(t, bus.waitForDrain(time.Second))

	require.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestMessageBusPublishDoesNotBlockOnSubscriber(t *testing.T) {
	bus := newTestBus(t)
	slow := make(chan struct{})
	bus.Subscribe(matcher.Any{}, func(TransferEnvelope) { <-slow })

	done := make(chan struct{})
	go func() {
		_ = bus.Publish(envelope("t", 1))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
	close(slow)
}

func TestMessageBusStatsCountPublishedAndDispatched(t *testing.T) {
	bus := newTestBus(t)
	bus.Subscribe(matcher.Exact("t"), func(TransferEnvelope) {})

	require.NoError(t, bus.Publish(envelope("t", 1)))
	require.NoError(t, bus.Publish(envelope("unmatched", 1)))
	require.True(t, bus.waitForDrain(time.Second))

	stats := bus.Stats()
	require.EqualValues(t, 2, stats.Published)
	require.EqualValues(t, 1, stats.Dispatched)
}
