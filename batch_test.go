package procbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBatchSubscriberWindow(t *testing.T) {
	bus, timer := newTestRuntime(t)
	pb := newTestProcessBus(t, "batcher", bus, timer)

	var batches [][]BatchedMessage[int]
	done := make(chan struct{})
	_, err := SubscribeToBatch(pb, "nums", 40*time.Millisecond, func(b []BatchedMessage[int]) {
		batches = append(batches, b)
		close(done)
	})
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, pb.Publish("nums", 1))
	require.NoError(t, pb.Publish("nums", 2))
	require.NoError(t, pb.Publish("nums", 3))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("batch never flushed")
	}

	require.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 3)
	require.Equal(t, 1, batches[0][0].Data)
	require.Equal(t, 2, batches[0][1].Data)
	require.Equal(t, 3, batches[0][2].Data)
}

func TestBatchSubscriberEmptyWindowSkipped(t *testing.T) {
	bus, timer := newTestRuntime(t)
	pb := newTestProcessBus(t, "batcher", bus, timer)

	var calls int
	_, err := SubscribeToBatch(pb, "nums", 20*time.Millisecond, func([]BatchedMessage[int]) { calls++ })
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)
	require.Equal(t, 0, calls)
}
