package observerpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolDeliversToAllListeners(t *testing.T) {
	p := New(2, 16, nil)
	defer p.Close(time.Second)

	var a, b atomic.Int32
	var wg sync.WaitGroup
	wg.Add(2)
	p.Subscribe(func(event any) { defer wg.Done(); a.Add(1) })
	p.Subscribe(func(event any) { defer wg.Done(); b.Add(1) })

	p.Notify("hello")
	wg.Wait()

	require.EqualValues(t, 1, a.Load())
	require.EqualValues(t, 1, b.Load())
}

func TestPoolUnsubscribeStopsDelivery(t *testing.T) {
	p := New(2, 16, nil)
	defer p.Close(time.Second)

	var n atomic.Int32
	id := p.Subscribe(func(event any) { n.Add(1) })
	p.Unsubscribe(id)

	p.Notify("ignored")
	time.Sleep(20 * time.Millisecond)

	require.EqualValues(t, 0, n.Load())
}

func TestPoolDropsWhenBufferFull(t *testing.T) {
	p := New(1, 1, nil)
	defer p.Close(time.Second)

	block := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	p.Subscribe(func(event any) {
		wg.Done()
		<-block
	})

	p.Notify("first")
	wg.Wait() // first is in flight, occupying the single worker

	for i := 0; i < 10; i++ {
		p.Notify(i)
	}
	close(block)

	require.Greater(t, p.Stats().Dropped, uint64(0))
}

func TestPoolPanicInListenerRecovered(t *testing.T) {
	p := New(1, 4, nil)
	defer p.Close(time.Second)

	var wg sync.WaitGroup
	wg.Add(1)
	p.Subscribe(func(event any) {
		defer wg.Done()
		panic("boom")
	})

	require.NotPanics(t, func() {
		p.Notify("x")
		wg.Wait()
	})
}
