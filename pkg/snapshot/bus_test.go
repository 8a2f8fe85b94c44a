package snapshot

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain[T any](ch <-chan T) []T {
	var out []T
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, v)
		default:
			return out
		}
	}
}

func TestBroadcasterNoSubscribers(t *testing.T) {
	b := NewBroadcaster[int](4)
	assert.NotPanics(t, func() {
		assert.Equal(t, 0, b.Publish(1))
	})
}

func TestBroadcasterFanOut(t *testing.T) {
	b := NewBroadcaster[int](4)
	s1 := b.Subscribe()
	s2 := b.Subscribe()

	assert.Equal(t, 2, b.Publish(7))
	assert.Equal(t, []int{7}, drain(s1.C()))
	assert.Equal(t, []int{7}, drain(s2.C()))
}

func TestBroadcasterNoReplay(t *testing.T) {
	b := NewBroadcaster[int](4)
	early := b.Subscribe()
	for i := 1; i <= 3; i++ {
		b.Publish(i)
	}

	late := b.Subscribe()
	assert.Empty(t, drain(late.C()), "late subscriber must not see past publishes")

	b.Publish(4)
	assert.Equal(t, []int{4}, drain(late.C()))
	assert.Equal(t, []int{1, 2, 3, 4}, drain(early.C()))
}

func TestBroadcasterDropsOldestForLaggingSubscriber(t *testing.T) {
	b := NewBroadcaster[int](3)
	slow := b.Subscribe()
	fast := b.Subscribe()

	var fastSeen []int
	for i := 1; i <= 5; i++ {
		b.Publish(i)
		fastSeen = append(fastSeen, drain(fast.C())...)
	}

	assert.Equal(t, []int{3, 4, 5}, drain(slow.C()), "queue keeps the newest values")
	assert.Equal(t, uint64(2), slow.Dropped())
	assert.Equal(t, []int{1, 2, 3, 4, 5}, fastSeen, "other subscribers are unaffected")
	assert.Equal(t, uint64(0), fast.Dropped())
}

func TestBroadcasterDefaultSize(t *testing.T) {
	b := NewBroadcaster[int](0)
	sub := b.Subscribe()
	for i := 0; i < DefaultQueueSize+5; i++ {
		b.Publish(i)
	}
	got := drain(sub.C())
	require.Len(t, got, DefaultQueueSize)
	assert.Equal(t, DefaultQueueSize+4, got[len(got)-1])
}

func TestSubscriptionClose(t *testing.T) {
	b := NewBroadcaster[int](2)
	sub := b.Subscribe()
	sub.Close()
	sub.Close()

	assert.Equal(t, 0, b.Publish(1))
	_, ok := <-sub.C()
	assert.False(t, ok)
}

func TestBroadcasterClose(t *testing.T) {
	b := NewBroadcaster[int](2)
	sub := b.Subscribe()
	b.Publish(1)
	b.Close()
	b.Close()

	assert.Equal(t, []int{1}, drain(sub.C()), "queued values remain readable before close is observed")
	_, ok := <-sub.C()
	assert.False(t, ok)

	assert.Equal(t, 0, b.Publish(2))
	sub.Close()

	after := b.Subscribe()
	_, ok = <-after.C()
	assert.False(t, ok, "subscribing to a closed broadcaster yields a closed channel")
}

func TestBroadcasterConcurrentPublish(t *testing.T) {
	b := NewBroadcaster[int](8)
	sub := b.Subscribe()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				b.Publish(i)
			}
		}()
	}

	done := make(chan struct{})
	received := 0
	go func() {
		defer close(done)
		for range sub.C() {
			received++
		}
	}()

	wg.Wait()
	b.Close()
	<-done

	assert.Equal(t, uint64(4000), uint64(received)+sub.Dropped())
}
