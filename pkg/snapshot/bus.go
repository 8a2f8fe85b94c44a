package snapshot

import (
	"sync"
	"sync/atomic"
)

// DefaultQueueSize is the per-subscriber queue capacity.
const DefaultQueueSize = 30

// Broadcaster fans values out to any number of subscribers. Publish never
// blocks: a subscriber whose queue is full loses its oldest queued value.
// Subscribers only see values published after they subscribed.
type Broadcaster[T any] struct {
	mu     sync.Mutex
	subs   map[*Subscription[T]]struct{}
	size   int
	closed bool
}

// Subscription is one subscriber's queue.
type Subscription[T any] struct {
	ch      chan T
	b       *Broadcaster[T]
	dropped atomic.Uint64
}

// NewBroadcaster returns a Broadcaster whose subscribers queue up to size
// values. A size below one uses DefaultQueueSize.
func NewBroadcaster[T any](size int) *Broadcaster[T] {
	if size < 1 {
		size = DefaultQueueSize
	}
	return &Broadcaster[T]{
		subs: make(map[*Subscription[T]]struct{}),
		size: size,
	}
}

// Subscribe registers a new subscriber. Subscribing to a closed
// Broadcaster returns a subscription whose channel is already closed.
func (b *Broadcaster[T]) Subscribe() *Subscription[T] {
	sub := &Subscription[T]{ch: make(chan T, b.size), b: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Publish delivers v to every subscriber and returns how many there were.
func (b *Broadcaster[T]) Publish(v T) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0
	}
	for sub := range b.subs {
		sub.offer(v)
	}
	return len(b.subs)
}

// Len returns the number of live subscribers.
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later publishes are no-ops.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
		delete(b.subs, sub)
	}
}

// C returns the channel values are delivered on. It is closed when the
// subscription or its Broadcaster is closed.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Dropped returns how many values were evicted from this queue.
func (s *Subscription[T]) Dropped() uint64 {
	return s.dropped.Load()
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription[T]) Close() {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	if _, ok := s.b.subs[s]; !ok {
		return
	}
	delete(s.b.subs, s)
	close(s.ch)
}

// offer enqueues v, evicting the oldest value while the queue is full.
// Called with b.mu held, so this is the only sender.
func (s *Subscription[T]) offer(v T) {
	for {
		select {
		case s.ch <- v:
			return
		default:
		}
		select {
		case <-s.ch:
			s.dropped.Add(1)
		default:
		}
	}
}
