// Package watch turns external change signals into re-synchronization
// wakeups.
//
// An Adapter watches one kind of external source (a filesystem path, a bus
// signal, a process's output, a timer) and sends a Wakeup whenever the
// owning service should re-read its resource. Wakeups carry no data; the
// service always re-reads current truth.
package watch

import (
	"context"
	"sync"
	"sync/atomic"
)

// Wakeup asks a service to re-synchronize.
type Wakeup struct {
	// Source is the name of the adapter that fired.
	Source string
	// Detail describes the triggering event, for debug logging.
	Detail string
}

// Adapter is a background watcher feeding wakeups to one service.
type Adapter interface {
	// Name returns the adapter's name for logging.
	Name() string

	// Run blocks until ctx is canceled, returning nil, or until the
	// watched resource becomes unreachable, returning an error.
	//
	// Run calls ready once, after it is registered with its source. Any
	// change made after ready is reported as a wakeup. An adapter that
	// fails before registering returns without calling ready.
	Run(ctx context.Context, wake chan<- Wakeup, ready func()) error
}

// NoReady is a ready callback for callers that do not wait on registration.
func NoReady() {}

func send(ctx context.Context, wake chan<- Wakeup, w Wakeup) bool {
	select {
	case wake <- w:
		return true
	case <-ctx.Done():
		return false
	}
}

// ChanAdapter wakes once per value received on a channel. Closing the
// channel ends the stream.
type ChanAdapter struct {
	name string
	ch   <-chan string
}

// NewChanAdapter returns an adapter fed by ch. Each received string becomes
// the wakeup detail.
func NewChanAdapter(name string, ch <-chan string) *ChanAdapter {
	return &ChanAdapter{name: name, ch: ch}
}

func (a *ChanAdapter) Name() string { return a.name }

func (a *ChanAdapter) Run(ctx context.Context, wake chan<- Wakeup, ready func()) error {
	ready()
	for {
		select {
		case <-ctx.Done():
			return nil
		case detail, ok := <-a.ch:
			if !ok {
				return nil
			}
			if !send(ctx, wake, Wakeup{Source: a.name, Detail: detail}) {
				return nil
			}
		}
	}
}

// merged runs several adapters as one.
type merged struct {
	adapters []Adapter
}

// Merge returns an adapter running all of adapters. It is ready once every
// adapter is ready. It ends when every adapter has ended, or as soon as one
// fails, in which case the others are canceled and the first error is
// returned.
func Merge(adapters ...Adapter) Adapter {
	if len(adapters) == 1 {
		return adapters[0]
	}
	return &merged{adapters: adapters}
}

func (m *merged) Name() string {
	name := ""
	for i, a := range m.adapters {
		if i > 0 {
			name += "+"
		}
		name += a.Name()
	}
	return name
}

func (m *merged) Run(ctx context.Context, wake chan<- Wakeup, ready func()) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
		pending  atomic.Int32
	)
	pending.Store(int32(len(m.adapters)))
	if len(m.adapters) == 0 {
		ready()
	}
	for _, a := range m.adapters {
		wg.Add(1)
		go func(a Adapter) {
			defer wg.Done()
			var mine sync.Once
			childReady := func() {
				mine.Do(func() {
					if pending.Add(-1) == 0 {
						ready()
					}
				})
			}
			if err := a.Run(ctx, wake, childReady); err != nil {
				once.Do(func() {
					firstErr = err
					cancel()
				})
			}
		}(a)
	}
	wg.Wait()
	return firstErr
}
