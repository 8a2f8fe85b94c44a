// Package service runs re-synchronization loops for deskd services.
package service

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/grovetools/deskd/pkg/watch"
	"github.com/sirupsen/logrus"
)

// State is a service lifecycle state.
type State int32

const (
	Constructing State = iota
	Synchronizing
	Idle
	Stopped
)

func (s State) String() string {
	switch s {
	case Constructing:
		return "constructing"
	case Synchronizing:
		return "synchronizing"
	case Idle:
		return "idle"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Syncer re-reads a resource and applies it to the service's snapshot.
type Syncer interface {
	Sync(ctx context.Context) error
}

// SyncFunc adapts a function to Syncer.
type SyncFunc func(ctx context.Context) error

func (f SyncFunc) Sync(ctx context.Context) error { return f(ctx) }

// Runner drives one service: an initial pass, then one pass per wakeup.
// Passes never overlap. Wakeups arriving during a pass collapse into a
// single follow-up pass.
type Runner struct {
	name    string
	syncer  Syncer
	adapter watch.Adapter
	onStop  func()
	logger  *logrus.Entry

	state   atomic.Int32
	queue   chan struct{}
	passes  atomic.Uint64
	errMu   sync.Mutex
	lastErr error
}

// NewRunner returns a Runner in the Constructing state. onStop runs once
// when the runner stops, typically closing the service's channels.
func NewRunner(name string, syncer Syncer, adapter watch.Adapter, onStop func(), logger *logrus.Entry) *Runner {
	return &Runner{
		name:    name,
		syncer:  syncer,
		adapter: adapter,
		onStop:  onStop,
		logger:  logger.WithField("service", name),
		queue:   make(chan struct{}, 1),
	}
}

// Name returns the service name.
func (r *Runner) Name() string { return r.name }

// State returns the current lifecycle state.
func (r *Runner) State() State { return State(r.state.Load()) }

// Passes returns how many re-synchronization passes have completed.
func (r *Runner) Passes() uint64 { return r.passes.Load() }

// LastError returns the error of the most recent failed pass, if the
// latest pass failed.
func (r *Runner) LastError() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.lastErr
}

// Resync requests a pass. It never blocks; a request made while one is
// already queued is absorbed by it.
func (r *Runner) Resync() {
	select {
	case r.queue <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is canceled or the adapter ends. It returns the
// adapter's error, if any. On return the runner is Stopped.
//
// The adapter starts first and the initial pass waits until it is
// registered, so a change landing between the two still produces a wakeup.
// An adapter that ends before registering still gets the initial pass.
func (r *Runner) Run(ctx context.Context) error {
	defer r.stop()

	adapterCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wake       = make(chan watch.Wakeup)
		ready      = make(chan struct{})
		readyOnce  sync.Once
		ended      = make(chan struct{})
		adapterErr error
	)
	go func() {
		adapterErr = r.adapter.Run(adapterCtx, wake, func() {
			readyOnce.Do(func() { close(ready) })
		})
		close(wake)
		close(ended)
	}()

	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for w := range wake {
			r.logger.WithField("source", w.Source).Debugf("Wakeup: %s", w.Detail)
			r.Resync()
		}
	}()

	select {
	case <-ready:
	case <-ended:
	case <-ctx.Done():
		cancel()
		<-forwarded
		<-ended
		return nil
	}
	r.pass(ctx)

	for {
		select {
		case <-ctx.Done():
			cancel()
			<-forwarded
			<-ended
			return nil

		case <-ended:
			// Every wakeup sent before the adapter returned has been
			// forwarded once wake is drained.
			<-forwarded
			select {
			case <-r.queue:
				r.pass(ctx)
			default:
			}
			if adapterErr != nil {
				r.logger.WithError(adapterErr).Error("Watch ended")
			} else {
				r.logger.Info("Watch ended")
			}
			return adapterErr

		case <-r.queue:
			r.pass(ctx)
		}
	}
}

func (r *Runner) pass(ctx context.Context) {
	r.state.Store(int32(Synchronizing))
	err := r.syncer.Sync(ctx)
	r.passes.Add(1)

	r.errMu.Lock()
	r.lastErr = err
	r.errMu.Unlock()

	if err != nil {
		r.logger.WithError(err).Warn("Re-synchronization failed")
	}
	r.state.Store(int32(Idle))
}

func (r *Runner) stop() {
	r.state.Store(int32(Stopped))
	if r.onStop != nil {
		r.onStop()
	}
}
