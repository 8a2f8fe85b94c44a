package watch

import (
	"context"

	"github.com/godbus/dbus/v5"
	"github.com/grovetools/deskd/errors"
)

// SignalSource is the part of *dbus.Conn used to receive signals.
type SignalSource interface {
	AddMatchSignal(options ...dbus.MatchOption) error
	RemoveMatchSignal(options ...dbus.MatchOption) error
	Signal(ch chan<- *dbus.Signal)
	RemoveSignal(ch chan<- *dbus.Signal)
}

// SignalAdapter wakes on D-Bus signals matching a match rule.
type SignalAdapter struct {
	name    string
	source  SignalSource
	options []dbus.MatchOption
	accept  func(*dbus.Signal) bool
}

// NewSignalAdapter returns an adapter subscribed to the signals selected by
// options. The bus delivers every subscribed signal to every receiver, so
// accept filters the ones meant for this adapter; nil accepts all.
func NewSignalAdapter(name string, source SignalSource, accept func(*dbus.Signal) bool, options ...dbus.MatchOption) *SignalAdapter {
	return &SignalAdapter{name: name, source: source, options: options, accept: accept}
}

func (a *SignalAdapter) Name() string { return a.name }

func (a *SignalAdapter) Run(ctx context.Context, wake chan<- Wakeup, ready func()) error {
	if err := a.source.AddMatchSignal(a.options...); err != nil {
		return errors.TransportFailed(a.name, "add match", err)
	}
	defer func() { _ = a.source.RemoveMatchSignal(a.options...) }()

	signals := make(chan *dbus.Signal, 16)
	a.source.Signal(signals)
	defer a.source.RemoveSignal(signals)
	ready()

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return errors.TransportFailed(a.name, "receive", errors.New(errors.ErrCodeTransportFailed, "bus connection closed"))
			}
			if a.accept != nil && !a.accept(sig) {
				continue
			}
			if !send(ctx, wake, Wakeup{Source: a.name, Detail: sig.Name}) {
				return nil
			}
		}
	}
}
