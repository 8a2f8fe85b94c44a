package service

import (
	"context"
	"sync"

	"github.com/grovetools/deskd/errors"
	"github.com/grovetools/deskd/logging"
	"github.com/grovetools/deskd/pkg/snapshot"
	"github.com/grovetools/deskd/pkg/watch"
	"github.com/mitchellh/mapstructure"
)

// Service is what the daemon engine runs and exposes.
type Service interface {
	Name() string
	State() State
	Run(ctx context.Context) error
	Resync()

	// Snapshot returns a consistent copy of the current snapshot.
	Snapshot() any
	// Channels lists the channel names accepted by Subscribe.
	Channels() []string
	// Subscribe returns a feed of future notifications on channel.
	Subscribe(channel string) (*Feed, error)
	// Commands lists the commands the service accepts.
	Commands() []Command
}

// Command is a named operation with an external side effect.
type Command struct {
	Name        string
	Description string
	Run         func(ctx context.Context, params map[string]any) (any, error)
}

// Base implements Service for a Store and a Runner. Services embed it
// and add their commands.
type Base[S any] struct {
	*Runner
	store *snapshot.Store[S]
}

// NewBase wires store, syncer and adapter into a service named name.
// The store's channels close when the runner stops.
func NewBase[S any](name string, store *snapshot.Store[S], syncer Syncer, adapter watch.Adapter) *Base[S] {
	logger := logging.NewLogger("deskd")
	store.WithLogger(logger.WithField("service", name))
	return &Base[S]{
		Runner: NewRunner(name, syncer, adapter, store.Close, logger),
		store:  store,
	}
}

// Store returns the service's snapshot store.
func (b *Base[S]) Store() *snapshot.Store[S] { return b.store }

func (b *Base[S]) Snapshot() any { return b.store.Get() }

func (b *Base[S]) Channels() []string { return b.store.Channels() }

func (b *Base[S]) Commands() []Command { return nil }

func (b *Base[S]) Subscribe(channel string) (*Feed, error) {
	if !b.store.HasChannel(channel) {
		return nil, errors.UnknownChannel(b.Name(), channel).WithDetail("channels", b.store.Channels())
	}
	sub, err := b.store.Subscribe(channel)
	if err != nil {
		return nil, err
	}
	return newFeed(sub, channel), nil
}

// Feed delivers the snapshot current at each notification.
type Feed struct {
	Channel string

	c    chan any
	done chan struct{}
	once sync.Once
	sub  interface{ Close() }
}

func newFeed[S any](sub *snapshot.Subscription[*snapshot.Handle[S]], channel string) *Feed {
	f := &Feed{
		Channel: channel,
		c:       make(chan any),
		done:    make(chan struct{}),
		sub:     sub,
	}
	go func() {
		defer close(f.c)
		for h := range sub.C() {
			select {
			case f.c <- h.Get():
			case <-f.done:
				return
			}
		}
	}()
	return f
}

// C returns the notification channel. It is closed when the feed or the
// service stops.
func (f *Feed) C() <-chan any { return f.c }

// Close unsubscribes.
func (f *Feed) Close() {
	f.once.Do(func() {
		close(f.done)
		f.sub.Close()
	})
}

// FindCommand returns the named command of s.
func FindCommand(s Service, name string) (Command, error) {
	for _, c := range s.Commands() {
		if c.Name == name {
			return c, nil
		}
	}
	return Command{}, errors.New(errors.ErrCodeInvalidInput, "unknown command: "+name).
		WithDetail("service", s.Name())
}

// DecodeParams decodes command parameters into target using its json tags.
func DecodeParams(params map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "json",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create decoder")
	}
	if err := decoder.Decode(params); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid command parameters")
	}
	return nil
}
