// Package snapshot holds a service's observable state and notifies
// subscribers when it changes.
//
// A Store owns one snapshot value behind a reader/writer lock. Writes go
// through Fields, which suppress writes of equal values, so a channel is
// published on if and only if its value actually changed. Each field has
// its own channel; the Changed channel is published at most once per
// re-synchronization pass.
package snapshot

import (
	"sort"
	"sync"

	"github.com/grovetools/deskd/errors"
	"github.com/sirupsen/logrus"
)

// Changed is the aggregate channel published when any field changes.
const Changed = "changed"

// Cloner is implemented by snapshot types holding slices or maps so reads
// never alias the writer's memory.
type Cloner[S any] interface {
	Clone() S
}

// Store is the shared container for one snapshot value.
type Store[S any] struct {
	mu    sync.RWMutex
	value S

	handle   *Handle[S]
	channels map[string]*Broadcaster[*Handle[S]]
	names    []string
	log      *logrus.Entry
}

// Handle is a read-only reference to a Store. Every notification carries
// the same Handle; Get always returns the latest value.
type Handle[S any] struct {
	store *Store[S]
}

// Get returns the current snapshot.
func (h *Handle[S]) Get() S {
	return h.store.Get()
}

// NewStore creates a Store holding initial with one channel per field name
// plus Changed.
func NewStore[S any](initial S, fields ...string) *Store[S] {
	s := &Store[S]{
		value:    initial,
		channels: make(map[string]*Broadcaster[*Handle[S]], len(fields)+1),
		log:      logrus.NewEntry(logrus.StandardLogger()),
	}
	s.handle = &Handle[S]{store: s}

	for _, name := range append(append([]string(nil), fields...), Changed) {
		if _, exists := s.channels[name]; exists {
			continue
		}
		s.channels[name] = NewBroadcaster[*Handle[S]](DefaultQueueSize)
		s.names = append(s.names, name)
	}
	return s
}

// WithLogger sets the logger used for publish diagnostics.
func (s *Store[S]) WithLogger(log *logrus.Entry) *Store[S] {
	s.log = log
	return s
}

// Get returns a consistent copy of the snapshot.
func (s *Store[S]) Get() S {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := any(s.value).(Cloner[S]); ok {
		return c.Clone()
	}
	return s.value
}

// Handle returns the shared read-only reference to this Store.
func (s *Store[S]) Handle() *Handle[S] {
	return s.handle
}

// Channels returns the channel names in declaration order, Changed last.
func (s *Store[S]) Channels() []string {
	return append([]string(nil), s.names...)
}

// HasChannel reports whether name is a channel of this Store.
func (s *Store[S]) HasChannel(name string) bool {
	_, ok := s.channels[name]
	return ok
}

// Subscribe returns a subscription to future notifications on channel.
func (s *Store[S]) Subscribe(channel string) (*Subscription[*Handle[S]], error) {
	b, ok := s.channels[channel]
	if !ok {
		known := s.Channels()
		sort.Strings(known)
		return nil, errors.UnknownChannel("", channel).WithDetail("channels", known)
	}
	return b.Subscribe(), nil
}

// Close closes every channel. The snapshot stays readable.
func (s *Store[S]) Close() {
	for _, b := range s.channels {
		b.Close()
	}
}

func (s *Store[S]) publish(channel string) {
	b, ok := s.channels[channel]
	if !ok {
		s.log.WithField("channel", channel).Warn("Publish on undeclared channel")
		return
	}
	if b.Publish(s.handle) == 0 {
		s.log.WithField("channel", channel).Debug("No receiver")
	}
}
