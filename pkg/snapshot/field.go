package snapshot

import "slices"

// Field describes one observable field of snapshot type S.
type Field[S, V any] struct {
	// Name is the channel published when the field changes.
	Name  string
	Get   func(*S) V
	Set   func(*S, V)
	Equal func(a, b V) bool
}

// NewField returns a Field for a comparable value, compared with ==.
func NewField[S any, V comparable](name string, get func(*S) V, set func(*S, V)) Field[S, V] {
	return Field[S, V]{Name: name, Get: get, Set: set, Equal: Comparable[V]}
}

// Comparable reports a == b.
func Comparable[V comparable](a, b V) bool {
	return a == b
}

// EqualOrdered reports whether two lists hold equal elements in the same
// order.
func EqualOrdered[E any](a, b []E, eq func(E, E) bool) bool {
	return slices.EqualFunc(a, b, eq)
}

// EqualKeyed reports whether two lists hold the same keys with equal
// content per key, ignoring order.
func EqualKeyed[E any, K comparable](a, b []E, key func(E) K, eq func(E, E) bool) bool {
	if len(a) != len(b) {
		return false
	}
	index := make(map[K]E, len(a))
	for _, e := range a {
		index[key(e)] = e
	}
	if len(index) != len(a) {
		// Duplicate keys; fall back to positional comparison.
		return slices.EqualFunc(a, b, eq)
	}
	for _, e := range b {
		k := key(e)
		prev, ok := index[k]
		if !ok || !eq(prev, e) {
			return false
		}
		delete(index, k)
	}
	return len(index) == 0
}

// Update writes v to field f unless it equals the current value. On change
// it publishes on the field's channel and on Changed. It reports whether
// the value changed. The store takes ownership of v.
func Update[S, V any](s *Store[S], f Field[S, V], v V) bool {
	if !write(s, f, v) {
		return false
	}
	s.publish(f.Name)
	s.publish(Changed)
	return true
}

// Modify applies fn to the current value of f and writes the result under
// one exclusive lock, for read-modify-write updates such as counters. fn
// must not block.
func Modify[S, V any](s *Store[S], f Field[S, V], fn func(V) V) bool {
	s.mu.Lock()
	cur := f.Get(&s.value)
	next := fn(cur)
	if f.Equal(cur, next) {
		s.mu.Unlock()
		return false
	}
	f.Set(&s.value, next)
	s.mu.Unlock()

	s.publish(f.Name)
	s.publish(Changed)
	return true
}

func write[S, V any](s *Store[S], f Field[S, V], v V) bool {
	s.mu.RLock()
	same := f.Equal(f.Get(&s.value), v)
	s.mu.RUnlock()
	if same {
		return false
	}

	s.mu.Lock()
	// Another writer may have stored v in between.
	if f.Equal(f.Get(&s.value), v) {
		s.mu.Unlock()
		return false
	}
	f.Set(&s.value, v)
	s.mu.Unlock()
	return true
}

// Pass groups the field writes of one re-synchronization pass so Changed
// is published at most once for all of them.
type Pass[S any] struct {
	store   *Store[S]
	changed []string
}

// Begin starts a pass.
func (s *Store[S]) Begin() *Pass[S] {
	return &Pass[S]{store: s}
}

// Apply writes v to field f as part of pass p, publishing on the field's
// channel if it changed.
func Apply[S, V any](p *Pass[S], f Field[S, V], v V) bool {
	if !write(p.store, f, v) {
		return false
	}
	p.changed = append(p.changed, f.Name)
	p.store.publish(f.Name)
	return true
}

// Changed returns the names of fields changed so far in this pass.
func (p *Pass[S]) Changed() []string {
	return append([]string(nil), p.changed...)
}

// Commit publishes on Changed if any field changed and reports whether it
// did. A pass can be committed once; later commits publish nothing.
func (p *Pass[S]) Commit() bool {
	if len(p.changed) == 0 {
		return false
	}
	p.changed = nil
	p.store.publish(Changed)
	return true
}
