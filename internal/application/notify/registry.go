// Package notify fans snapshots out to subscriber callbacks.
package notify

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

type entry[T any] struct {
	fn     func(T)
	active atomic.Bool
}

// Registry holds subscribers for one kind of snapshot.
//
// Notify and the replay in Subscribe are serialized, so a subscriber never
// sees an older snapshot after a newer one. Callbacks must not call
// Subscribe or Notify on the same registry.
type Registry[T any] struct {
	name    string
	deliver sync.Mutex
	mu      sync.Mutex
	subs    []*entry[T]
}

func NewRegistry[T any](name string) *Registry[T] {
	return &Registry[T]{name: name}
}

// Subscribe registers fn. When current reports a value, fn receives it
// before Subscribe returns. The returned func removes fn and is safe to call
// more than once.
func (r *Registry[T]) Subscribe(fn func(T), current func() (T, bool)) func() {
	e := &entry[T]{fn: fn}
	e.active.Store(true)

	r.deliver.Lock()
	r.mu.Lock()
	r.subs = append(r.subs, e)
	r.mu.Unlock()
	if current != nil {
		if v, ok := current(); ok {
			r.call(e, v)
		}
	}
	r.deliver.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(e) })
	}
}

func (r *Registry[T]) remove(e *entry[T]) {
	e.active.Store(false)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = slices.DeleteFunc(r.subs, func(x *entry[T]) bool { return x == e })
}

// Notify calls every subscriber in subscription order.
func (r *Registry[T]) Notify(v T) {
	r.deliver.Lock()
	defer r.deliver.Unlock()

	r.mu.Lock()
	subs := slices.Clone(r.subs)
	r.mu.Unlock()

	for _, e := range subs {
		if e.active.Load() {
			r.call(e, v)
		}
	}
}

// Clear drops every subscriber.
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.subs {
		e.active.Store(false)
	}
	r.subs = nil
}

func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

func (r *Registry[T]) call(e *entry[T], v T) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("registry", r.name).Interface("panic", rec).Msg("subscriber panicked")
		}
	}()
	e.fn(v)
}
