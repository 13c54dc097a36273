package http

import (
	"sync"
)

// DefaultMaxListeners caps the subscribers of a single event.
const DefaultMaxListeners = 32

// Disposer removes a subscription. Calling it more than once is a no-op.
type Disposer func()

type listener[T any] struct {
	id   uint64
	fn   func(T)
	once bool
}

// Emitter delivers values of type T to its subscribers in subscription order.
type Emitter[T any] struct {
	mu        sync.Mutex
	listeners []listener[T]
	nextID    uint64
	max       int
}

// NewEmitter returns an Emitter accepting at most max listeners. A max of
// zero or less disables the cap.
func NewEmitter[T any](max int) *Emitter[T] {
	return &Emitter[T]{max: max}
}

// On subscribes fn to every future emission.
func (e *Emitter[T]) On(fn func(T)) (Disposer, error) {
	return e.subscribe(fn, false)
}

// Once subscribes fn to the next emission only.
func (e *Emitter[T]) Once(fn func(T)) (Disposer, error) {
	return e.subscribe(fn, true)
}

func (e *Emitter[T]) subscribe(fn func(T), once bool) (Disposer, error) {
	if fn == nil {
		return nil, errorf(KindInvalidArgument, "subscribe", "nil listener")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.max > 0 && len(e.listeners) >= e.max {
		return nil, errorf(KindLimitReached, "subscribe", "more than %d listeners", e.max)
	}
	e.nextID++
	id := e.nextID
	e.listeners = append(e.listeners, listener[T]{id: id, fn: fn, once: once})
	return func() { e.remove(id) }, nil
}

func (e *Emitter[T]) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, l := range e.listeners {
		if l.id == id {
			e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
			return
		}
	}
}

// Emit calls every listener with v. Listeners run on the caller's goroutine
// and outside the lock, so they may subscribe or dispose freely.
func (e *Emitter[T]) Emit(v T) {
	e.mu.Lock()
	snapshot := make([]listener[T], len(e.listeners))
	copy(snapshot, e.listeners)
	kept := e.listeners[:0]
	for _, l := range e.listeners {
		if !l.once {
			kept = append(kept, l)
		}
	}
	e.listeners = kept
	e.mu.Unlock()

	for _, l := range snapshot {
		l.fn(v)
	}
}

// Len returns the number of active listeners.
func (e *Emitter[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

// Clear drops every listener.
func (e *Emitter[T]) Clear() {
	e.mu.Lock()
	e.listeners = nil
	e.mu.Unlock()
}
