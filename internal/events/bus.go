// Package events fans flow events out to any number of listeners.
package events

import (
	"sync"

	"github.com/kailas-cloud/catalog/internal/domain/event"
)

// Listener receives events synchronously on the emitting flow's goroutine.
// Listeners must not block; hand off to a channel for slow work.
type Listener func(event.Event)

// Bus is a fire-and-forget event fan-out. The zero value is ready to use.
type Bus struct {
	mu        sync.RWMutex
	next      uint64
	listeners map[uint64]Listener
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers l and returns a function that removes it.
// The returned function is safe to call more than once.
func (b *Bus) Subscribe(l Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listeners == nil {
		b.listeners = make(map[uint64]Listener)
	}
	id := b.next
	b.next++
	b.listeners[id] = l

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// Emit delivers e to every current listener.
func (b *Bus) Emit(e event.Event) {
	b.mu.RLock()
	ls := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		ls = append(ls, l)
	}
	b.mu.RUnlock()

	for _, l := range ls {
		l(e)
	}
}

// Len returns the number of listeners.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Channel subscribes a buffered channel. Events are dropped when the buffer is
// full so a slow reader never stalls a flow. Call the returned function to
// unsubscribe; the channel is not closed.
func (b *Bus) Channel(size int) (<-chan event.Event, func()) {
	ch := make(chan event.Event, size)
	unsub := b.Subscribe(func(e event.Event) {
		select {
		case ch <- e:
		default:
		}
	})
	return ch, unsub
}
