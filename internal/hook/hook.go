// Package hook provides multi-subscriber event hooks.
//
// A Hook invokes its handlers synchronously on the goroutine calling Fire, in
// the order they were subscribed. Handlers that must not stall the firing
// goroutine can be wrapped in a Buffered subscriber.
package hook

import "sync"

type entry[T any] struct {
	id uint64
	fn func(T)
}

// Hook is a registerable notification point. The zero value is ready to use.
type Hook[T any] struct {
	mu       sync.RWMutex
	next     uint64
	handlers []entry[T]
}

// Subscribe registers fn and returns a function that removes it again.
// Calling the returned function more than once is a no-op.
func (h *Hook[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	h.mu.Lock()
	id := h.next
	h.next++
	h.handlers = append(h.handlers, entry[T]{id: id, fn: fn})
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(id) })
	}
}

func (h *Hook[T]) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, e := range h.handlers {
		if e.id == id {
			// copy-on-write so an in-flight Fire keeps its snapshot intact
			handlers := make([]entry[T], 0, len(h.handlers)-1)
			handlers = append(handlers, h.handlers[:i]...)
			h.handlers = append(handlers, h.handlers[i+1:]...)
			return
		}
	}
}

// Fire calls every handler subscribed at the time of the call with v.
func (h *Hook[T]) Fire(v T) {
	h.mu.RLock()
	handlers := h.handlers
	h.mu.RUnlock()

	for _, e := range handlers {
		e.fn(v)
	}
}

// Len returns the number of subscribed handlers.
func (h *Hook[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.handlers)
}
