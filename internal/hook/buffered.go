package hook

import (
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
)

// Buffered decouples a handler from the goroutine that fires a Hook.
// Events are queued in FIFO order and delivered by a dedicated goroutine.
type Buffered[T any] struct {
	fn    func(T)
	limit int

	mu     sync.Mutex
	cond   *sync.Cond
	q      *queue.Queue
	closed bool

	dropped atomic.Uint64
	done    chan struct{}
}

// NewBuffered starts a delivery goroutine for fn. When limit is positive,
// events arriving while limit events are already queued are dropped.
func NewBuffered[T any](fn func(T), limit int) *Buffered[T] {
	b := &Buffered[T]{
		fn:    fn,
		limit: limit,
		q:     queue.New(),
		done:  make(chan struct{}),
	}
	b.cond = sync.NewCond(&b.mu)

	go b.deliver()
	return b
}

// Handle queues v for delivery. It never blocks on fn and is meant to be
// passed to Hook.Subscribe.
func (b *Buffered[T]) Handle(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || (b.limit > 0 && b.q.Length() >= b.limit) {
		b.dropped.Add(1)
		return
	}
	b.q.Add(v)
	b.cond.Signal()
}

// Dropped returns how many events were discarded because the queue was full
// or closed.
func (b *Buffered[T]) Dropped() uint64 {
	return b.dropped.Load()
}

// Pending returns the number of queued, undelivered events.
func (b *Buffered[T]) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.q.Length()
}

// Close stops accepting events, delivers what is already queued and waits
// for the delivery goroutine to exit.
func (b *Buffered[T]) Close() {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		b.cond.Broadcast()
	}
	b.mu.Unlock()

	<-b.done
}

func (b *Buffered[T]) deliver() {
	defer close(b.done)

	for {
		b.mu.Lock()
		for b.q.Length() == 0 && !b.closed {
			b.cond.Wait()
		}
		if b.q.Length() == 0 {
			b.mu.Unlock()
			return
		}
		v := b.q.Remove().(T)
		b.mu.Unlock()

		b.fn(v)
	}
}
