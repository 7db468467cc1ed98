// Package afchan contains channel helpers.
package afchan

import (
	"context"
	"sync"
)

// Queue is an unbounded FIFO whose values are delivered on a channel.
// Producers never block on Push;
// a slow consumer only grows the backlog.
//
// The delivery channel is closed once Close has been called and the backlog drained,
// or as soon as the context passed to [NewQueue] is canceled.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool

	wake chan struct{}
	out  chan T
	done chan struct{}
}

func NewQueue[T any](ctx context.Context) *Queue[T] {
	q := &Queue[T]{
		wake: make(chan struct{}, 1),
		out:  make(chan T),
		done: make(chan struct{}),
	}
	go q.pump(ctx)
	return q
}

// Out returns the delivery channel.
func (q *Queue[T]) Out() <-chan T {
	return q.out
}

// Push appends v to the backlog.
// It reports false if the queue was already closed.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	q.signal()
	return true
}

// Close stops accepting new values.
// Values already pushed are still delivered.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.signal()
}

// Wait blocks until the delivery goroutine has exited.
func (q *Queue[T]) Wait() {
	<-q.done
}

func (q *Queue[T]) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue[T]) pump(ctx context.Context) {
	defer close(q.done)
	defer close(q.out)

	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-q.wake:
				continue
			}
		}

		var zero T
		v := q.items[0]
		q.items[0] = zero
		q.items = q.items[1:]
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case q.out <- v:
		}
	}
}
