// Package queue provides the render request queue and its futures
package queue

import (
	"context"
	"sync"

	"github.com/phantomssr/phantom/pkg/types"
)

// RenderQueue is an unbounded FIFO of pending render futures, safe for
// concurrent producers and consumers.
type RenderQueue struct {
	mu     sync.Mutex
	items  []*RenderFuture
	wakeup chan struct{}
	closed bool
}

// NewRenderQueue creates an empty render queue
func NewRenderQueue() *RenderQueue {
	return &RenderQueue{
		wakeup: make(chan struct{}),
	}
}

// Enqueue appends a request for uri and returns its pending future.
// On a closed queue the returned future has already failed with ErrQueueClosed.
func (q *RenderQueue) Enqueue(uri string) *RenderFuture {
	future := NewRenderFuture(uri)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		future.Fail(types.ErrQueueClosed)
		return future
	}
	q.items = append(q.items, future)
	q.broadcastLocked()
	q.mu.Unlock()

	return future
}

// Dequeue removes the oldest future, blocking while the queue is empty.
// It returns ctx.Err() once ctx ends and ErrQueueClosed after Close. A
// cancelled context never removes an item.
func (q *RenderQueue) Dequeue(ctx context.Context) (*RenderFuture, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		q.mu.Lock()
		if len(q.items) > 0 {
			future := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return future, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, types.ErrQueueClosed
		}
		wakeup := q.wakeup
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wakeup:
		}
	}
}

// IsEmpty reports whether no request is waiting. The answer may be stale
// by the time the caller acts on it.
func (q *RenderQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Len returns the number of waiting requests
func (q *RenderQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// FailPending removes every waiting request and fails it with err.
// It returns the number of futures failed.
func (q *RenderQueue) FailPending(err error) int {
	q.mu.Lock()
	pending := q.items
	q.items = nil
	q.mu.Unlock()

	for _, future := range pending {
		future.Fail(err)
	}
	return len(pending)
}

// Close stops the queue: blocked consumers return ErrQueueClosed and
// waiting requests fail with ErrQueueClosed. Close is idempotent.
func (q *RenderQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.broadcastLocked()
	q.mu.Unlock()

	q.FailPending(types.ErrQueueClosed)
}

// IsClosed reports whether Close has been called
func (q *RenderQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// broadcastLocked wakes every blocked Dequeue. Callers hold q.mu.
func (q *RenderQueue) broadcastLocked() {
	close(q.wakeup)
	q.wakeup = make(chan struct{})
}
