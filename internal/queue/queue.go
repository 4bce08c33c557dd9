// SPDX-License-Identifier: MIT

/*
Package queue provides the bounded, lossy hand-off used between the
capture, analysis and output workers.

Every send is non-blocking. When the queue is full the item is either
discarded (DropNewest) or admitted by evicting the oldest buffered item
(DropOldest). Producers are therefore never stalled by a slow consumer;
overload shows up as dropped items, counted by Dropped.

FIFO order is preserved within one queue. The queue is safe for any
number of producers and consumers; the buffered channel underneath is
the only synchronization.
*/
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Policy selects what happens to a push into a full queue.
type Policy int

const (
	// DropNewest discards the incoming item.
	DropNewest Policy = iota
	// DropOldest evicts the oldest buffered item to admit the incoming one.
	DropOldest
)

// evictAttempts bounds the evict-then-send loop under contention.
const evictAttempts = 4

// ErrClosed is returned by Pop once the queue is closed and drained.
var ErrClosed = errors.New("queue closed")

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case DropNewest:
		return "drop-newest"
	case DropOldest:
		return "drop-oldest"
	default:
		return "unknown"
	}
}

// Queue is a bounded multi-producer, multi-consumer FIFO.
type Queue[T any] struct {
	ch        chan T
	policy    Policy
	dropped   atomic.Uint64
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a queue holding at most capacity items.
func New[T any](capacity int, policy Policy) (*Queue[T], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("queue capacity must be at least 1, got %d", capacity)
	}
	if policy != DropNewest && policy != DropOldest {
		return nil, fmt.Errorf("unknown queue policy %d", policy)
	}
	return &Queue[T]{
		ch:     make(chan T, capacity),
		policy: policy,
		done:   make(chan struct{}),
	}, nil
}

// TryPush offers v to the queue without blocking. It reports whether v was
// admitted without losing anything: false means v itself was dropped
// (DropNewest, or a closed queue) or an older item was evicted for it
// (DropOldest).
func (q *Queue[T]) TryPush(v T) bool {
	select {
	case <-q.done:
		q.dropped.Add(1)
		return false
	default:
	}

	select {
	case q.ch <- v:
		return true
	default:
	}

	if q.policy == DropNewest {
		q.dropped.Add(1)
		return false
	}

	for range evictAttempts {
		select {
		case <-q.ch:
			q.dropped.Add(1)
		default:
		}
		select {
		case q.ch <- v:
			return false
		default:
		}
	}

	// Lost every race against other producers.
	q.dropped.Add(1)
	return false
}

// TryPop removes the oldest item without blocking.
func (q *Queue[T]) TryPop() (T, bool) {
	select {
	case v := <-q.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// Pop blocks until an item is available, ctx is done, or the queue is
// closed and drained.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	var zero T
	select {
	case v := <-q.ch:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-q.done:
		if v, ok := q.TryPop(); ok {
			return v, nil
		}
		return zero, ErrClosed
	}
}

// Drain pops up to max items without blocking and hands each to fn.
// It returns the number of items popped.
func (q *Queue[T]) Drain(max int, fn func(T)) int {
	n := 0
	for n < max {
		v, ok := q.TryPop()
		if !ok {
			break
		}
		fn(v)
		n++
	}
	return n
}

// Len returns the number of buffered items.
func (q *Queue[T]) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int { return cap(q.ch) }

// Policy returns the overflow policy.
func (q *Queue[T]) Policy() Policy { return q.policy }

// Dropped returns the number of items lost to overflow or closure.
func (q *Queue[T]) Dropped() uint64 { return q.dropped.Load() }

// Close stops the queue from admitting new items. Buffered items can still
// be popped. Close is idempotent.
func (q *Queue[T]) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
}
