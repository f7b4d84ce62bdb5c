// Package mpscqueue implements the lock-free multi-producer/single-consumer
// FIFO the collector uses to hand messages from user goroutines to the
// worker goroutine (C3 in the design).
//
// The algorithm is Michael/Scott's intrusive linked-list queue restricted to
// one consumer, translated from the lfstack-style atomic head/tail chaining
// used throughout the annotated runtime sources this package is styled
// after (see lfstack.go), generalized from a LIFO stack to a FIFO queue of
// message pointers per the collector's own original lock-free queue design.
package mpscqueue

import "sync/atomic"

type node[T any] struct {
	value atomic.Pointer[T]
	next  atomic.Pointer[node[T]]
}

// Queue is a FIFO safe for many concurrent producers and exactly one
// consumer. The zero value is not usable; use New.
type Queue[T any] struct {
	head atomic.Pointer[node[T]]
	tail atomic.Pointer[node[T]]
}

// New returns an empty queue.
func New[T any]() *Queue[T] {
	sentinel := &node[T]{}
	q := &Queue[T]{}
	q.head.Store(sentinel)
	q.tail.Store(sentinel)
	return q
}

// Enqueue adds v to the head of the queue. Wait-free: one atomic exchange
// plus one relaxed store, safe to call from any number of goroutines
// concurrently.
func (q *Queue[T]) Enqueue(v *T) {
	n := &node[T]{}
	n.value.Store(v)

	prev := q.head.Swap(n)
	prev.next.Store(n)
}

// Dequeue removes and returns the value at the tail of the queue, or nil if
// the queue is empty. Must only be called from a single goroutine.
func (q *Queue[T]) Dequeue() *T {
	for {
		tail := q.tail.Load()
		next := tail.next.Load()

		if next != nil {
			// The tail has a successor, so it is not the head; consume its
			// value and advance the tail past it.
			v := tail.value.Load()
			q.tail.Store(next)
			if v != nil {
				return v
			}
			// The sentinel, or a node whose value an earlier Dequeue already
			// swapped out in place (see below), holds nil; keep draining.
			continue
		}

		// Tail and head coincide: take the value out in place so a
		// concurrent Enqueue can still link its new node onto Next.
		return tail.value.Swap(nil)
	}
}

// IsEmpty reports whether the queue currently holds no message. Racy with
// concurrent Enqueue calls by design: a true result only means the queue
// was empty at some instant during the call.
func (q *Queue[T]) IsEmpty() bool {
	tail := q.tail.Load()
	value := tail.value.Load()
	head := q.head.Load()
	return tail == head && value == nil
}
