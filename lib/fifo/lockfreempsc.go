// Package fifo provides a lock-free Multi-Producer Single-Consumer (MPSC) queue implementation.
//
// Features and Guarantees:
//
//   - Lock-Free: atomic operations for high throughput and low latency even under high contention
//   - Unbounded Size: the queue can grow to any size as needed, limited only by available memory
//   - Small Footprint: minimal memory overhead per item (two pointers per item)
//   - Thread-Safe writes: Allows any number of goroutines to safely Push() concurrently
//   - Single Consumer: exactly one goroutine may call Pop(). The consumer polls, there is no
//     consumer goroutine. Wait() offers a wakeup channel for consumers that want to block.
//   - FIFO per producer: items of one producer are popped in push order. Across producers
//     the order is determined by which producer completes its push first.
package fifo

import (
	"runtime"
	"sync/atomic"
)

// node represents a single element in the queue
type node[T interface{}] struct {
	value *T
	next  atomic.Pointer[node[T]]
}

// LockFreeMPSC is a lock-free multi-producer single-consumer queue
// Implementation uses a linked list of nodes with atomic operations
// for concurrent push operations without locks
type LockFreeMPSC[T interface{}] struct {
	head   atomic.Pointer[node[T]] // only touched by the consumer
	tail   atomic.Pointer[node[T]]
	closed atomic.Bool
	wake   chan struct{}
	length atomic.Int64
}

// NewLockFreeMPSC creates a new lock-free multi-producer single-consumer queue
func NewLockFreeMPSC[T interface{}]() *LockFreeMPSC[T] {
	// Create a sentinel node (dummy node at the beginning)
	sentinel := &node[T]{}

	q := &LockFreeMPSC[T]{
		wake: make(chan struct{}, 1),
	}

	// Set the initial head and tail to the sentinel node
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	return q
}

// Push adds an item to the queue.
// Returns true if the item was added, or false if the queue is closed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *LockFreeMPSC[T]) Push(value *T) bool {
	if value == nil {
		return false
	}

	if q.closed.Load() {
		return false
	}

	newNode := &node[T]{value: value}

	var backoff uint8 = 0

	for {
		tailNode := q.tail.Load()

		// try to atomically append our node to the current tail
		next := tailNode.next.Load()
		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// CAS may fail if another producer already moved the tail, that's fine
				q.tail.CompareAndSwap(tailNode, newNode)
				q.length.Add(1)
				q.notify()
				return true
			}
		} else {
			// help update the tail pointer if another producer has already appended a node but hasn't updated the tail yet
			q.tail.CompareAndSwap(tailNode, next)
		}

		/*
		 Exponential backoff to handle contention
		  - At low contention (<10 retries): spin with Gosched to avoid thread scheduling overhead
		  - At higher contention: yield the processor to allow other goroutines to make progress
		*/
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// notify wakes a waiting consumer without blocking the producer
func (q *LockFreeMPSC[T]) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Pop removes the oldest item. ok is false if the queue is currently empty.
//
// Thread-safety: must only be called by the single consumer.
func (q *LockFreeMPSC[T]) Pop() (value *T, ok bool) {
	head := q.head.Load()
	next := head.next.Load()
	if next == nil {
		return nil, false
	}

	value = next.value

	// move head pointer, the old sentinel becomes garbage
	q.head.Store(next)
	next.value = nil
	q.length.Add(-1)

	return value, true
}

// Wait returns a channel that receives after a Push. A receive does not guarantee an
// item (it may already be popped), consumers should always drain with Pop.
func (q *LockFreeMPSC[T]) Wait() <-chan struct{} {
	return q.wake
}

// Close closes the queue, preventing further writes.
// Items already in the queue can still be popped.
func (q *LockFreeMPSC[T]) Close() {
	q.closed.Store(true)
	q.notify()
}

// IsClosed returns true if the queue is closed.
func (q *LockFreeMPSC[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len returns an approximate count of the number of items in the queue.
func (q *LockFreeMPSC[T]) Len() int {
	return int(q.length.Load())
}
