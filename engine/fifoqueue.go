package engine

import (
	"fmt"
	"math"
	"sync"

	"github.com/ef-ds/deque"
)

// FifoQueue is a concurrency safe FIFO queue with a maximum capacity and a length observer.
// Elements pushed beyond capacity are dropped. By default the capacity is unbounded and
// the length observer is a no-op.
type FifoQueue[T any] struct {
	mu             sync.Mutex
	queue          deque.Deque
	maxCapacity    int
	lengthObserver QueueLengthObserver
}

// QueueLengthObserver is called with the queue's new length after each push or pop.
// It must be non-blocking.
type QueueLengthObserver func(int)

// QueueOption configures a FifoQueue.
type QueueOption func(*queueConfig) error

type queueConfig struct {
	capacity int
	observer QueueLengthObserver
}

// WithCapacity bounds the number of elements the queue holds.
func WithCapacity(capacity int) QueueOption {
	return func(cfg *queueConfig) error {
		if capacity < 1 {
			return fmt.Errorf("capacity for fifo queue must be positive, got %d", capacity)
		}
		cfg.capacity = capacity
		return nil
	}
}

// WithLengthObserver registers a callback invoked with the new length on every change.
func WithLengthObserver(observer QueueLengthObserver) QueueOption {
	return func(cfg *queueConfig) error {
		if observer == nil {
			return fmt.Errorf("nil is not a valid QueueLengthObserver")
		}
		cfg.observer = observer
		return nil
	}
}

// NewFifoQueue creates an empty queue.
func NewFifoQueue[T any](opts ...QueueOption) (*FifoQueue[T], error) {
	cfg := queueConfig{
		capacity: math.MaxInt,
		observer: func(int) {},
	}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option to fifo queue: %w", err)
		}
	}
	return &FifoQueue[T]{
		maxCapacity:    cfg.capacity,
		lengthObserver: cfg.observer,
	}, nil
}

// Push appends the element to the tail of the queue. Returns false if the queue is full.
func (q *FifoQueue[T]) Push(element T) bool {
	q.mu.Lock()
	length := q.queue.Len()
	if length >= q.maxCapacity {
		q.mu.Unlock()
		return false
	}
	q.queue.PushBack(element)
	q.mu.Unlock()

	q.lengthObserver(length + 1)
	return true
}

// Pop removes and returns the head of the queue.
func (q *FifoQueue[T]) Pop() (T, bool) {
	q.mu.Lock()
	head, ok := q.queue.PopFront()
	length := q.queue.Len()
	q.mu.Unlock()

	var element T
	if !ok {
		return element, false
	}
	q.lengthObserver(length)
	return head.(T), true
}

// Len returns the current length of the queue.
func (q *FifoQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queue.Len()
}
