package queue

import "sync"

// sliceQueue implements the Queue interface using a slice guarded by a mutex.
type sliceQueue[T any] struct {
	mu    sync.Mutex
	items []T
	limit int
}

// NewSliceQueue creates a new sliceQueue.
//
// When limit is greater than zero the queue keeps at most limit items and
// Enqueue drops the oldest item once the limit is reached.
func NewSliceQueue[T any](prealloc int, limit int) Queue[T] {
	return &sliceQueue[T]{items: make([]T, 0, prealloc), limit: limit}
}

func (q *sliceQueue[T]) Enqueue(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := true
	if q.limit > 0 && len(q.items) >= q.limit {
		var zero T
		q.items[0] = zero
		q.items = q.items[1:]
		kept = false
	}
	q.items = append(q.items, item)

	return kept
}

func (q *sliceQueue[T]) Dequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]

	return item, true
}

func (q *sliceQueue[T]) Peek() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		var zero T
		return zero, false
	}

	return q.items[0], true
}

func (q *sliceQueue[T]) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	clear(q.items)
	q.items = q.items[:0]
}

func (q *sliceQueue[T]) IsEmpty() bool {
	return q.Length() == 0
}

func (q *sliceQueue[T]) Length() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}
