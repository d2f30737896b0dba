// Package queue provides the FIFO used to buffer unsolicited module events
// between two command exchanges.
package queue

// Queue defines a FIFO of items of type T.
type Queue[T any] interface {
	// Enqueue adds an item to the tail of the queue.
	// It returns false when the item displaced the oldest entry of a full bounded queue.
	Enqueue(item T) bool
	// Dequeue removes and returns the item at the head of the queue.
	Dequeue() (T, bool)
	// Peek returns the item at the head of the queue without removing it.
	Peek() (T, bool)
	// Reset to an empty queue
	Reset()
	// IsEmpty returns true if the queue is empty, false otherwise.
	IsEmpty() bool
	// Length returns the number of items in the queue.
	Length() int
}
