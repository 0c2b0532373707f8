package queue

import (
	"context"
	"sync"
)

// MemoryQueue is a bounded in-process queue. Tasks are lost on restart.
type MemoryQueue struct {
	ch        chan Delivery
	closed    chan struct{}
	closeOnce sync.Once
}

// NewMemoryQueue creates a queue holding at most buffer pending tasks
func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer < 1 {
		buffer = 1
	}
	return &MemoryQueue{
		ch:     make(chan Delivery, buffer),
		closed: make(chan struct{}),
	}
}

// Enqueue blocks until there is room, ctx is done or the queue is closed
func (q *MemoryQueue) Enqueue(ctx context.Context, task SendTask) error {
	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}

	select {
	case q.ch <- Delivery{Task: task}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closed:
		return ErrQueueClosed
	}
}

// Deliveries returns the shared task channel. Consumers stop on their own ctx.
func (q *MemoryQueue) Deliveries(_ context.Context) (<-chan Delivery, error) {
	return q.ch, nil
}

// Len reports the number of buffered tasks
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}

func (q *MemoryQueue) Durable() bool {
	return false
}

// Close makes further Enqueue calls fail. Buffered tasks stay readable.
func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() { close(q.closed) })
	return nil
}
