package segment

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned by [Queue.Dequeue] when the wait deadline passes
// with no utterance available.
var ErrTimeout = errors.New("segment: dequeue timed out")

// ErrClosed is returned by [Queue.Dequeue] once the queue has been closed
// and drained.
var ErrClosed = errors.New("segment: queue closed")

// Queue is the unbounded FIFO hand-off between the segmenter and the
// assistant loop. An utterance, once enqueued, is delivered exactly once
// and in order; the only way entries disappear without delivery is an
// explicit [Queue.Clear].
//
// All methods are safe for concurrent use.
type Queue struct {
	mu     sync.Mutex
	items  []Utterance
	wake   chan struct{}
	closed bool
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{})}
}

// Enqueue appends an utterance. Enqueue after Close is a no-op, which lets
// the segmenter race shutdown without special casing.
func (q *Queue) Enqueue(u Utterance) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, u)
	close(q.wake)
	q.wake = make(chan struct{})
}

// Dequeue removes and returns the oldest utterance. If none is available it
// blocks until one arrives, timeout elapses (ErrTimeout), ctx is cancelled
// (ctx.Err()), or the queue is closed (ErrClosed). A timeout <= 0 means
// wait indefinitely.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (Utterance, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			u := q.items[0]
			q.items = q.items[1:]
			if len(q.items) == 0 {
				q.items = nil
			}
			q.mu.Unlock()
			return u, nil
		}
		if q.closed {
			q.mu.Unlock()
			return Utterance{}, ErrClosed
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-wake:
		case <-expired:
			return Utterance{}, ErrTimeout
		case <-ctx.Done():
			return Utterance{}, ctx.Err()
		}
	}
}

// Clear discards all pending utterances and returns how many were dropped.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}

// Len reports how many utterances are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close marks the queue closed and wakes any blocked Dequeue. Pending items
// remain dequeueable; Dequeue returns ErrClosed only once the queue is
// empty. Safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.wake)
}
