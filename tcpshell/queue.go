package tcpshell

import (
	"time"

	"go.uber.org/atomic"
)

// Queue is a bounded FIFO of bytes shared by the receive goroutine (producer)
// and the interpreter (consumer). Both ends wait at most a caller-given
// duration; a byte that cannot be enqueued in time is dropped and counted.
type Queue struct {
	ch      chan byte
	dropped *atomic.Uint64
}

// NewQueue returns an empty queue holding at most size bytes.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{
		ch:      make(chan byte, size),
		dropped: atomic.NewUint64(0),
	}
}

// Offer enqueues c, waiting up to wait for a free slot. It reports whether c
// was accepted.
func (q *Queue) Offer(c byte, wait time.Duration) bool {
	select {
	case q.ch <- c:
		return true
	default:
	}
	if wait <= 0 {
		q.dropped.Inc()
		return false
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case q.ch <- c:
		return true
	case <-timer.C:
		q.dropped.Inc()
		return false
	}
}

// Poll dequeues the oldest byte, waiting up to wait for one to arrive.
func (q *Queue) Poll(wait time.Duration) (byte, bool) {
	select {
	case c := <-q.ch:
		return c, true
	default:
	}
	if wait <= 0 {
		return 0, false
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case c := <-q.ch:
		return c, true
	case <-timer.C:
		return 0, false
	}
}

// Len returns the number of bytes currently queued.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *Queue) Cap() int { return cap(q.ch) }

// Dropped returns the number of bytes lost to a full queue.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }
