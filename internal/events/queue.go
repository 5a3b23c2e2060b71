package events

import (
	"sync"
	"sync/atomic"

	"PeerShare/internal/logger"
)

const (
	// DefaultCapacity is the default number of queued events.
	DefaultCapacity = 100
)

// Queue is a bounded, pull-based event queue.
// Producers never block: an event that does not fit, or that arrives after
// Close, is dropped and logged. Only one receiver drains at a time.
type Queue struct {
	ch chan Event // ch buffers pending events

	mu     sync.RWMutex // mu orders Send against Close
	closed bool         // closed is set once by Close

	recvMu  sync.Mutex    // recvMu serializes Drain callers
	dropped atomic.Uint64 // dropped counts events that were not queued
}

// NewQueue creates a queue holding at most capacity events.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = DefaultCapacity
	}

	return &Queue{ch: make(chan Event, capacity)}
}

// Send queues e without blocking. It reports whether e was queued.
func (q *Queue) Send(e Event) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.dropped.Add(1)
		logger.Warn("event dropped, queue closed", "kind", e.Kind())
		return false
	}

	select {
	case q.ch <- e:
		return true
	default:
		q.dropped.Add(1)
		logger.Warn("event dropped, queue full", "kind", e.Kind(), "capacity", cap(q.ch))
		return false
	}
}

// Drain returns up to max queued events in arrival order without blocking.
// Events still buffered when the queue was closed can be drained.
func (q *Queue) Drain(max int) []Event {
	q.recvMu.Lock()
	defer q.recvMu.Unlock()

	var out []Event

	for len(out) < max {
		select {
		case e, ok := <-q.ch:
			if !ok {
				return out
			}
			out = append(out, e)
		default:
			return out
		}
	}

	return out
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Dropped returns how many events were discarded.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Close disconnects the queue. Later sends are dropped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.ch)
}
